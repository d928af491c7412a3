package config

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/llms"
	"github.com/smallnest/agentgraph/llms/cache"
	"github.com/smallnest/agentgraph/llms/openai"
	"github.com/smallnest/agentgraph/log"
	"github.com/smallnest/agentgraph/memory"
	"github.com/smallnest/agentgraph/store"
	"github.com/smallnest/agentgraph/store/file"
	memstore "github.com/smallnest/agentgraph/store/memory"
	"github.com/smallnest/agentgraph/store/postgres"
	redisstore "github.com/smallnest/agentgraph/store/redis"
	"github.com/smallnest/agentgraph/store/sqlite"
)

// OpenCheckpointer builds the configured checkpoint backend. The none
// backend returns a nil checkpointer.
func OpenCheckpointer(ctx context.Context, c CheckpointConfig) (store.Checkpointer, error) {
	switch c.Backend {
	case BackendNone:
		return nil, nil
	case "", BackendMemory:
		return memstore.NewMemoryCheckpointStore(), nil
	case BackendFile:
		cp, err := file.NewFileCheckpointStore(c.Path)
		if err != nil {
			return nil, errs.Configf("open file checkpoints: %w", err)
		}
		return cp, nil
	case BackendSqlite:
		cp, err := sqlite.NewSqliteCheckpointStore(sqlite.SqliteOptions{Path: c.Path, TableName: c.Table})
		if err != nil {
			return nil, errs.Configf("open sqlite checkpoints: %w", err)
		}
		return cp, nil
	case BackendPostgres:
		cp, err := postgres.NewPostgresCheckpointStore(ctx, postgres.PostgresOptions{ConnString: c.DSN, TableName: c.Table})
		if err != nil {
			return nil, errs.Configf("open postgres checkpoints: %w", err)
		}
		return cp, nil
	case BackendRedis:
		return redisstore.NewRedisCheckpointStore(redisstore.RedisOptions{
			Addr:     c.Addr,
			Password: c.Password,
			DB:       c.DB,
			Prefix:   c.Prefix,
			TTL:      c.TTL,
		}), nil
	}
	return nil, errs.Configf("unknown checkpoint backend %q", c.Backend)
}

// NewLogger builds the configured logger. Level "none" gives a NoOpLogger.
func NewLogger(c LogConfig) (log.Logger, error) {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return nil, errs.Configf("log.level: %w", err)
	}
	if level == log.LogLevelNone {
		return &log.NoOpLogger{}, nil
	}

	switch c.Backend {
	case "", "std":
		return log.NewDefaultLogger(level), nil
	case "golog":
		return log.NewGologLoggerAt(c.Prefix, level), nil
	}
	return nil, errs.Configf("unknown log backend %q", c.Backend)
}

// NewMemoryStrategy builds the configured context strategy, or nil when
// the whole conversation is sent.
func NewMemoryStrategy(c MemoryConfig) (memory.Strategy, error) {
	switch c.Strategy {
	case "", BackendNone:
		return nil, nil
	case MemoryWindow:
		return memory.Window{Size: c.Size}, nil
	case MemoryGraph:
		return memory.GraphBased{TopK: c.TopK, Recent: c.Recent}, nil
	}
	return nil, errs.Configf("unknown memory strategy %q", c.Strategy)
}

// NewLLMCache builds the configured response cache, or nil when caching
// is off.
func NewLLMCache(c CacheConfig) (llms.LlmCache, error) {
	switch c.Backend {
	case "", BackendNone:
		return nil, nil
	case BackendMemory:
		return cache.NewMemoryCache(c.TTL), nil
	case BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB})
		return cache.NewRedisCache(client, cache.RedisCacheOptions{Prefix: c.Prefix, TTL: c.TTL}), nil
	}
	return nil, errs.Configf("unknown cache backend %q", c.Backend)
}

// NewChatModel builds the configured model, wrapped in a response cache
// when one is configured. Empty fields fall back to the provider's
// defaults and environment variables.
func NewChatModel(m ModelConfig, c CacheConfig) (llms.ChatModel, error) {
	model, err := newOpenAI(m)
	if err != nil {
		return nil, err
	}

	llmCache, err := NewLLMCache(c)
	if err != nil {
		return nil, err
	}
	if llmCache == nil {
		return model, nil
	}
	return llms.NewCachedModel(model, llmCache), nil
}

// NewEmbeddings builds the embedder of the configured provider.
func NewEmbeddings(m ModelConfig) (llms.Embeddings, error) {
	e, err := newOpenAI(m)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func newOpenAI(m ModelConfig) (*openai.LLM, error) {
	if m.Provider != "" && m.Provider != "openai" {
		return nil, errs.Configf("unknown model provider %q", m.Provider)
	}

	var opts []openai.Option
	if m.APIKey != "" {
		opts = append(opts, openai.WithToken(m.APIKey))
	}
	if m.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(m.BaseURL))
	}
	if m.Organization != "" {
		opts = append(opts, openai.WithOrganization(m.Organization))
	}
	if m.Model != "" {
		opts = append(opts, openai.WithModel(m.Model))
	}
	if m.EmbeddingModel != "" {
		opts = append(opts, openai.WithEmbeddingModel(m.EmbeddingModel))
	}
	if m.Temperature > 0 {
		opts = append(opts, openai.WithTemperature(m.Temperature))
	}
	if m.MaxTokens > 0 {
		opts = append(opts, openai.WithMaxTokens(m.MaxTokens))
	}
	return openai.New(opts...)
}
