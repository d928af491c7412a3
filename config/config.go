package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/log"
	"gopkg.in/yaml.v3"
)

// Checkpoint backends understood by OpenCheckpointer.
const (
	BackendNone     = "none"
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSqlite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the file-level configuration of an agentgraph application.
type Config struct {
	Graph      GraphConfig      `yaml:"graph"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Model      ModelConfig      `yaml:"model"`
	Cache      CacheConfig      `yaml:"cache"`
	Memory     MemoryConfig     `yaml:"memory"`
	Log        LogConfig        `yaml:"log"`
}

// GraphConfig holds run limits and agent defaults.
type GraphConfig struct {
	Name            string   `yaml:"name"`
	MaxIterations   int      `yaml:"max_iterations"`
	MaxSteps        int      `yaml:"max_steps"`
	SystemPrompt    string   `yaml:"system_prompt"`
	InterruptBefore []string `yaml:"interrupt_before"`
	InterruptAfter  []string `yaml:"interrupt_after"`
	ParallelTools   bool     `yaml:"parallel_tools"`
}

// CheckpointConfig selects and configures the checkpoint backend. Which
// fields matter depends on Backend: Path for file and sqlite, DSN for
// postgres, Addr/Password/DB for redis.
type CheckpointConfig struct {
	Backend  string        `yaml:"backend"`
	Path     string        `yaml:"path"`
	DSN      string        `yaml:"dsn"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Table    string        `yaml:"table"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// ModelConfig configures the chat model. Only the openai provider, which
// covers any OpenAI compatible endpoint, is built in.
type ModelConfig struct {
	Provider       string  `yaml:"provider"`
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	Organization   string  `yaml:"organization"`
	Model          string  `yaml:"model"`
	EmbeddingModel string  `yaml:"embedding_model"`
	Temperature    float32 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
}

// CacheConfig enables the LLM response cache.
type CacheConfig struct {
	Backend  string        `yaml:"backend"`
	TTL      time.Duration `yaml:"ttl"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
}

// Memory strategies understood by NewMemoryStrategy.
const (
	MemoryWindow = "window"
	MemoryGraph  = "graph"
)

// MemoryConfig limits what the model sees of a long conversation. Size
// applies to the window strategy, TopK and Recent to the graph strategy.
type MemoryConfig struct {
	Strategy string `yaml:"strategy"`
	Size     int    `yaml:"size"`
	TopK     int    `yaml:"top_k"`
	Recent   int    `yaml:"recent"`
}

// LogConfig selects the logger. Backend is "std" or "golog".
type LogConfig struct {
	Level   string `yaml:"level"`
	Backend string `yaml:"backend"`
	Prefix  string `yaml:"prefix"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Graph:      GraphConfig{Name: "agent", MaxIterations: 25},
		Checkpoint: CheckpointConfig{Backend: BackendMemory},
		Model:      ModelConfig{Provider: "openai"},
		Log:        LogConfig{Level: "info", Backend: "std"},
	}
}

// LoadEnv loads .env files into the process environment. Variables that
// are already set win. Missing files are skipped; with no arguments
// ".env" in the working directory is tried.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errs.Configf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads a YAML file. ${VAR} references are expanded from the
// environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Configf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errs.Configf("parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	if c.Graph.MaxIterations < 0 {
		return errs.Configf("graph.max_iterations must not be negative")
	}
	if c.Graph.MaxSteps < 0 {
		return errs.Configf("graph.max_steps must not be negative")
	}

	cp := c.Checkpoint
	switch cp.Backend {
	case "", BackendNone, BackendMemory:
	case BackendFile, BackendSqlite:
		if cp.Path == "" {
			return errs.Configf("checkpoint.path is required for the %s backend", cp.Backend)
		}
	case BackendPostgres:
		if cp.DSN == "" {
			return errs.Configf("checkpoint.dsn is required for the postgres backend")
		}
	case BackendRedis:
		if cp.Addr == "" {
			return errs.Configf("checkpoint.addr is required for the redis backend")
		}
	default:
		return errs.Configf("unknown checkpoint backend %q", cp.Backend)
	}

	if c.Model.Provider != "" && c.Model.Provider != "openai" {
		return errs.Configf("unknown model provider %q", c.Model.Provider)
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return errs.Configf("model.temperature must be between 0 and 2")
	}

	switch c.Cache.Backend {
	case "", BackendNone, BackendMemory:
	case BackendRedis:
		if c.Cache.Addr == "" {
			return errs.Configf("cache.addr is required for the redis backend")
		}
	default:
		return errs.Configf("unknown cache backend %q", c.Cache.Backend)
	}

	m := c.Memory
	switch m.Strategy {
	case "", BackendNone:
	case MemoryWindow:
		if m.Size <= 0 {
			return errs.Configf("memory.size must be positive for the window strategy")
		}
	case MemoryGraph:
		if m.TopK < 0 || m.Recent < 0 {
			return errs.Configf("memory.top_k and memory.recent must not be negative")
		}
	default:
		return errs.Configf("unknown memory strategy %q", m.Strategy)
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errs.Configf("log.level: %w", err)
	}
	if !slices.Contains([]string{"", "std", "golog"}, c.Log.Backend) {
		return errs.Configf("unknown log backend %q", c.Log.Backend)
	}
	return nil
}
