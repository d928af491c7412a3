package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/smallnest/agentgraph/store"
)

// RedisCheckpointStore implements store.Checkpointer using Redis.
//
// Each thread keeps a list of checkpoint ids in insertion order; every
// checkpoint is stored as JSON under its own key.
type RedisCheckpointStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var (
	_ store.Checkpointer  = (*RedisCheckpointStore)(nil)
	_ store.ThreadDeleter = (*RedisCheckpointStore)(nil)
)

// RedisOptions configuration for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "agentgraph:"
	TTL      time.Duration // Expiration for checkpoints, default 0 (no expiration)
}

// NewRedisCheckpointStore creates a new Redis checkpoint store
func NewRedisCheckpointStore(opts RedisOptions) *RedisCheckpointStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisCheckpointStoreWithClient(client, opts)
}

// NewRedisCheckpointStoreWithClient uses an existing client; connection
// fields of opts are ignored.
func NewRedisCheckpointStoreWithClient(client redis.UniversalClient, opts RedisOptions) *RedisCheckpointStore {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "agentgraph:"
	}
	return &RedisCheckpointStore{
		client: client,
		prefix: prefix,
		ttl:    opts.TTL,
	}
}

// Close closes the underlying client.
func (s *RedisCheckpointStore) Close() error {
	return s.client.Close()
}

func (s *RedisCheckpointStore) checkpointKey(threadID, id string) string {
	return fmt.Sprintf("%scheckpoint:%s:%s", s.prefix, threadID, id)
}

func (s *RedisCheckpointStore) threadKey(threadID string) string {
	return fmt.Sprintf("%sthread:%s:checkpoints", s.prefix, threadID)
}

// Put stores cp and appends its id to the thread history unless the id is
// already present.
func (s *RedisCheckpointStore) Put(ctx context.Context, cfg store.CheckpointConfig, cp *store.Checkpoint) error {
	if cp.CreatedAt.IsZero() {
		c := *cp
		c.CreatedAt = time.Now()
		cp = &c
	}
	data, err := sonic.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	key := s.checkpointKey(cfg.ThreadID, cp.ID)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to save checkpoint to redis: %w", err)
	}

	threadKey := s.threadKey(cfg.ThreadID)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, s.ttl)
	if exists == 0 {
		pipe.RPush(ctx, threadKey, cp.ID)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, threadKey, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save checkpoint to redis: %w", err)
	}
	return nil
}

// Get returns the checkpoint at the tail of the thread history.
func (s *RedisCheckpointStore) Get(ctx context.Context, cfg store.CheckpointConfig) (*store.Checkpoint, error) {
	id, err := s.client.LIndex(ctx, s.threadKey(cfg.ThreadID), -1).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint from redis: %w", err)
	}

	data, err := s.client.Get(ctx, s.checkpointKey(cfg.ThreadID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint from redis: %w", err)
	}

	var cp store.Checkpoint
	if err := sonic.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// List returns the thread history oldest first. Expired entries are skipped.
func (s *RedisCheckpointStore) List(ctx context.Context, cfg store.CheckpointConfig) ([]*store.Checkpoint, error) {
	ids, err := s.client.LRange(ctx, s.threadKey(cfg.ThreadID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints for thread %s: %w", cfg.ThreadID, err)
	}
	if len(ids) == 0 {
		return []*store.Checkpoint{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.checkpointKey(cfg.ThreadID, id)
	}

	results, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch checkpoints: %w", err)
	}

	checkpoints := make([]*store.Checkpoint, 0, len(results))
	for _, result := range results {
		strData, ok := result.(string)
		if !ok {
			continue
		}
		var cp store.Checkpoint
		if err := sonic.UnmarshalString(strData, &cp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
		}
		checkpoints = append(checkpoints, &cp)
	}
	return checkpoints, nil
}

// DeleteThread removes every checkpoint of the thread and its index.
func (s *RedisCheckpointStore) DeleteThread(ctx context.Context, cfg store.CheckpointConfig) error {
	threadKey := s.threadKey(cfg.ThreadID)
	ids, err := s.client.LRange(ctx, threadKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to get checkpoints for clearing: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, s.checkpointKey(cfg.ThreadID, id))
	}
	pipe.Del(ctx, threadKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear checkpoints: %w", err)
	}
	return nil
}
