package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/llms"
)

// RedisCache stores responses as JSON strings under Prefix+key.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ llms.LlmCache = (*RedisCache)(nil)

// RedisCacheOptions configures NewRedisCache.
type RedisCacheOptions struct {
	Prefix string        // default "agentgraph:llm:"
	TTL    time.Duration // zero keeps entries until Clear
}

func NewRedisCache(client redis.UniversalClient, opts RedisCacheOptions) *RedisCache {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "agentgraph:llm:"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: opts.TTL}
}

func (r *RedisCache) Get(ctx context.Context, key string) (*llms.ChatResponse, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Wrap(errs.KindCache, err)
	}
	var resp llms.ChatResponse
	if err := sonic.Unmarshal(data, &resp); err != nil {
		return nil, false, errs.Newf(errs.KindCache, "decode %s: %w", key, err)
	}
	return &resp, true, nil
}

func (r *RedisCache) Put(ctx context.Context, key string, resp *llms.ChatResponse) error {
	data, err := sonic.Marshal(resp)
	if err != nil {
		return errs.Newf(errs.KindCache, "encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		return errs.Wrap(errs.KindCache, err)
	}
	return nil
}

// Clear deletes every key under the prefix.
func (r *RedisCache) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errs.Wrap(errs.KindCache, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return errs.Wrap(errs.KindCache, err)
	}
	return nil
}
