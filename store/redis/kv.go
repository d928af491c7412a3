package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/smallnest/agentgraph/store"
)

// RedisStore implements store.Store. Items are JSON strings; a set of
// namespaces and a key set per namespace act as indexes for Search and
// ListNamespaces.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

var _ store.Store = (*RedisStore)(nil)

// NewRedisStore creates a key/value store on client. An empty prefix
// defaults to "agentgraph:".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "agentgraph:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) itemKey(ns, key string) string {
	return fmt.Sprintf("%sstore:item:%s:%s", s.prefix, ns, key)
}

func (s *RedisStore) keysKey(ns string) string {
	return fmt.Sprintf("%sstore:keys:%s", s.prefix, ns)
}

func (s *RedisStore) namespacesKey() string {
	return s.prefix + "store:namespaces"
}

func (s *RedisStore) Get(ctx context.Context, namespace []string, key string) (*store.Item, error) {
	data, err := s.client.Get(ctx, s.itemKey(store.NamespaceKey(namespace), key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	var item store.Item
	if err := sonic.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return &item, nil
}

func (s *RedisStore) Put(ctx context.Context, namespace []string, key string, value map[string]any) error {
	ns := store.NamespaceKey(namespace)
	now := time.Now()
	item := store.Item{Namespace: namespace, Key: key, Value: value, CreatedAt: now, UpdatedAt: now}

	prev, err := s.Get(ctx, namespace, key)
	if err != nil {
		return err
	}
	if prev != nil {
		item.CreatedAt = prev.CreatedAt
	}

	data, err := sonic.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.itemKey(ns, key), data, 0)
	pipe.SAdd(ctx, s.keysKey(ns), key)
	pipe.SAdd(ctx, s.namespacesKey(), ns)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, namespace []string, key string) error {
	ns := store.NamespaceKey(namespace)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.itemKey(ns, key))
	pipe.SRem(ctx, s.keysKey(ns), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	remaining, err := s.client.SCard(ctx, s.keysKey(ns)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if remaining == 0 {
		if err := s.client.SRem(ctx, s.namespacesKey(), ns).Err(); err != nil {
			return fmt.Errorf("failed to delete item: %w", err)
		}
	}
	return nil
}

func (s *RedisStore) matchingNamespaces(ctx context.Context, prefix []string) ([]string, error) {
	all, err := s.client.SMembers(ctx, s.namespacesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}
	var out []string
	for _, ns := range all {
		if store.HasNamespacePrefix(store.SplitNamespaceKey(ns), prefix) {
			out = append(out, ns)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Search returns matches ordered by namespace then key.
func (s *RedisStore) Search(ctx context.Context, namespacePrefix []string, query string, limit int) ([]*store.Item, error) {
	namespaces, err := s.matchingNamespaces(ctx, namespacePrefix)
	if err != nil {
		return nil, err
	}

	var out []*store.Item
	for _, ns := range namespaces {
		keys, err := s.client.SMembers(ctx, s.keysKey(ns)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list keys: %w", err)
		}
		if len(keys) == 0 {
			continue
		}
		sort.Strings(keys)

		itemKeys := make([]string, len(keys))
		for i, k := range keys {
			itemKeys[i] = s.itemKey(ns, k)
		}
		values, err := s.client.MGet(ctx, itemKeys...).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to fetch items: %w", err)
		}
		for _, v := range values {
			str, ok := v.(string)
			if !ok {
				continue
			}
			var item store.Item
			if err := sonic.UnmarshalString(str, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal item: %w", err)
			}
			if store.MatchesQuery(&item, query) {
				out = append(out, &item)
				if limit > 0 && len(out) == limit {
					return out, nil
				}
			}
		}
	}
	return out, nil
}

func (s *RedisStore) ListNamespaces(ctx context.Context, prefix []string) ([][]string, error) {
	namespaces, err := s.matchingNamespaces(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([][]string, len(namespaces))
	for i, ns := range namespaces {
		out[i] = store.SplitNamespaceKey(ns)
	}
	return out, nil
}
