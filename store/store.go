package store

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// Item is a value held in a Store.
type Item struct {
	Namespace []string       `json:"namespace"`
	Key       string         `json:"key"`
	Value     map[string]any `json:"value"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Store is a namespaced key/value store that nodes and tools can reach
// through the graph runtime. Get returns nil and no error for a missing key.
type Store interface {
	Get(ctx context.Context, namespace []string, key string) (*Item, error)
	Put(ctx context.Context, namespace []string, key string, value map[string]any) error
	Delete(ctx context.Context, namespace []string, key string) error
	// Search returns items under namespacePrefix whose value contains query
	// (case-insensitive, over the JSON encoding). An empty query matches
	// everything; limit <= 0 means no limit.
	Search(ctx context.Context, namespacePrefix []string, query string, limit int) ([]*Item, error)
	// ListNamespaces returns the distinct namespaces starting with prefix.
	ListNamespaces(ctx context.Context, prefix []string) ([][]string, error)
}

// HasNamespacePrefix reports whether ns starts with prefix.
func HasNamespacePrefix(ns, prefix []string) bool {
	return len(ns) >= len(prefix) && slices.Equal(ns[:len(prefix)], prefix)
}

// MatchesQuery reports whether item's value contains query.
func MatchesQuery(item *Item, query string) bool {
	if query == "" {
		return true
	}
	b, err := sonic.Marshal(item.Value)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(b)), strings.ToLower(query))
}

// NamespaceKey joins a namespace into a single string key.
func NamespaceKey(ns []string) string {
	return strings.Join(ns, "\x1f")
}

// SplitNamespaceKey is the inverse of NamespaceKey.
func SplitNamespaceKey(key string) []string {
	if key == "" {
		return []string{}
	}
	return strings.Split(key, "\x1f")
}
