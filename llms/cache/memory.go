// Package cache provides llms.LlmCache backends.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/llms"
)

type entry struct {
	data    []byte
	expires time.Time
}

// MemoryCache keeps encoded responses in a map. Entries older than TTL are
// treated as misses and dropped on access; a zero TTL never expires.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

var _ llms.LlmCache = (*MemoryCache)(nil)

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{entries: make(map[string]entry), ttl: ttl, now: time.Now}
}

func (m *MemoryCache) Get(_ context.Context, key string) (*llms.ChatResponse, bool, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return nil, false, nil
	}

	var resp llms.ChatResponse
	if err := sonic.Unmarshal(e.data, &resp); err != nil {
		return nil, false, errs.Newf(errs.KindCache, "decode %s: %w", key, err)
	}
	return &resp, true, nil
}

func (m *MemoryCache) Put(_ context.Context, key string, resp *llms.ChatResponse) error {
	data, err := sonic.Marshal(resp)
	if err != nil {
		return errs.Newf(errs.KindCache, "encode %s: %w", key, err)
	}
	e := entry{data: data}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Clear(context.Context) error {
	m.mu.Lock()
	clear(m.entries)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
