package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/smallnest/agentgraph/store"
)

// MemoryCheckpointStore keeps an oldest-first checkpoint slice per thread.
type MemoryCheckpointStore struct {
	mu      sync.RWMutex
	threads map[string][]*store.Checkpoint
}

var (
	_ store.Checkpointer  = (*MemoryCheckpointStore)(nil)
	_ store.ThreadDeleter = (*MemoryCheckpointStore)(nil)
)

// NewMemoryCheckpointStore creates an empty in-memory checkpointer.
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{threads: make(map[string][]*store.Checkpoint)}
}

func clone(cp *store.Checkpoint) *store.Checkpoint {
	c := *cp
	c.State = slices.Clone(cp.State)
	if cp.Metadata != nil {
		c.Metadata = make(map[string]any, len(cp.Metadata))
		for k, v := range cp.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// Put appends cp to the thread history, or replaces the entry with the same id.
func (m *MemoryCheckpointStore) Put(_ context.Context, cfg store.CheckpointConfig, cp *store.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := m.threads[cfg.ThreadID]
	for i, existing := range history {
		if existing.ID == cp.ID {
			history[i] = clone(cp)
			return nil
		}
	}
	m.threads[cfg.ThreadID] = append(history, clone(cp))
	return nil
}

func (m *MemoryCheckpointStore) Get(_ context.Context, cfg store.CheckpointConfig) (*store.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.threads[cfg.ThreadID]
	if len(history) == 0 {
		return nil, nil
	}
	return clone(history[len(history)-1]), nil
}

func (m *MemoryCheckpointStore) List(_ context.Context, cfg store.CheckpointConfig) ([]*store.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.threads[cfg.ThreadID]
	out := make([]*store.Checkpoint, len(history))
	for i, cp := range history {
		out[i] = clone(cp)
	}
	return out, nil
}

func (m *MemoryCheckpointStore) DeleteThread(_ context.Context, cfg store.CheckpointConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, cfg.ThreadID)
	return nil
}

// MemoryStore is an in-memory store.Store.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]map[string]*store.Item
	now   func() time.Time
}

var _ store.Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty key/value store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]map[string]*store.Item), now: time.Now}
}

func copyItem(it *store.Item) *store.Item {
	c := *it
	c.Namespace = slices.Clone(it.Namespace)
	c.Value = make(map[string]any, len(it.Value))
	for k, v := range it.Value {
		c.Value[k] = v
	}
	return &c
}

func (s *MemoryStore) Get(_ context.Context, namespace []string, key string) (*store.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[store.NamespaceKey(namespace)][key]
	if !ok {
		return nil, nil
	}
	return copyItem(it), nil
}

func (s *MemoryStore) Put(_ context.Context, namespace []string, key string, value map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns := store.NamespaceKey(namespace)
	bucket, ok := s.items[ns]
	if !ok {
		bucket = make(map[string]*store.Item)
		s.items[ns] = bucket
	}
	now := s.now()
	created := now
	if prev, ok := bucket[key]; ok {
		created = prev.CreatedAt
	}
	bucket[key] = copyItem(&store.Item{
		Namespace: namespace,
		Key:       key,
		Value:     value,
		CreatedAt: created,
		UpdatedAt: now,
	})
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, namespace []string, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns := store.NamespaceKey(namespace)
	delete(s.items[ns], key)
	if len(s.items[ns]) == 0 {
		delete(s.items, ns)
	}
	return nil
}

// Search returns matches ordered by namespace then key.
func (s *MemoryStore) Search(_ context.Context, namespacePrefix []string, query string, limit int) ([]*store.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*store.Item
	for ns, bucket := range s.items {
		if !store.HasNamespacePrefix(store.SplitNamespaceKey(ns), namespacePrefix) {
			continue
		}
		for _, it := range bucket {
			if store.MatchesQuery(it, query) {
				out = append(out, copyItem(it))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := store.NamespaceKey(out[i].Namespace), store.NamespaceKey(out[j].Namespace)
		if a != b {
			return a < b
		}
		return out[i].Key < out[j].Key
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListNamespaces(_ context.Context, prefix []string) ([][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for ns := range s.items {
		if store.HasNamespacePrefix(store.SplitNamespaceKey(ns), prefix) {
			keys = append(keys, ns)
		}
	}
	sort.Strings(keys)
	out := make([][]string, len(keys))
	for i, k := range keys {
		out[i] = store.SplitNamespaceKey(k)
	}
	return out, nil
}
