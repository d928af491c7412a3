package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/smallnest/agentgraph/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCheckpointStore_New(t *testing.T) {
	t.Parallel()

	ms := NewMemoryCheckpointStore()
	require.NotNil(t, ms)

	var _ store.Checkpointer = ms
}

func TestMemoryCheckpointStore_BasicOperations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := store.CheckpointConfig{ThreadID: "t1"}

	t.Run("empty thread", func(t *testing.T) {
		t.Parallel()
		ms := NewMemoryCheckpointStore()

		cp, err := ms.Get(ctx, cfg)
		assert.NoError(t, err)
		assert.Nil(t, cp)

		list, err := ms.List(ctx, cfg)
		assert.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("put get list", func(t *testing.T) {
		t.Parallel()
		ms := NewMemoryCheckpointStore()

		first := &store.Checkpoint{ID: "cp-1", State: json.RawMessage(`{"counter":1}`), NextNode: "b", CreatedAt: time.Now()}
		second := &store.Checkpoint{ID: "cp-2", State: json.RawMessage(`{"counter":2}`), NextNode: "__end__", ParentID: "cp-1"}
		require.NoError(t, ms.Put(ctx, cfg, first))
		require.NoError(t, ms.Put(ctx, cfg, second))

		latest, err := ms.Get(ctx, cfg)
		require.NoError(t, err)
		assert.Equal(t, "cp-2", latest.ID)
		assert.Equal(t, "cp-1", latest.ParentID)

		list, err := ms.List(ctx, cfg)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "cp-1", list[0].ID)
		assert.Equal(t, "cp-2", list[1].ID)
	})

	t.Run("put upserts by id", func(t *testing.T) {
		t.Parallel()
		ms := NewMemoryCheckpointStore()

		require.NoError(t, ms.Put(ctx, cfg, &store.Checkpoint{ID: "cp-1", NextNode: "a"}))
		require.NoError(t, ms.Put(ctx, cfg, &store.Checkpoint{ID: "cp-1", NextNode: "b"}))

		list, err := ms.List(ctx, cfg)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "b", list[0].NextNode)
	})

	t.Run("threads are isolated", func(t *testing.T) {
		t.Parallel()
		ms := NewMemoryCheckpointStore()

		require.NoError(t, ms.Put(ctx, cfg, &store.Checkpoint{ID: "x"}))
		other, err := ms.Get(ctx, store.CheckpointConfig{ThreadID: "t2"})
		assert.NoError(t, err)
		assert.Nil(t, other)
	})

	t.Run("returned checkpoints are copies", func(t *testing.T) {
		t.Parallel()
		ms := NewMemoryCheckpointStore()

		require.NoError(t, ms.Put(ctx, cfg, &store.Checkpoint{ID: "cp", State: json.RawMessage(`{"a":1}`), Metadata: map[string]any{"source": "a"}}))
		got, _ := ms.Get(ctx, cfg)
		got.State[2] = 'z'
		got.Metadata["source"] = "mutated"

		again, _ := ms.Get(ctx, cfg)
		assert.Equal(t, `{"a":1}`, string(again.State))
		assert.Equal(t, "a", again.Metadata["source"])
	})

	t.Run("delete thread", func(t *testing.T) {
		t.Parallel()
		ms := NewMemoryCheckpointStore()

		require.NoError(t, ms.Put(ctx, cfg, &store.Checkpoint{ID: "cp"}))
		require.NoError(t, ms.DeleteThread(ctx, cfg))
		got, err := ms.Get(ctx, cfg)
		assert.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestMemoryCheckpointStore_Concurrent(t *testing.T) {
	t.Parallel()

	ms := NewMemoryCheckpointStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfg := store.CheckpointConfig{ThreadID: fmt.Sprintf("thread-%d", i%4)}
			_ = ms.Put(ctx, cfg, &store.Checkpoint{ID: fmt.Sprintf("cp-%d", i)})
			_, _ = ms.Get(ctx, cfg)
		}(i)
	}
	wg.Wait()

	total := 0
	for i := 0; i < 4; i++ {
		list, err := ms.List(ctx, store.CheckpointConfig{ThreadID: fmt.Sprintf("thread-%d", i)})
		require.NoError(t, err)
		total += len(list)
	}
	assert.Equal(t, 20, total)
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	missing, err := s.Get(ctx, []string{"users"}, "nobody")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.Put(ctx, []string{"users", "alice"}, "prefs", map[string]any{"lang": "Go"}))
	require.NoError(t, s.Put(ctx, []string{"users", "bob"}, "prefs", map[string]any{"lang": "Rust"}))
	require.NoError(t, s.Put(ctx, []string{"docs"}, "readme", map[string]any{"text": "hello"}))

	item, err := s.Get(ctx, []string{"users", "alice"}, "prefs")
	require.NoError(t, err)
	assert.Equal(t, "Go", item.Value["lang"])
	assert.Equal(t, []string{"users", "alice"}, item.Namespace)

	found, err := s.Search(ctx, []string{"users"}, "go", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, []string{"users", "alice"}, found[0].Namespace)

	all, err := s.Search(ctx, []string{"users"}, "", 1)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	namespaces, err := s.ListNamespaces(ctx, []string{"users"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"users", "alice"}, {"users", "bob"}}, namespaces)

	require.NoError(t, s.Delete(ctx, []string{"users", "alice"}, "prefs"))
	item, err = s.Get(ctx, []string{"users", "alice"}, "prefs")
	assert.NoError(t, err)
	assert.Nil(t, item)

	namespaces, err = s.ListNamespaces(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, namespaces, 2)
}

func TestMemoryStore_UpdateKeepsCreatedAt(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	tick := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, []string{"ns"}, "k", map[string]any{"v": 1}))
	require.NoError(t, s.Put(ctx, []string{"ns"}, "k", map[string]any{"v": 2}))

	item, err := s.Get(ctx, []string{"ns"}, "k")
	require.NoError(t, err)
	assert.True(t, item.UpdatedAt.After(item.CreatedAt))
	assert.Equal(t, 2, item.Value["v"])
}
