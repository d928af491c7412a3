package graph

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cachedGraph(calls *atomic.Int32, ttl time.Duration) *StateGraph[testState] {
	g := NewStateGraph[testState]()
	g.AddNode("slow", "slow", countingNode("slow", calls))
	g.SetEntryPoint("slow")
	g.SetCachePolicy("slow", CachePolicy{TTL: ttl})
	return g
}

func TestCacheHit(t *testing.T) {
	var calls atomic.Int32
	r := mustCompile(t, cachedGraph(&calls, time.Minute))

	first, err := r.Invoke(context.Background(), testState{})
	require.NoError(t, err)
	second, err := r.Invoke(context.Background(), testState{})
	require.NoError(t, err)

	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, first.State, second.State)
	assert.Equal(t, 1, r.cache.len())

	_, err = r.Invoke(context.Background(), testState{Counter: 5})
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestCacheReturnsIndependentCopies(t *testing.T) {
	var calls atomic.Int32
	r := mustCompile(t, cachedGraph(&calls, time.Minute))

	first, err := r.Invoke(context.Background(), testState{})
	require.NoError(t, err)
	first.State.Visited[0] = "mutated"

	second, err := r.Invoke(context.Background(), testState{})
	require.NoError(t, err)
	assert.Equal(t, []string{"slow"}, second.State.Visited)
}

func TestCacheExpiry(t *testing.T) {
	var calls atomic.Int32
	r := mustCompile(t, cachedGraph(&calls, time.Second))

	now := time.Now()
	r.cache.now = func() time.Time { return now }

	_, err := r.Invoke(context.Background(), testState{})
	require.NoError(t, err)

	now = now.Add(500 * time.Millisecond)
	_, err = r.Invoke(context.Background(), testState{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())

	now = now.Add(time.Second)
	_, err = r.Invoke(context.Background(), testState{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestCacheClear(t *testing.T) {
	var calls atomic.Int32
	r := mustCompile(t, cachedGraph(&calls, time.Minute))

	_, err := r.Invoke(context.Background(), testState{})
	require.NoError(t, err)
	r.ClearCache()
	_, err = r.Invoke(context.Background(), testState{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestCacheConcurrentMisses(t *testing.T) {
	var calls atomic.Int32
	g := NewStateGraph[testState]()
	g.AddNode("slow", "slow", NodeFunc[testState](func(_ context.Context, s testState) (NodeOutput[testState], error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return StateOutput(s.Merge(visit("slow"))), nil
	}))
	g.SetEntryPoint("slow")
	g.SetCachePolicy("slow", CachePolicy{TTL: time.Minute})
	r := mustCompile(t, g)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Invoke(context.Background(), testState{})
			assert.NoError(t, err)
			assert.Equal(t, 1, res.State.Counter)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, calls.Load())
}

func TestCacheSkipsErrors(t *testing.T) {
	var calls atomic.Int32
	g := NewStateGraph[testState]()
	g.AddNode("flaky", "flaky", NodeFunc[testState](func(_ context.Context, s testState) (NodeOutput[testState], error) {
		if calls.Add(1) == 1 {
			return NodeOutput[testState]{}, assert.AnError
		}
		return StateOutput(s.Merge(visit("flaky"))), nil
	}))
	g.SetEntryPoint("flaky")
	g.SetCachePolicy("flaky", CachePolicy{TTL: time.Minute})
	r := mustCompile(t, g)

	_, err := r.Invoke(context.Background(), testState{})
	assert.ErrorIs(t, err, assert.AnError)
	res, err := r.Invoke(context.Background(), testState{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.State.Counter)
	assert.EqualValues(t, 2, calls.Load())
}

func TestCachedCommandRoutes(t *testing.T) {
	var calls atomic.Int32
	g := NewStateGraph[testState]()
	g.AddNode("pick", "pick", NodeFunc[testState](func(context.Context, testState) (NodeOutput[testState], error) {
		calls.Add(1)
		return UpdateAndGoto(visit("pick"), "right"), nil
	}))
	g.AddNode("left", "left", incrementNode("left"))
	g.AddNode("right", "right", incrementNode("right"))
	g.SetEntryPoint("pick")
	g.AddEdge("pick", "left")
	g.SetCachePolicy("pick", CachePolicy{TTL: time.Minute})
	r := mustCompile(t, g)

	for range 2 {
		res, err := r.Invoke(context.Background(), testState{})
		require.NoError(t, err)
		assert.Equal(t, []string{"pick", "right"}, res.State.Visited)
	}
	assert.EqualValues(t, 1, calls.Load())
}

type approval struct {
	Question string `json:"question"`
}

func TestCacheMissKeepsNodeOutput(t *testing.T) {
	var calls atomic.Int32
	g := NewStateGraph[testState]()
	g.AddNode("ask", "ask", NodeFunc[testState](func(context.Context, testState) (NodeOutput[testState], error) {
		calls.Add(1)
		return Interrupt[testState](approval{Question: "ok?"}), nil
	}))
	g.SetEntryPoint("ask")
	g.SetCachePolicy("ask", CachePolicy{TTL: time.Minute})
	r := mustCompile(t, g)

	res, err := r.Invoke(context.Background(), testState{})
	require.NoError(t, err)
	assert.True(t, res.Interrupted)
	assert.Equal(t, approval{Question: "ok?"}, res.InterruptValue)

	res, err = r.Invoke(context.Background(), testState{})
	require.NoError(t, err)
	assert.True(t, res.Interrupted)
	assert.EqualValues(t, 1, calls.Load())
}
