package graph

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/store"
	"github.com/smallnest/agentgraph/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterruptBefore(t *testing.T) {
	var bCalls atomic.Int32
	saver := memory.NewMemoryCheckpointStore()
	g := NewStateGraph[testState]()
	g.AddNode("a", "a", incrementNode("a"))
	g.AddNode("b", "b", countingNode("b", &bCalls))
	g.SetEntryPoint("a")
	g.AddEdge("a", "b")
	g.SetInterruptBefore("b")
	r := mustCompile(t, g, WithCheckpointer(saver))

	res, err := r.InvokeWithConfig(context.Background(), testState{}, WithThreadID("t1"))
	require.NoError(t, err)
	assert.True(t, res.Interrupted)
	assert.Equal(t, "b", res.NextNode)
	assert.Equal(t, map[string]any{"reason": "interrupted before node 'b'"}, res.InterruptValue)
	assert.Equal(t, testState{Counter: 1, Visited: []string{"a"}}, res.State)
	assert.Zero(t, bCalls.Load())

	latest, err := saver.Get(context.Background(), store.CheckpointConfig{ThreadID: "t1"})
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "b", latest.NextNode)
}

func TestInterruptAfter(t *testing.T) {
	var aCalls atomic.Int32
	saver := memory.NewMemoryCheckpointStore()
	g := NewStateGraph[testState]()
	g.AddNode("a", "a", countingNode("a", &aCalls))
	g.AddNode("b", "b", incrementNode("b"))
	g.SetEntryPoint("a")
	g.AddEdge("a", "b")
	g.SetInterruptAfter("a")
	r := mustCompile(t, g, WithCheckpointer(saver))

	res, err := r.InvokeWithConfig(context.Background(), testState{}, WithThreadID("t1"))
	require.NoError(t, err)
	assert.True(t, res.Interrupted)
	assert.Equal(t, "b", res.NextNode)
	assert.Equal(t, map[string]any{"reason": "interrupted after node 'a'"}, res.InterruptValue)
	assert.Equal(t, 1, res.State.Counter)
	assert.EqualValues(t, 1, aCalls.Load())

	res, err = r.InvokeWithConfig(context.Background(), testState{}, WithThreadID("t1"))
	require.NoError(t, err)
	assert.True(t, res.Complete())
	assert.Equal(t, testState{Counter: 2, Visited: []string{"a", "b"}}, res.State)
	assert.EqualValues(t, 1, aCalls.Load())
}

func TestInterruptResume(t *testing.T) {
	saver := memory.NewMemoryCheckpointStore()

	g := linearGraph()
	g.SetInterruptBefore("b")
	interrupting := mustCompile(t, g, WithCheckpointer(saver))

	res, err := interrupting.InvokeWithConfig(context.Background(), testState{}, WithThreadID("t1"))
	require.NoError(t, err)
	require.True(t, res.Interrupted)
	assert.Equal(t, "b", res.NextNode)

	plain := mustCompile(t, linearGraph(), WithCheckpointer(saver))
	res, err = plain.InvokeWithConfig(context.Background(), testState{}, WithThreadID("t1"))
	require.NoError(t, err)
	assert.True(t, res.Complete())

	uninterrupted, err := mustCompile(t, linearGraph()).Invoke(context.Background(), testState{})
	require.NoError(t, err)
	assert.Equal(t, uninterrupted.State, res.State)
	assert.Equal(t, testState{Counter: 2, Visited: []string{"a", "b"}}, res.State)
}

func TestResumeOnSameGraphPassesHonoredInterrupt(t *testing.T) {
	g := linearGraph()
	g.SetInterruptBefore("b")
	r := mustCompile(t, g, WithCheckpointer(memory.NewMemoryCheckpointStore()))
	cfg := WithThreadID("t1")

	res, err := r.InvokeWithConfig(context.Background(), testState{}, cfg)
	require.NoError(t, err)
	require.True(t, res.Interrupted)

	res, err = r.InvokeWithConfig(context.Background(), testState{}, cfg)
	require.NoError(t, err)
	assert.True(t, res.Complete())
	assert.Equal(t, []string{"a", "b"}, res.State.Visited)
}

func TestCommandInterrupt(t *testing.T) {
	var asked atomic.Int32
	g := NewStateGraph[testState]()
	g.AddNode("ask", "ask", NodeFunc[testState](func(_ context.Context, s testState) (NodeOutput[testState], error) {
		if asked.Add(1) == 1 {
			update := visit("ask")
			return CommandOutput(Command[testState]{Update: &update, InterruptValue: "need approval"}), nil
		}
		return StateOutput(s), nil
	}))
	g.AddNode("act", "act", incrementNode("act"))
	g.SetEntryPoint("ask")
	g.AddEdge("ask", "act")
	r := mustCompile(t, g, WithCheckpointer(memory.NewMemoryCheckpointStore()))

	res, err := r.InvokeWithConfig(context.Background(), testState{}, WithThreadID("t1"))
	require.NoError(t, err)
	assert.True(t, res.Interrupted)
	assert.Equal(t, "need approval", res.InterruptValue)
	assert.Equal(t, "act", res.NextNode)
	assert.Equal(t, []string{"ask"}, res.State.Visited)

	res, err = r.InvokeWithConfig(context.Background(), testState{}, WithThreadID("t1"))
	require.NoError(t, err)
	assert.True(t, res.Complete())
	assert.Equal(t, []string{"ask", "act"}, res.State.Visited)
	assert.EqualValues(t, 1, asked.Load())
}

func TestCommandInterruptIgnoresGoto(t *testing.T) {
	g := NewStateGraph[testState]()
	g.AddNode("a", "a", NodeFunc[testState](func(context.Context, testState) (NodeOutput[testState], error) {
		return CommandOutput(Command[testState]{Goto: To("c"), InterruptValue: "pause"}), nil
	}))
	g.AddNode("b", "b", incrementNode("b"))
	g.AddNode("c", "c", incrementNode("c"))
	g.SetEntryPoint("a")
	g.AddEdge("a", "b")
	cp := memory.NewMemoryCheckpointStore()
	r := mustCompile(t, g, WithCheckpointer(cp))

	res, err := r.InvokeWithConfig(context.Background(), testState{}, WithThreadID("t1"))
	require.NoError(t, err)
	assert.True(t, res.Interrupted)
	assert.Equal(t, "pause", res.InterruptValue)
	assert.Equal(t, "b", res.NextNode)

	latest, err := cp.Get(context.Background(), store.CheckpointConfig{ThreadID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "b", latest.NextNode)
}

func TestInterruptWithoutCheckpointer(t *testing.T) {
	g := linearGraph()
	g.SetInterruptBefore("b")

	res, err := mustCompile(t, g).Invoke(context.Background(), testState{})
	require.NoError(t, err)
	assert.True(t, res.Interrupted)
	assert.Equal(t, "b", res.NextNode)
}

func TestCompletedThread(t *testing.T) {
	var aCalls atomic.Int32
	g := NewStateGraph[testState]()
	g.AddNode("a", "a", countingNode("a", &aCalls))
	g.SetEntryPoint("a")
	r := mustCompile(t, g, WithCheckpointer(memory.NewMemoryCheckpointStore()))

	res, err := r.InvokeWithConfig(context.Background(), testState{}, WithThreadID("t1"))
	require.NoError(t, err)
	require.Equal(t, 1, res.State.Counter)

	res, err = r.InvokeWithConfig(context.Background(), testState{Counter: 100}, WithThreadID("t1"))
	require.NoError(t, err)
	assert.True(t, res.Complete())
	assert.Equal(t, 1, res.State.Counter, "the stored state wins")
	assert.EqualValues(t, 1, aCalls.Load())

	res, err = r.InvokeWithConfig(context.Background(), testState{Counter: 10}, &Config{ThreadID: "t1", Restart: true})
	require.NoError(t, err)
	assert.Equal(t, testState{Counter: 12, Visited: []string{"a", "a"}}, res.State)
	assert.EqualValues(t, 2, aCalls.Load())
}

func TestCheckpointHistory(t *testing.T) {
	saver := memory.NewMemoryCheckpointStore()
	r := mustCompile(t, linearGraph(), WithCheckpointer(saver))
	cfg := WithThreadID("t1")

	_, err := r.InvokeWithConfig(context.Background(), testState{}, cfg)
	require.NoError(t, err)

	history, err := r.GetStateHistory(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, "b", history[0].NextNode)
	assert.Equal(t, "a", history[0].Metadata["source"])
	assert.Equal(t, 1, history[0].Metadata["step"])
	assert.Empty(t, history[0].ParentID)
	assert.Equal(t, []string{"a"}, history[0].State.Visited)

	assert.Equal(t, END, history[1].NextNode)
	assert.Equal(t, "b", history[1].Metadata["source"])
	assert.Equal(t, history[0].CheckpointID, history[1].ParentID)

	snap, err := r.GetState(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, history[1].CheckpointID, snap.CheckpointID)
	assert.Equal(t, 2, snap.State.Counter)

	snap, err = r.GetState(context.Background(), WithThreadID("unknown"))
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestUpdateState(t *testing.T) {
	saver := memory.NewMemoryCheckpointStore()
	g := linearGraph()
	g.SetInterruptBefore("b")
	r := mustCompile(t, g, WithCheckpointer(saver))
	cfg := WithThreadID("t1")

	_, err := r.InvokeWithConfig(context.Background(), testState{}, cfg)
	require.NoError(t, err)

	before, err := r.GetStateHistory(context.Background(), cfg)
	require.NoError(t, err)

	snap, err := r.UpdateState(context.Background(), cfg, testState{Counter: 10, Visited: []string{"human"}})
	require.NoError(t, err)
	assert.Equal(t, "b", snap.NextNode)
	assert.Equal(t, "update_state", snap.Metadata["source"])
	assert.Equal(t, 11, snap.State.Counter)

	after, err := r.GetStateHistory(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, after, len(before)+1)
	assert.Equal(t, before[len(before)-1].CheckpointID, after[len(after)-1].ParentID)

	res, err := r.InvokeWithConfig(context.Background(), testState{}, cfg)
	require.NoError(t, err)
	assert.True(t, res.Complete())
	assert.Equal(t, testState{Counter: 12, Visited: []string{"a", "human", "b"}}, res.State)
}

func TestUpdateStateErrors(t *testing.T) {
	r := mustCompile(t, linearGraph())
	_, err := r.UpdateState(context.Background(), WithThreadID("t1"), testState{})
	assert.ErrorIs(t, err, ErrNoCheckpointer)
	_, err = r.GetState(context.Background(), WithThreadID("t1"))
	assert.ErrorIs(t, err, ErrNoCheckpointer)

	r = mustCompile(t, linearGraph(), WithCheckpointer(memory.NewMemoryCheckpointStore()))
	_, err = r.UpdateState(context.Background(), WithThreadID("t1"), testState{})
	assert.ErrorIs(t, err, ErrNoCheckpoint)
	assert.Equal(t, errs.KindGraph, errs.KindOf(err))

	_, err = r.UpdateState(context.Background(), nil, testState{})
	assert.EqualError(t, err, "graph error: thread id is required")
}

func TestDeleteThread(t *testing.T) {
	r := mustCompile(t, linearGraph(), WithCheckpointer(memory.NewMemoryCheckpointStore()))
	cfg := WithThreadID("t1")
	_, err := r.InvokeWithConfig(context.Background(), testState{}, cfg)
	require.NoError(t, err)

	require.NoError(t, r.DeleteThread(context.Background(), cfg))
	snap, err := r.GetState(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

type failingCheckpointer struct {
	putErr error
	latest *store.Checkpoint
}

func (f *failingCheckpointer) Put(context.Context, store.CheckpointConfig, *store.Checkpoint) error {
	return f.putErr
}

func (f *failingCheckpointer) Get(context.Context, store.CheckpointConfig) (*store.Checkpoint, error) {
	return f.latest, nil
}

func (f *failingCheckpointer) List(context.Context, store.CheckpointConfig) ([]*store.Checkpoint, error) {
	return nil, nil
}

func TestCheckpointWriteFailure(t *testing.T) {
	saver := &failingCheckpointer{putErr: errors.New("disk full")}
	r := mustCompile(t, linearGraph(), WithCheckpointer(saver))

	_, err := r.InvokeWithConfig(context.Background(), testState{}, WithThreadID("t1"))
	require.Error(t, err)
	assert.Equal(t, "graph error: checkpoint: disk full", err.Error())
	assert.ErrorIs(t, err, saver.putErr)
}

func TestCheckpointDecodeFailure(t *testing.T) {
	saver := &failingCheckpointer{latest: &store.Checkpoint{ID: "x", State: json.RawMessage(`{"counter":"nope"}`), NextNode: "b"}}
	r := mustCompile(t, linearGraph(), WithCheckpointer(saver))

	_, err := r.InvokeWithConfig(context.Background(), testState{}, WithThreadID("t1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graph error: deserialize state:")
}

type unencodable struct{}

func (unencodable) Merge(o unencodable) unencodable { return o }

func (unencodable) MarshalJSON() ([]byte, error) { return nil, errors.New("cannot encode") }

func TestCheckpointEncodeFailure(t *testing.T) {
	g := NewStateGraph[unencodable]()
	g.AddNodeFunc("a", "a", func(_ context.Context, s unencodable) (unencodable, error) { return s, nil })
	g.SetEntryPoint("a")
	r := mustCompile(t, g, WithCheckpointer(memory.NewMemoryCheckpointStore()))

	_, err := r.InvokeWithConfig(context.Background(), unencodable{}, WithThreadID("t1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graph error: serialize state:")
}

func TestNoCheckpointOnNodeError(t *testing.T) {
	saver := memory.NewMemoryCheckpointStore()
	g := NewStateGraph[testState]()
	g.AddNode("a", "a", incrementNode("a"))
	g.AddNode("b", "b", NodeFunc[testState](func(context.Context, testState) (NodeOutput[testState], error) {
		return NodeOutput[testState]{}, errors.New("fail")
	}))
	g.SetEntryPoint("a")
	g.AddEdge("a", "b")
	r := mustCompile(t, g, WithCheckpointer(saver))

	_, err := r.InvokeWithConfig(context.Background(), testState{}, WithThreadID("t1"))
	require.Error(t, err)

	history, err := saver.List(context.Background(), store.CheckpointConfig{ThreadID: "t1"})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "b", history[0].NextNode)
}

func TestNoCheckpointAfterCancel(t *testing.T) {
	saver := memory.NewMemoryCheckpointStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g := NewStateGraph[testState]()
	g.AddNode("a", "a", NodeFunc[testState](func(_ context.Context, s testState) (NodeOutput[testState], error) {
		cancel()
		return StateOutput(s.Merge(visit("a"))), nil
	}))
	g.AddNode("b", "b", incrementNode("b"))
	g.SetEntryPoint("a")
	g.AddEdge("a", "b")
	r := mustCompile(t, g, WithCheckpointer(saver))

	_, err := r.InvokeWithConfig(ctx, testState{}, WithThreadID("t1"))
	assert.ErrorIs(t, err, context.Canceled)

	history, err := saver.List(context.Background(), store.CheckpointConfig{ThreadID: "t1"})
	require.NoError(t, err)
	assert.Empty(t, history)
}
