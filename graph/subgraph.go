package graph

import (
	"context"

	"github.com/smallnest/agentgraph/store"
)

// Subgraph runs a compiled child graph as a node of a parent graph. The
// parent's thread records the result. Each visit of a persistent parent
// run gives the child a thread of its own, derived from the parent's.
type Subgraph[S State[S], C State[C]] struct {
	name      string
	runnable  *StateRunnable[C]
	toChild   func(parent S) C
	fromChild func(parent S, child C) S
}

// NewSubgraph wraps runnable. toChild builds the child input from the parent
// state; fromChild builds the parent's replacement state from the child result.
func NewSubgraph[S State[S], C State[C]](name string, runnable *StateRunnable[C], toChild func(S) C, fromChild func(S, C) S) *Subgraph[S, C] {
	return &Subgraph[S, C]{name: name, runnable: runnable, toChild: toChild, fromChild: fromChild}
}

// NewSameStateSubgraph wraps a child over the parent's own state type. The
// child's final state replaces the parent state.
func NewSameStateSubgraph[S State[S]](name string, runnable *StateRunnable[S]) *Subgraph[S, S] {
	return NewSubgraph(name, runnable,
		func(s S) S { return s },
		func(_ S, child S) S { return child },
	)
}

// Process runs the child to completion. A child interrupt becomes an
// interrupt of the parent carrying the child's payload; the parent state is
// left as it was.
//
// When the parent run is persistent the child run is checkpointed in the
// parent's backend under its own thread, and the parent resumes at this
// node, so the next invocation continues the paused child run.
func (s *Subgraph[S, C]) Process(ctx context.Context, state S) (NodeOutput[S], error) {
	config := &Config{}
	parent := GetConfig(ctx)
	if parent != nil {
		config = &Config{Tags: parent.Tags, Metadata: parent.Metadata, Configurable: parent.Configurable}
	}

	resumeThread := subgraphResumeThread(ctx)
	ctx = withSubgraphResume(ctx, "")

	cp := s.runnable.checkpointer
	if cp == nil {
		cp = checkpointerFrom(ctx)
	}
	persistent := parent != nil && parent.ThreadID != "" && cp != nil
	if persistent {
		config.ThreadID = resumeThread
		if config.ThreadID == "" {
			config.ThreadID = parent.ThreadID + ":" + s.name + ":" + store.NewCheckpointID()
		}
		config.checkpointer = cp
	}

	res, err := s.runnable.InvokeWithConfig(ctx, s.toChild(state), config)
	if err != nil {
		return NodeOutput[S]{}, err
	}

	if res.Interrupted {
		sub := subgraphInterrupt{name: s.name, value: res.InterruptValue}
		if !persistent {
			return CommandOutput(Command[S]{InterruptValue: sub.payload()}), nil
		}
		sub.thread = config.ThreadID
		return CommandOutput(Command[S]{InterruptValue: sub}), nil
	}
	return StateOutput(s.fromChild(state, res.State)), nil
}

// subgraphInterrupt is the interrupt value of a paused, persisted child run.
type subgraphInterrupt struct {
	name   string
	thread string
	value  any
}

func (i subgraphInterrupt) payload() map[string]any {
	return map[string]any{"subgraph": i.name, "value": i.value}
}

// AddSubgraph adds sub as a node named name.
func AddSubgraph[S State[S], C State[C]](g *StateGraph[S], name string, description string, sub *Subgraph[S, C]) {
	g.AddNode(name, description, sub)
}
