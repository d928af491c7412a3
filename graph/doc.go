// Package graph provides the core graph construction and execution engine for agentgraph.
//
// A graph is a set of named nodes over a state type S, connected by fixed
// and conditional edges. Compiling a graph validates it; the compiled
// StateRunnable executes nodes one at a time, persists a checkpoint after
// each transition and pauses at interrupt points.
//
// # Core Concepts
//
// ## State
// Every state type implements State: a total Merge that folds a partial
// update into the current value. A node that returns a plain state replaces
// the current state; a node that returns a Command with an Update has it
// merged.
//
// ## Nodes and Edges
// Nodes implement Node or are plain functions registered with AddNodeFunc.
// After a node runs, the first conditional edge from it picks the next node;
// without one the first fixed edge does; without either the run ends.
// A Command's Goto overrides both.
//
// # Key Features
//
//   - Checkpointing with resume, state inspection and UpdateState
//   - Interrupts before or after nodes, or from inside a node via Command
//   - Per-node output caching keyed by a hash of the input state
//   - Lazy streaming with iter.Seq2 in several modes
//   - OpenTelemetry spans and metrics
//   - Mermaid, ASCII and DOT export
//
// # Example Usage
//
//	type Counter struct {
//		N       int      `json:"n"`
//		Visited []string `json:"visited"`
//	}
//
//	func (c Counter) Merge(o Counter) Counter {
//		c.N += o.N
//		c.Visited = append(slices.Clone(c.Visited), o.Visited...)
//		return c
//	}
//
//	g := graph.NewStateGraph[Counter]()
//	g.AddNodeFunc("a", "first step", func(ctx context.Context, s Counter) (Counter, error) {
//		return s.Merge(Counter{N: 1, Visited: []string{"a"}}), nil
//	})
//	g.AddNodeFunc("b", "second step", func(ctx context.Context, s Counter) (Counter, error) {
//		return s.Merge(Counter{N: 1, Visited: []string{"b"}}), nil
//	})
//	g.SetEntryPoint("a")
//	g.AddEdge("a", "b")
//	g.AddEdge("b", graph.END)
//
//	runnable, err := g.Compile()
//	if err != nil {
//		return err
//	}
//	res, err := runnable.Invoke(ctx, Counter{})
//	// res.State.N == 2
//
// ## Interrupts and resume
//
//	g.SetInterruptBefore("b")
//	runnable, _ := g.Compile(graph.WithCheckpointer(memory.NewMemoryCheckpointStore()))
//
//	res, _ := runnable.InvokeWithConfig(ctx, Counter{}, graph.WithThreadID("t1"))
//	// res.Interrupted, res.NextNode == "b"
//
//	res, _ = runnable.InvokeWithConfig(ctx, Counter{}, graph.WithThreadID("t1"))
//	// resumes at "b" and completes
//
// ## Streaming
//
//	for ev, err := range runnable.Stream(ctx, Counter{}, graph.StreamModeValues, nil) {
//		if err != nil {
//			return err
//		}
//		fmt.Println(ev.Node, ev.State.N)
//	}
//
// # Errors
//
// Validation, routing, iteration-limit and checkpoint failures are
// errs.KindGraph errors whose text starts with "graph error:". Errors
// returned by nodes pass through unchanged.
package graph
