package graph

import (
	"context"
	"errors"
	"iter"

	"github.com/smallnest/agentgraph/errs"
)

// StreamMode selects what a stream reports after each node.
type StreamMode string

const (
	// StreamModeValues emits the state after each node.
	StreamModeValues StreamMode = "values"
	// StreamModeUpdates emits the state each node received, for diffing
	// against a values stream.
	StreamModeUpdates StreamMode = "updates"
	// StreamModeMessages emits the state after each node; consumers pick
	// out the model messages.
	StreamModeMessages StreamMode = "messages"
	// StreamModeDebug emits the state after each node.
	StreamModeDebug StreamMode = "debug"
	// StreamModeCustom emits the state after each node together with the
	// values the node wrote to its StreamWriter.
	StreamModeCustom StreamMode = "custom"
)

func (m StreamMode) valid() bool {
	switch m {
	case StreamModeValues, StreamModeUpdates, StreamModeMessages, StreamModeDebug, StreamModeCustom:
		return true
	}
	return false
}

// GraphEvent is one streamed step.
type GraphEvent[S any] struct {
	Node  string
	State S
	// Custom holds StreamWriter values; only set in custom mode.
	Custom []any
}

// MultiGraphEvent tags a GraphEvent with the mode that produced it.
type MultiGraphEvent[S any] struct {
	Mode  StreamMode
	Event GraphEvent[S]
}

// Stream runs the graph lazily, yielding an event after each node. Breaking
// out of the loop stops the run before the next node starts. An interrupt
// ends the sequence with a *GraphInterrupt error; checkpoints are written
// exactly as by InvokeWithConfig.
//
//	for ev, err := range runnable.Stream(ctx, input, graph.StreamModeValues, nil) {
//		if err != nil {
//			return err
//		}
//		fmt.Println(ev.Node)
//	}
func (r *StateRunnable[S]) Stream(ctx context.Context, input S, mode StreamMode, config *Config) iter.Seq2[GraphEvent[S], error] {
	return func(yield func(GraphEvent[S], error) bool) {
		for ev, err := range r.StreamModes(ctx, input, []StreamMode{mode}, config) {
			if !yield(ev.Event, err) {
				return
			}
		}
	}
}

// StreamModes is Stream for several modes at once. For each node the events
// are yielded in the order of modes.
func (r *StateRunnable[S]) StreamModes(ctx context.Context, input S, modes []StreamMode, config *Config) iter.Seq2[MultiGraphEvent[S], error] {
	return func(yield func(MultiGraphEvent[S], error) bool) {
		if len(modes) == 0 {
			modes = []StreamMode{StreamModeValues}
		}
		for _, m := range modes {
			if !m.valid() {
				yield(MultiGraphEvent[S]{}, errs.Graphf("unknown stream mode '%s'", m))
				return
			}
		}

		out, err := r.run(ctx, input, config, func(st step[S]) bool {
			for _, m := range modes {
				if !yield(MultiGraphEvent[S]{Mode: m, Event: st.event(m)}, nil) {
					return false
				}
			}
			return true
		})
		switch {
		case errors.Is(err, errStreamClosed):
			return
		case err != nil:
			yield(MultiGraphEvent[S]{}, err)
		case out.result.Interrupted:
			yield(MultiGraphEvent[S]{}, &GraphInterrupt{
				Node:     out.at,
				NextNode: out.result.NextNode,
				Value:    out.result.InterruptValue,
			})
		}
	}
}

func (st step[S]) event(mode StreamMode) GraphEvent[S] {
	switch mode {
	case StreamModeUpdates:
		return GraphEvent[S]{Node: st.node, State: st.before}
	case StreamModeCustom:
		return GraphEvent[S]{Node: st.node, State: st.after, Custom: st.custom}
	default:
		return GraphEvent[S]{Node: st.node, State: st.after}
	}
}
