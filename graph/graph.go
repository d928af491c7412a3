package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallnest/agentgraph/errs"
)

const (
	// START is the virtual node that precedes the entry point.
	START = "__start__"

	// END is the terminal node. Routing to END completes the run.
	END = "__end__"
)

var (
	// ErrEntryPointNotSet is returned when the entry point of the graph is not set.
	ErrEntryPointNotSet = errors.New("entry point not set")

	// ErrNodeNotFound is returned when a node is not found in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoCheckpointer is returned by state operations on a graph compiled
	// without a checkpointer.
	ErrNoCheckpointer = errors.New("no checkpointer configured")

	// ErrNoCheckpoint is returned when a thread has no checkpoint yet.
	ErrNoCheckpoint = errors.New("no checkpoint found")
)

// State is the constraint every graph state satisfies. Merge folds a partial
// update into the receiver and returns the result; it must never fail.
type State[S any] interface {
	Merge(other S) S
}

// Edge represents a fixed edge in the graph.
type Edge struct {
	// From is the name of the node from which the edge originates.
	From string

	// To is the name of the node to which the edge points, or END.
	To string
}

// Router picks the next node from the state a node produced.
type Router[S any] func(ctx context.Context, state S) string

// ConditionalEdge routes from a node through a Router. With a PathMap the
// router returns a key of the map and the mapped value is the target.
type ConditionalEdge[S any] struct {
	From    string
	Router  Router[S]
	PathMap map[string]string
}

// CachePolicy enables per-node output caching. Outputs are reused while
// younger than TTL.
type CachePolicy struct {
	TTL time.Duration
}

// GraphResult is the outcome of an invocation. A result that is not
// Interrupted is complete.
type GraphResult[S any] struct {
	State S
	// Interrupted is set when the run paused; NextNode is where a resume starts.
	Interrupted    bool
	InterruptValue any
	NextNode       string
}

// Complete reports whether the run reached END.
func (r GraphResult[S]) Complete() bool {
	return !r.Interrupted
}

// GraphInterrupt is the error item a stream yields when the run pauses.
type GraphInterrupt struct {
	// Node is the node at which the interrupt happened.
	Node string
	// NextNode is the node a resume starts with.
	NextNode string
	// Value is the interrupt payload.
	Value any
}

func (e *GraphInterrupt) Error() string {
	return fmt.Sprintf("graph error: interrupted at node '%s': %v", e.Node, e.Value)
}

// Kind lets errs.KindOf classify interrupts as graph errors.
func (e *GraphInterrupt) Kind() errs.Kind {
	return errs.KindGraph
}

func interruptReason(when, node string) map[string]any {
	return map[string]any{"reason": fmt.Sprintf("interrupted %s node '%s'", when, node)}
}

func isSentinel(name string) bool {
	return name == START || name == END
}
