package graph

import "github.com/smallnest/agentgraph/store"

// Config is the per-invocation configuration.
type Config struct {
	// ThreadID partitions checkpoints. Without it nothing is persisted.
	ThreadID string

	// Tags and Metadata are passed through to nodes and traces.
	Tags     []string
	Metadata map[string]any

	// Configurable holds free-form runtime options for nodes.
	Configurable map[string]any

	// MaxIterations overrides the compiled iteration limit when positive.
	MaxIterations int

	// Restart reruns a thread whose latest checkpoint already reached END.
	// The input is merged into the stored state and the run starts over at
	// the entry point. Without it such a thread returns the stored state.
	Restart bool

	// checkpointer replaces the compiled checkpointer for one run. Subgraphs
	// use it to persist child runs in the parent's backend.
	checkpointer store.Checkpointer
}

// WithThreadID returns a config for the given thread.
func WithThreadID(threadID string) *Config {
	return &Config{ThreadID: threadID}
}
