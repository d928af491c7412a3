package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Checkpoint is a serialized state snapshot plus the node scheduled to run
// next. Checkpoints of one thread form a linear history.
type Checkpoint struct {
	ID string `json:"id"`
	// State is the JSON encoding of the graph state.
	State json.RawMessage `json:"state"`
	// NextNode is the node to run on resume. Empty means the entry point;
	// "__end__" means the run already completed.
	NextNode  string         `json:"next_node,omitempty"`
	ParentID  string         `json:"parent_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// CheckpointConfig selects the thread a checkpoint operation applies to.
type CheckpointConfig struct {
	ThreadID string `json:"thread_id"`
}

// Checkpointer persists checkpoints per thread.
//
// Get returns the most recently put checkpoint of the thread, or nil and no
// error when the thread has none. List returns the history oldest first.
// Put upserts by (thread, checkpoint id).
type Checkpointer interface {
	Put(ctx context.Context, cfg CheckpointConfig, cp *Checkpoint) error
	Get(ctx context.Context, cfg CheckpointConfig) (*Checkpoint, error)
	List(ctx context.Context, cfg CheckpointConfig) ([]*Checkpoint, error)
}

// ThreadDeleter is implemented by checkpointers that can drop a whole thread.
type ThreadDeleter interface {
	DeleteThread(ctx context.Context, cfg CheckpointConfig) error
}

// NewCheckpointID returns a time-ordered unique checkpoint id.
func NewCheckpointID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return "checkpoint_" + uuid.NewString()
	}
	return "checkpoint_" + id.String()
}
