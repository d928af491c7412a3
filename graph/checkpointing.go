package graph

import (
	"context"
	"time"

	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/store"
)

// StateSnapshot is a decoded checkpoint.
type StateSnapshot[S any] struct {
	State S
	// NextNode is where a resume starts; END when the run completed.
	NextNode     string
	CheckpointID string
	ParentID     string
	Metadata     map[string]any
	CreatedAt    time.Time
}

// GetState returns the latest snapshot of the thread, or nil when the
// thread has no checkpoint.
func (r *StateRunnable[S]) GetState(ctx context.Context, config *Config) (*StateSnapshot[S], error) {
	cfg, err := r.threadConfig(config)
	if err != nil {
		return nil, err
	}
	latest, err := r.checkpointer.Get(ctx, cfg)
	if err != nil {
		return nil, errs.Graphf("checkpoint: %w", err)
	}
	if latest == nil {
		return nil, nil
	}
	return r.snapshot(latest)
}

// GetStateHistory returns every snapshot of the thread, oldest first.
func (r *StateRunnable[S]) GetStateHistory(ctx context.Context, config *Config) ([]StateSnapshot[S], error) {
	cfg, err := r.threadConfig(config)
	if err != nil {
		return nil, err
	}
	cps, err := r.checkpointer.List(ctx, cfg)
	if err != nil {
		return nil, errs.Graphf("checkpoint: %w", err)
	}

	history := make([]StateSnapshot[S], 0, len(cps))
	for _, cp := range cps {
		snap, err := r.snapshot(cp)
		if err != nil {
			return nil, err
		}
		history = append(history, *snap)
	}
	return history, nil
}

// UpdateState merges delta into the thread's latest state and records the
// result as a new checkpoint. The resume node is kept, so the next
// invocation continues where the thread left off with the merged state.
func (r *StateRunnable[S]) UpdateState(ctx context.Context, config *Config, delta S) (*StateSnapshot[S], error) {
	cfg, err := r.threadConfig(config)
	if err != nil {
		return nil, err
	}
	latest, err := r.checkpointer.Get(ctx, cfg)
	if err != nil {
		return nil, errs.Graphf("checkpoint: %w", err)
	}
	if latest == nil {
		return nil, errs.Graphf("no checkpoint for thread '%s'", cfg.ThreadID).WithCause(ErrNoCheckpoint)
	}

	state, err := r.decodeState(latest.State)
	if err != nil {
		return nil, err
	}
	data, err := r.encodeState(state.Merge(delta))
	if err != nil {
		return nil, err
	}

	metadata := map[string]any{"source": "update_state", "step": metadataStep(latest.Metadata) + 1}
	// a pending interrupt stays honored
	for _, k := range []string{"interrupt", "subgraph_thread"} {
		if v, ok := latest.Metadata[k]; ok {
			metadata[k] = v
		}
	}
	cp := &store.Checkpoint{
		ID:        store.NewCheckpointID(),
		State:     data,
		NextNode:  latest.NextNode,
		ParentID:  latest.ID,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	if err := r.checkpointer.Put(ctx, cfg, cp); err != nil {
		return nil, errs.Graphf("checkpoint: %w", err)
	}
	r.telemetry.recordCheckpoint(ctx, r.name, "update_state")
	r.logger.Info("updated state of thread %s", cfg.ThreadID)
	return r.snapshot(cp)
}

// DeleteThread drops the thread's history when the checkpointer supports it.
func (r *StateRunnable[S]) DeleteThread(ctx context.Context, config *Config) error {
	cfg, err := r.threadConfig(config)
	if err != nil {
		return err
	}
	d, ok := r.checkpointer.(store.ThreadDeleter)
	if !ok {
		return errs.Graphf("checkpointer %T cannot delete threads", r.checkpointer)
	}
	if err := d.DeleteThread(ctx, cfg); err != nil {
		return errs.Graphf("checkpoint: %w", err)
	}
	return nil
}

func (r *StateRunnable[S]) threadConfig(config *Config) (store.CheckpointConfig, error) {
	if r.checkpointer == nil {
		return store.CheckpointConfig{}, errs.Graphf("no checkpointer configured").WithCause(ErrNoCheckpointer)
	}
	if config == nil || config.ThreadID == "" {
		return store.CheckpointConfig{}, errs.Graphf("thread id is required")
	}
	return store.CheckpointConfig{ThreadID: config.ThreadID}, nil
}

func (r *StateRunnable[S]) snapshot(cp *store.Checkpoint) (*StateSnapshot[S], error) {
	state, err := r.decodeState(cp.State)
	if err != nil {
		return nil, err
	}
	return &StateSnapshot[S]{
		State:        state,
		NextNode:     cp.NextNode,
		CheckpointID: cp.ID,
		ParentID:     cp.ParentID,
		Metadata:     cp.Metadata,
		CreatedAt:    cp.CreatedAt,
	}, nil
}
