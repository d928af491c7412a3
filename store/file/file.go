// Package file provides a store.Checkpointer that keeps each thread's
// history as a JSON document in a local directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/smallnest/agentgraph/store"
)

// FileCheckpointStore writes <path>/<escaped thread id>.json. Writes go to a
// temporary file that is renamed over the old document.
type FileCheckpointStore struct {
	path string
	mu   sync.Mutex
}

var (
	_ store.Checkpointer  = (*FileCheckpointStore)(nil)
	_ store.ThreadDeleter = (*FileCheckpointStore)(nil)
)

// NewFileCheckpointStore creates the directory if it is missing.
func NewFileCheckpointStore(path string) (*FileCheckpointStore, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &FileCheckpointStore{path: path}, nil
}

// Path returns the directory holding the thread documents.
func (f *FileCheckpointStore) Path() string {
	return f.path
}

func (f *FileCheckpointStore) threadFile(threadID string) string {
	return filepath.Join(f.path, url.PathEscape(threadID)+".json")
}

func (f *FileCheckpointStore) read(threadID string) ([]*store.Checkpoint, error) {
	data, err := os.ReadFile(f.threadFile(threadID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read thread %s: %w", threadID, err)
	}
	var history []*store.Checkpoint
	if err := sonic.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to decode thread %s: %w", threadID, err)
	}
	return history, nil
}

func (f *FileCheckpointStore) write(threadID string, history []*store.Checkpoint) error {
	data, err := sonic.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to encode thread %s: %w", threadID, err)
	}
	tmp, err := os.CreateTemp(f.path, ".thread-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write thread %s: %w", threadID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write thread %s: %w", threadID, err)
	}
	return os.Rename(tmp.Name(), f.threadFile(threadID))
}

// Put appends cp to the thread, or replaces the checkpoint with the same id.
func (f *FileCheckpointStore) Put(_ context.Context, cfg store.CheckpointConfig, cp *store.Checkpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	history, err := f.read(cfg.ThreadID)
	if err != nil {
		return err
	}
	c := *cp
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	replaced := false
	for i, existing := range history {
		if existing.ID == c.ID {
			history[i] = &c
			replaced = true
			break
		}
	}
	if !replaced {
		history = append(history, &c)
	}
	return f.write(cfg.ThreadID, history)
}

func (f *FileCheckpointStore) Get(_ context.Context, cfg store.CheckpointConfig) (*store.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	history, err := f.read(cfg.ThreadID)
	if err != nil || len(history) == 0 {
		return nil, err
	}
	return history[len(history)-1], nil
}

func (f *FileCheckpointStore) List(_ context.Context, cfg store.CheckpointConfig) ([]*store.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	history, err := f.read(cfg.ThreadID)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []*store.Checkpoint{}
	}
	return history, nil
}

func (f *FileCheckpointStore) DeleteThread(_ context.Context, cfg store.CheckpointConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.threadFile(cfg.ThreadID))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
