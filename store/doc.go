// Package store defines the persistence contracts used by compiled graphs:
// the Checkpointer that records per-thread state snapshots, and the
// namespaced key/value Store exposed to nodes and tools.
//
// The package includes implementations for five storage backends:
//   - memory: maps guarded by a RWMutex, for tests and single-process use
//   - file: one JSON document per thread in a local directory
//   - SQLite: lightweight, serverless file-based storage
//   - PostgreSQL: robust, scalable relational database
//   - Redis: high-performance in-memory storage with optional TTL
//
// # Checkpointing
//
// After every node transition the engine writes a Checkpoint holding the
// serialized state, the node scheduled to run next and the id of the
// previous checkpoint. Checkpoints are partitioned by thread:
//
//	cfg := store.CheckpointConfig{ThreadID: "t1"}
//	latest, err := saver.Get(ctx, cfg)   // nil when the thread is new
//	history, err := saver.List(ctx, cfg) // oldest first
//
// Only two orderings are part of the contract: Get returns the most recent
// checkpoint, and List returns the history oldest first. Checkpoint ids are
// opaque; NewCheckpointID produces time-ordered ones.
//
// # Using a backend
//
//	import (
//		"github.com/smallnest/agentgraph/graph"
//		"github.com/smallnest/agentgraph/store/sqlite"
//	)
//
//	saver, err := sqlite.NewSqliteCheckpointStore(sqlite.SqliteOptions{Path: "./checkpoints.db"})
//	if err != nil {
//		return err
//	}
//	defer saver.Close()
//
//	runnable, err := g.Compile(graph.WithCheckpointer(saver))
//	result, err := runnable.InvokeWithConfig(ctx, initial, graph.WithThreadID("t1"))
//
// # Key/value store
//
// Store values are JSON objects addressed by a namespace path and a key:
//
//	err := kv.Put(ctx, []string{"users", "u1"}, "prefs", map[string]any{"lang": "go"})
//	items, err := kv.Search(ctx, []string{"users"}, "go", 10)
//
// Nodes reach the store attached with graph.WithStore through
// graph.GetStore(ctx); tools receive it in their runtime.
package store
