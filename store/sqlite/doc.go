// Package sqlite provides SQLite-backed checkpoint storage.
//
// This package implements file-based checkpoint storage using SQLite, a good fit for
// single-process applications that want durable threads without running a database
// server.
//
// # Basic Usage
//
//	import (
//		"github.com/smallnest/agentgraph/graph"
//		"github.com/smallnest/agentgraph/store/sqlite"
//	)
//
//	saver, err := sqlite.NewSqliteCheckpointStore(sqlite.SqliteOptions{
//		Path:      "./checkpoints.db", // Database file path
//		TableName: "checkpoints",      // Optional table name
//	})
//	if err != nil {
//		return err
//	}
//	defer saver.Close()
//
//	runnable, err := g.Compile(graph.WithCheckpointer(saver))
//
// # Schema
//
// One row per checkpoint. History order comes from the autoincrement seq
// column, not from ids or timestamps:
//
//	CREATE TABLE checkpoints (
//		seq INTEGER PRIMARY KEY AUTOINCREMENT,
//		thread_id TEXT NOT NULL,
//		id TEXT NOT NULL,
//		parent_id TEXT NOT NULL DEFAULT '',
//		next_node TEXT NOT NULL DEFAULT '',
//		state TEXT NOT NULL,
//		metadata TEXT,
//		created_at DATETIME NOT NULL,
//		UNIQUE (thread_id, id)
//	);
//
// Use ":memory:" as the path for a throwaway database. The driver is
// github.com/mattn/go-sqlite3, which requires cgo.
package sqlite
