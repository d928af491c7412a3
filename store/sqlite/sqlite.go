package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	_ "github.com/mattn/go-sqlite3"
	"github.com/smallnest/agentgraph/store"
)

// SqliteCheckpointStore implements store.Checkpointer using SQLite.
// Insertion order is kept in an autoincrement seq column.
type SqliteCheckpointStore struct {
	db        *sql.DB
	tableName string
}

var (
	_ store.Checkpointer  = (*SqliteCheckpointStore)(nil)
	_ store.ThreadDeleter = (*SqliteCheckpointStore)(nil)
)

// SqliteOptions configuration for SQLite connection
type SqliteOptions struct {
	Path      string
	TableName string // Default "checkpoints"
}

// NewSqliteCheckpointStore opens (or creates) the database and its schema.
func NewSqliteCheckpointStore(opts SqliteOptions) (*SqliteCheckpointStore, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	s := NewSqliteCheckpointStoreWithDB(db, opts.TableName)
	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSqliteCheckpointStoreWithDB wraps an open database handle. The caller
// is responsible for calling InitSchema.
func NewSqliteCheckpointStoreWithDB(db *sql.DB, tableName string) *SqliteCheckpointStore {
	if tableName == "" {
		tableName = "checkpoints"
	}
	return &SqliteCheckpointStore{db: db, tableName: tableName}
}

// InitSchema creates the necessary table if it doesn't exist
func (s *SqliteCheckpointStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			thread_id TEXT NOT NULL,
			id TEXT NOT NULL,
			parent_id TEXT NOT NULL DEFAULT '',
			next_node TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			metadata TEXT,
			created_at DATETIME NOT NULL,
			UNIQUE (thread_id, id)
		);
		CREATE INDEX IF NOT EXISTS idx_%s_thread_id ON %s (thread_id, seq);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SqliteCheckpointStore) Close() error {
	return s.db.Close()
}

// Put upserts cp under cfg.ThreadID. An update keeps the original position
// in the history.
func (s *SqliteCheckpointStore) Put(ctx context.Context, cfg store.CheckpointConfig, cp *store.Checkpoint) error {
	metadataJSON, err := sonic.Marshal(cp.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	createdAt := cp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (thread_id, id, parent_id, next_node, state, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(thread_id, id) DO UPDATE SET
			parent_id = excluded.parent_id,
			next_node = excluded.next_node,
			state = excluded.state,
			metadata = excluded.metadata,
			created_at = excluded.created_at
	`, s.tableName)

	_, err = s.db.ExecContext(ctx, query,
		cfg.ThreadID,
		cp.ID,
		cp.ParentID,
		cp.NextNode,
		string(cp.State),
		string(metadataJSON),
		createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

func (s *SqliteCheckpointStore) Get(ctx context.Context, cfg store.CheckpointConfig) (*store.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT id, parent_id, next_node, state, metadata, created_at
		FROM %s
		WHERE thread_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, s.tableName)

	cp, err := scanCheckpoint(s.db.QueryRowContext(ctx, query, cfg.ThreadID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return cp, nil
}

func (s *SqliteCheckpointStore) List(ctx context.Context, cfg store.CheckpointConfig) ([]*store.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT id, parent_id, next_node, state, metadata, created_at
		FROM %s
		WHERE thread_id = ?
		ORDER BY seq ASC
	`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query, cfg.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*store.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}
		checkpoints = append(checkpoints, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checkpoint rows: %w", err)
	}
	return checkpoints, nil
}

// DeleteThread removes all checkpoints of a thread.
func (s *SqliteCheckpointStore) DeleteThread(ctx context.Context, cfg store.CheckpointConfig) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE thread_id = ?", s.tableName)
	if _, err := s.db.ExecContext(ctx, query, cfg.ThreadID); err != nil {
		return fmt.Errorf("failed to clear checkpoints: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row scanner) (*store.Checkpoint, error) {
	var (
		cp           store.Checkpoint
		stateJSON    string
		metadataJSON sql.NullString
	)
	if err := row.Scan(&cp.ID, &cp.ParentID, &cp.NextNode, &stateJSON, &metadataJSON, &cp.CreatedAt); err != nil {
		return nil, err
	}
	cp.State = []byte(stateJSON)
	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := sonic.UnmarshalString(metadataJSON.String, &cp.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &cp, nil
}
