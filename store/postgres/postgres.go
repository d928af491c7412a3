package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smallnest/agentgraph/store"
)

// DBPool defines the interface for database connection pool
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresCheckpointStore implements store.Checkpointer using PostgreSQL.
type PostgresCheckpointStore struct {
	pool      DBPool
	tableName string
}

var (
	_ store.Checkpointer  = (*PostgresCheckpointStore)(nil)
	_ store.ThreadDeleter = (*PostgresCheckpointStore)(nil)
)

// PostgresOptions configuration for Postgres connection
type PostgresOptions struct {
	ConnString string
	TableName  string // Default "checkpoints"
}

// NewPostgresCheckpointStore creates a new Postgres checkpoint store
func NewPostgresCheckpointStore(ctx context.Context, opts PostgresOptions) (*PostgresCheckpointStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return NewPostgresCheckpointStoreWithPool(pool, opts.TableName), nil
}

// NewPostgresCheckpointStoreWithPool creates a new Postgres checkpoint store with an existing pool
// Useful for testing with mocks
func NewPostgresCheckpointStoreWithPool(pool DBPool, tableName string) *PostgresCheckpointStore {
	if tableName == "" {
		tableName = "checkpoints"
	}
	return &PostgresCheckpointStore{
		pool:      pool,
		tableName: tableName,
	}
}

// InitSchema creates the necessary table if it doesn't exist
func (s *PostgresCheckpointStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq BIGSERIAL PRIMARY KEY,
			thread_id TEXT NOT NULL,
			id TEXT NOT NULL,
			parent_id TEXT NOT NULL DEFAULT '',
			next_node TEXT NOT NULL DEFAULT '',
			state JSONB NOT NULL,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (thread_id, id)
		);
		CREATE INDEX IF NOT EXISTS idx_%s_thread_seq ON %s (thread_id, seq);
	`, s.tableName, s.tableName, s.tableName)

	_, err := s.pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *PostgresCheckpointStore) Close() {
	s.pool.Close()
}

// Put upserts cp under cfg.ThreadID.
func (s *PostgresCheckpointStore) Put(ctx context.Context, cfg store.CheckpointConfig, cp *store.Checkpoint) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (thread_id, id) DO UPDATE SET
			parent_id = EXCLUDED.parent_id,
			next_node = EXCLUDED.next_node,
			state = EXCLUDED.state,
			metadata = EXCLUDED.metadata,
			created_at = EXCLUDED.created_at
	`, s.tableName)

	_, err = s.pool.Exec(ctx, query,
		cfg.ThreadID,
		cp.ID,
		cp.ParentID,
		cp.NextNode,
		[]byte(cp.State),
		metadataJSON,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Get returns the most recent checkpoint of the thread.
func (s *PostgresCheckpointStore) Get(ctx context.Context, cfg store.CheckpointConfig) (*store.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT id, parent_id, next_node, state, metadata, created_at
		FROM %s
		WHERE thread_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`, s.tableName)

	cp, err := scanCheckpoint(s.pool.QueryRow(ctx, query, cfg.ThreadID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return cp, nil
}

// List returns all checkpoints of the thread, oldest first.
func (s *PostgresCheckpointStore) List(ctx context.Context, cfg store.CheckpointConfig) ([]*store.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT id, parent_id, next_node, state, metadata, created_at
		FROM %s
		WHERE thread_id = $1
		ORDER BY seq ASC
	`, s.tableName)

	rows, err := s.pool.Query(ctx, query, cfg.ThreadID)
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
func (s *PostgresCheckpointStore) DeleteThread(ctx context.Context, cfg store.CheckpointConfig) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE thread_id = $1", s.tableName)
	_, err := s.pool.Exec(ctx, query, cfg.ThreadID)
	if err != nil {
		return fmt.Errorf("failed to clear checkpoints: %w", err)
	}
	return nil
}

func scanCheckpoint(row pgx.Row) (*store.Checkpoint, error) {
	var (
		cp           store.Checkpoint
		stateJSON    []byte
		metadataJSON []byte
	)
	err := row.Scan(&cp.ID, &cp.ParentID, &cp.NextNode, &stateJSON, &metadataJSON, &cp.CreatedAt)
	if err != nil {
		return nil, err
	}
	cp.State = stateJSON
	if len(metadataJSON) > 0 && string(metadataJSON) != "null" {
		if err := sonic.Unmarshal(metadataJSON, &cp.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &cp, nil
}
