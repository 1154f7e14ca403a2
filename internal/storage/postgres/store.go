// Package postgres provides a [storage.Store] backed by PostgreSQL. The
// whole workflow graph is stored as a single JSONB document per row, which
// keeps the schema stable while the graph evolves.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/topology-ai/topology/internal/storage"
	"github.com/topology-ai/topology/internal/workflow"
)

// Schema is the SQL DDL for the workflows table. Execute it via
// [Store.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS workflows (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL DEFAULT '',
    last_modified TEXT NOT NULL DEFAULT '',
    document      JSONB NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_workflows_name ON workflows(name);
`

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is a [storage.Store] backed by a PostgreSQL database.
type Store struct {
	db DB
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// New creates a new [Store] that uses the given database connection or pool.
// The caller is responsible for calling [Store.Migrate] to ensure the schema
// exists before issuing queries.
func New(db DB) *Store {
	return &Store{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// workflows table and index if they do not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("storage: migrate: %w", err)
	}
	return nil
}

// Save implements [storage.Store.Save] as an upsert.
func (s *Store) Save(ctx context.Context, wf workflow.Workflow) error {
	if wf.ID == "" {
		return fmt.Errorf("storage: save: workflow id must not be empty")
	}

	doc, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("storage: marshal workflow %q: %w", wf.ID, err)
	}

	const query = `
		INSERT INTO workflows (id, name, last_modified, document, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			last_modified = EXCLUDED.last_modified,
			document = EXCLUDED.document,
			updated_at = now()`

	if _, err := s.db.Exec(ctx, query, wf.ID, wf.Name, wf.LastModified, doc); err != nil {
		return fmt.Errorf("storage: save %q: %w", wf.ID, err)
	}
	return nil
}

// Load implements [storage.Store.Load]. It returns (nil, nil) when no
// workflow with the given ID exists.
func (s *Store) Load(ctx context.Context, id string) (*workflow.Workflow, error) {
	const query = `SELECT document FROM workflows WHERE id = $1`

	var doc []byte
	if err := s.db.QueryRow(ctx, query, id).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: load %q: %w", id, err)
	}

	var wf workflow.Workflow
	if err := json.Unmarshal(doc, &wf); err != nil {
		return nil, fmt.Errorf("storage: unmarshal workflow %q: %w", id, err)
	}
	return &wf, nil
}

// List implements [storage.Store.List].
func (s *Store) List(ctx context.Context) ([]storage.Summary, error) {
	const query = `SELECT id, name, last_modified FROM workflows ORDER BY name`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	defer rows.Close()

	var out []storage.Summary
	for rows.Next() {
		var sum storage.Summary
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.LastModified); err != nil {
			return nil, fmt.Errorf("storage: list scan: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list rows: %w", err)
	}
	return out, nil
}

// Delete implements [storage.Store.Delete].
func (s *Store) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM workflows WHERE id = $1`

	tag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("storage: delete %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
