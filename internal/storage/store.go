// Package storage persists workflow snapshots between sessions. The memory
// implementation backs tests and single-process deployments; the postgres
// sub-package provides durable storage for shared servers.
package storage

import (
	"context"
	"errors"

	"github.com/topology-ai/topology/internal/workflow"
)

// ErrNotFound is returned by Delete when the requested workflow does not exist.
var ErrNotFound = errors.New("workflow not found")

// Summary is a lightweight listing entry. It avoids loading full graphs just
// to render a picker.
type Summary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	LastModified string `json:"lastModified"`
}

// Store persists workflow snapshots keyed by workflow ID.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// Save stores a snapshot, replacing any previous snapshot with the same
	// ID. The workflow's ID must be non-empty.
	Save(ctx context.Context, wf workflow.Workflow) error

	// Load retrieves a snapshot by ID. Returns (nil, nil) when no workflow
	// with that ID exists — a missing workflow is an expected condition, not
	// an error.
	Load(ctx context.Context, id string) (*workflow.Workflow, error)

	// List returns summaries of all stored workflows. Order is not
	// guaranteed.
	List(ctx context.Context) ([]Summary, error)

	// Delete removes a snapshot by ID.
	// Returns [ErrNotFound] when no workflow with that ID exists.
	Delete(ctx context.Context, id string) error
}
