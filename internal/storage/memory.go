package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/topology-ai/topology/internal/workflow"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// Snapshots are copied on the way in and out, so callers can keep mutating
// their graphs without corrupting stored state.
type MemStore struct {
	mu        sync.RWMutex
	workflows map[string]workflow.Workflow
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		workflows: make(map[string]workflow.Workflow),
	}
}

// Save implements [Store.Save].
func (s *MemStore) Save(_ context.Context, wf workflow.Workflow) error {
	if wf.ID == "" {
		return fmt.Errorf("storage: save: workflow id must not be empty")
	}

	cp, err := cloneWorkflow(wf)
	if err != nil {
		return fmt.Errorf("storage: save %q: %w", wf.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.workflows == nil {
		s.workflows = make(map[string]workflow.Workflow)
	}
	s.workflows[wf.ID] = cp
	return nil
}

// Load implements [Store.Load].
func (s *MemStore) Load(_ context.Context, id string) (*workflow.Workflow, error) {
	s.mu.RLock()
	wf, ok := s.workflows[id]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	cp, err := cloneWorkflow(wf)
	if err != nil {
		return nil, fmt.Errorf("storage: load %q: %w", id, err)
	}
	return &cp, nil
}

// List implements [Store.List].
func (s *MemStore) List(_ context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.workflows))
	for _, wf := range s.workflows {
		out = append(out, Summary{
			ID:           wf.ID,
			Name:         wf.Name,
			LastModified: wf.LastModified,
		})
	}
	return out, nil
}

// Delete implements [Store.Delete].
func (s *MemStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workflows[id]; !ok {
		return ErrNotFound
	}
	delete(s.workflows, id)
	return nil
}

// cloneWorkflow deep-copies a workflow via its JSON form. The graph is
// designed to round-trip losslessly, so this is both correct and immune to
// new fields being added later.
func cloneWorkflow(wf workflow.Workflow) (workflow.Workflow, error) {
	raw, err := json.Marshal(wf)
	if err != nil {
		return workflow.Workflow{}, fmt.Errorf("marshal: %w", err)
	}
	var cp workflow.Workflow
	if err := json.Unmarshal(raw, &cp); err != nil {
		return workflow.Workflow{}, fmt.Errorf("unmarshal: %w", err)
	}
	return cp, nil
}
