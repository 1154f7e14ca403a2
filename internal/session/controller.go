// Package session manages the lifecycle of a live voice capture session: it
// connects the realtime provider, routes tool calls into the dispatcher,
// accumulates the transcript, and persists the workflow snapshot on
// disconnect.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/topology-ai/topology/internal/observe"
	"github.com/topology-ai/topology/internal/storage"
	"github.com/topology-ai/topology/internal/tools"
	"github.com/topology-ai/topology/internal/workflow"
	"github.com/topology-ai/topology/pkg/provider/realtime"
	"github.com/topology-ai/topology/pkg/types"
)

// ErrAlreadyConnected is returned by Connect when a session is already live.
var ErrAlreadyConnected = errors.New("session already connected")

// ControllerConfig configures a [Controller].
type ControllerConfig struct {
	// Provider establishes realtime sessions.
	Provider realtime.Provider

	// Dispatcher executes tool calls issued by the model.
	Dispatcher *tools.Dispatcher

	// Store is the workflow graph the session mutates. Used for snapshot
	// persistence on disconnect.
	Store *workflow.Store

	// Storage persists the workflow snapshot when the session ends.
	// May be nil, in which case nothing is persisted.
	Storage storage.Store

	// Instructions is the system prompt for the realtime model.
	Instructions string

	// Voice selects the model's speaking voice. Provider default when empty.
	Voice string

	// Metrics records session gauges. May be nil.
	Metrics *observe.Metrics
}

// Controller drives one voice capture session at a time. Connect and
// Disconnect are idempotent; a second Connect while live returns
// [ErrAlreadyConnected] rather than silently replacing the session.
//
// All methods are safe for concurrent use.
type Controller struct {
	cfg ControllerConfig

	mu         sync.Mutex
	handle     realtime.SessionHandle
	transcript []types.TranscriptEntry
}

// NewController creates a new [Controller] with the given configuration.
func NewController(cfg ControllerConfig) *Controller {
	return &Controller{cfg: cfg}
}

// Connect establishes a realtime session and wires the dispatcher as the
// tool call handler. The session stays live until [Controller.Disconnect].
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle != nil {
		return ErrAlreadyConnected
	}

	handle, err := c.cfg.Provider.Connect(ctx, realtime.SessionConfig{
		Instructions: c.cfg.Instructions,
		Tools:        tools.Definitions(),
		Voice:        c.cfg.Voice,
	})
	if err != nil {
		return fmt.Errorf("session: connect: %w", err)
	}

	handle.OnToolCall(func(name, args string) (string, error) {
		return c.cfg.Dispatcher.Execute(context.Background(), name, args)
	})
	handle.OnTranscript(func(entry types.TranscriptEntry) {
		c.mu.Lock()
		c.transcript = append(c.transcript, entry)
		c.mu.Unlock()
	})
	handle.OnError(func(err error) {
		slog.Error("realtime session error", "error", err)
	})

	c.handle = handle
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.ActiveSessions.Add(ctx, 1)
	}
	return nil
}

// Disconnect closes the live session and persists the workflow snapshot when
// it carries any content. Calling Disconnect without a live session is a
// no-op.
func (c *Controller) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	handle := c.handle
	c.handle = nil
	c.mu.Unlock()

	if handle == nil {
		return nil
	}

	closeErr := handle.Close()
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.ActiveSessions.Add(ctx, -1)
	}

	if err := c.persistSnapshot(ctx); err != nil {
		return errors.Join(closeErr, err)
	}
	return closeErr
}

// persistSnapshot saves the current workflow unless it is still empty. An
// untouched graph from an aborted session is not worth a stored row.
func (c *Controller) persistSnapshot(ctx context.Context) error {
	if c.cfg.Storage == nil || c.cfg.Store == nil {
		return nil
	}

	snap := c.cfg.Store.Snapshot()
	if len(snap.Participants) == 0 && len(snap.Steps) == 0 {
		return nil
	}

	if err := c.cfg.Storage.Save(ctx, snap); err != nil {
		return fmt.Errorf("session: persist snapshot: %w", err)
	}
	slog.Info("workflow snapshot persisted", "workflow", snap.ID, "name", snap.Name)
	return nil
}

// SendAudio forwards a raw audio chunk to the live session.
func (c *Controller) SendAudio(chunk []byte) error {
	c.mu.Lock()
	handle := c.handle
	c.mu.Unlock()

	if handle == nil {
		return realtime.ErrSessionClosed
	}
	return handle.SendAudio(chunk)
}

// SetMuted toggles microphone capture on the live session.
func (c *Controller) SetMuted(muted bool) error {
	c.mu.Lock()
	handle := c.handle
	c.mu.Unlock()

	if handle == nil {
		return realtime.ErrSessionClosed
	}
	return handle.SetMuted(muted)
}

// Connected reports whether a session is currently live.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle != nil
}

// Transcript returns a copy of the conversation transcript accumulated so
// far, in arrival order.
func (c *Controller) Transcript() []types.TranscriptEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.TranscriptEntry(nil), c.transcript...)
}
