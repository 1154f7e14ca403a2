// Package realtime defines the Provider interface for realtime voice
// transports.
//
// A realtime provider wraps a speech-capable model service reachable over a
// stateful bidirectional connection (e.g. the OpenAI Realtime API). The core
// registers its tool vocabulary on the session and receives invocation
// callbacks; it does not implement transport framing itself. Audio capture
// and playback are the embedding application's concern — the session only
// moves already-encoded chunks.
//
// All implementations must be safe for concurrent use.
package realtime

import (
	"context"
	"errors"

	"github.com/topology-ai/topology/pkg/types"
)

// Sentinel errors for the connection boundary.
var (
	// ErrCredentialInvalid means the supplied credential was malformed or
	// rejected during connect. The connection aborts and state returns to
	// disconnected.
	ErrCredentialInvalid = errors.New("realtime: credential invalid")

	// ErrRemoteRequest means the ephemeral-token exchange or another remote
	// call failed. The remote's error message is propagated verbatim where
	// available; the caller may retry.
	ErrRemoteRequest = errors.New("realtime: remote request failed")

	// ErrSessionClosed means an operation was attempted on a closed session.
	ErrSessionClosed = errors.New("realtime: session closed")
)

// ToolCallHandler is invoked by the session whenever the model requests a
// tool call. It receives the tool name and a JSON-encoded arguments string
// and returns either a result string (injected back into the session as tool
// output) or an error.
//
// The handler may be called from the session's internal receive goroutine —
// implementors must not call blocking session methods from within the
// handler.
type ToolCallHandler func(name string, args string) (string, error)

// SessionConfig is the initial configuration for a new realtime session.
type SessionConfig struct {
	// Instructions is the system-level prompt governing the model's
	// behaviour for the whole session.
	Instructions string

	// Tools is the tool vocabulary registered on the session. Tool calls are
	// surfaced via the handler set with OnToolCall.
	Tools []types.ToolDefinition

	// Voice selects the model's synthesised voice. Empty means the provider
	// default.
	Voice string
}

// SessionHandle represents an open realtime session. It is an interface so
// that test code can supply mock implementations without a live connection.
//
// All methods must be safe for concurrent use. Callers must call Close when
// the session is no longer needed; Close is idempotent.
type SessionHandle interface {
	// OnToolCall registers the handler invoked for model tool calls. Only
	// one handler is active at a time; calling again replaces it, nil
	// clears it.
	OnToolCall(handler ToolCallHandler)

	// OnTranscript registers a handler for finished transcript entries,
	// covering both user speech and model responses.
	OnTranscript(handler func(types.TranscriptEntry))

	// OnError registers a handler for non-fatal error events surfaced by
	// the transport mid-session.
	OnError(handler func(error))

	// SendAudio delivers one encoded audio chunk to the model. Chunks sent
	// while the session is muted are dropped. Returns ErrSessionClosed
	// after Close.
	SendAudio(chunk []byte) error

	// SetMuted pauses (true) or resumes (false) audio intake without
	// tearing down the session.
	SetMuted(muted bool) error

	// Close terminates the session and releases all resources. Calling
	// Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any realtime transport backend.
type Provider interface {
	// Connect establishes a new session with the given configuration. The
	// returned SessionHandle is live immediately. The caller owns the
	// handle and is responsible for calling Close.
	Connect(ctx context.Context, cfg SessionConfig) (SessionHandle, error)
}
