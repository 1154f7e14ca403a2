// Package mock provides a mock implementation of the realtime.Provider and
// realtime.SessionHandle interfaces for testing. The mock records all calls
// and lets tests drive the session by injecting transcript entries, tool
// calls, and errors.
package mock

import (
	"context"
	"sync"

	"github.com/topology-ai/topology/pkg/provider/realtime"
	"github.com/topology-ai/topology/pkg/types"
)

// Compile-time assertions that the mocks satisfy the realtime interfaces.
var _ realtime.Provider = (*Provider)(nil)
var _ realtime.SessionHandle = (*Session)(nil)

// Provider is a mock realtime provider.
type Provider struct {
	mu sync.Mutex

	// ConnectErr, when set, is returned by Connect instead of a session.
	ConnectErr error

	// Session is the handle returned by Connect. When nil a fresh Session is
	// created on each call.
	Session *Session

	// ConnectCalls records the configs passed to Connect.
	ConnectCalls []realtime.SessionConfig
}

// Connect implements realtime.Provider.
func (p *Provider) Connect(_ context.Context, cfg realtime.SessionConfig) (realtime.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ConnectCalls = append(p.ConnectCalls, cfg)
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	if p.Session == nil {
		p.Session = &Session{}
	}
	return p.Session, nil
}

// Reset clears all recorded calls and configured behavior.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ConnectErr = nil
	p.Session = nil
	p.ConnectCalls = nil
}

// Session is a mock realtime session. Tests drive it with the Emit* methods
// and inspect the recorded audio chunks and mute transitions.
type Session struct {
	mu sync.Mutex

	toolHandler       realtime.ToolCallHandler
	transcriptHandler func(types.TranscriptEntry)
	errorHandler      func(error)

	// SendAudioErr, when set, is returned by SendAudio.
	SendAudioErr error

	// AudioChunks records every chunk passed to SendAudio while unmuted.
	AudioChunks [][]byte

	// MuteCalls records each value passed to SetMuted.
	MuteCalls []bool

	muted  bool
	closed bool
}

// OnToolCall implements realtime.SessionHandle.
func (s *Session) OnToolCall(handler realtime.ToolCallHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolHandler = handler
}

// OnTranscript implements realtime.SessionHandle.
func (s *Session) OnTranscript(handler func(types.TranscriptEntry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcriptHandler = handler
}

// OnError implements realtime.SessionHandle.
func (s *Session) OnError(handler func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorHandler = handler
}

// SendAudio implements realtime.SessionHandle.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return realtime.ErrSessionClosed
	}
	if s.SendAudioErr != nil {
		return s.SendAudioErr
	}
	if s.muted {
		return nil
	}
	s.AudioChunks = append(s.AudioChunks, chunk)
	return nil
}

// SetMuted implements realtime.SessionHandle.
func (s *Session) SetMuted(muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return realtime.ErrSessionClosed
	}
	s.muted = muted
	s.MuteCalls = append(s.MuteCalls, muted)
	return nil
}

// Close implements realtime.SessionHandle.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// EmitToolCall invokes the registered tool call handler, returning its
// result. Returns empty values when no handler is registered.
func (s *Session) EmitToolCall(name, args string) (string, error) {
	s.mu.Lock()
	handler := s.toolHandler
	s.mu.Unlock()

	if handler == nil {
		return "", nil
	}
	return handler(name, args)
}

// EmitTranscript invokes the registered transcript handler.
func (s *Session) EmitTranscript(entry types.TranscriptEntry) {
	s.mu.Lock()
	handler := s.transcriptHandler
	s.mu.Unlock()

	if handler != nil {
		handler(entry)
	}
}

// EmitError invokes the registered error handler.
func (s *Session) EmitError(err error) {
	s.mu.Lock()
	handler := s.errorHandler
	s.mu.Unlock()

	if handler != nil {
		handler(err)
	}
}
