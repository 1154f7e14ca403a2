// Package openai implements the realtime.Provider interface for OpenAI's
// Realtime API.
//
// Connect first trades the long-lived API key for a short-lived session
// token, then establishes a bidirectional WebSocket connection to the
// Realtime endpoint and exchanges JSON events according to the Realtime API
// protocol. Audio is transmitted as base64-encoded PCM16 chunks; tool calls
// are surfaced via the ToolCallHandler callback.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/topology-ai/topology/pkg/provider/realtime"
	"github.com/topology-ai/topology/pkg/types"
)

// Compile-time assertions that Provider and session satisfy the realtime
// interfaces.
var _ realtime.Provider = (*Provider)(nil)
var _ realtime.SessionHandle = (*session)(nil)

const (
	defaultModel     = "gpt-4o-realtime-preview"
	defaultWSBaseURL = "wss://api.openai.com/v1/realtime"
	defaultAPIURL    = "https://api.openai.com"
)

// ── Options ──────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the OpenAI model used for sessions.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithWSBaseURL overrides the base WebSocket URL. Primarily used in tests to
// point at a local mock server.
func WithWSBaseURL(url string) Option {
	return func(p *Provider) { p.wsBaseURL = url }
}

// WithAPIBaseURL overrides the HTTP API base URL used for the ephemeral
// token exchange.
func WithAPIBaseURL(url string) Option {
	return func(p *Provider) { p.apiBaseURL = url }
}

// WithHTTPClient overrides the HTTP client used for the token exchange.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// ── Provider ─────────────────────────────────────────────────────────────

// Provider implements realtime.Provider for OpenAI's Realtime API.
type Provider struct {
	apiKey     string
	model      string
	wsBaseURL  string
	apiBaseURL string
	httpClient *http.Client
}

// New creates a new OpenAI Realtime Provider with the given API key and
// options.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: api key must not be empty", realtime.ErrCredentialInvalid)
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		wsBaseURL:  defaultWSBaseURL,
		apiBaseURL: defaultAPIURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Connect exchanges an ephemeral session token and establishes a new
// Realtime session with the given configuration.
func (p *Provider) Connect(ctx context.Context, cfg realtime.SessionConfig) (realtime.SessionHandle, error) {
	token, err := exchangeToken(ctx, p.httpClient, p.apiBaseURL, p.apiKey, p.model, cfg.Voice)
	if err != nil {
		return nil, err
	}

	wsURL := fmt.Sprintf("%s?model=%s", p.wsBaseURL, p.model)
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Authorization": []string{"Bearer " + token},
			"OpenAI-Beta":   []string{"realtime=v1"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %v", realtime.ErrRemoteRequest, err)
	}

	sessCtx, sessCancel := context.WithCancel(context.Background())
	sess := &session{
		conn:   conn,
		ctx:    sessCtx,
		cancel: sessCancel,
	}

	if err := sess.sendSessionUpdate(cfg.Voice, cfg.Instructions, cfg.Tools); err != nil {
		sessCancel()
		conn.Close(websocket.StatusInternalError, "session update failed")
		return nil, fmt.Errorf("openai: session update: %w", err)
	}

	go sess.receiveLoop()

	return sess, nil
}

// ── Protocol message types (outgoing) ────────────────────────────────────

type sessionUpdateMessage struct {
	Type    string        `json:"type"`
	Session sessionParams `json:"session"`
}

type sessionParams struct {
	Voice             string    `json:"voice,omitempty"`
	Instructions      string    `json:"instructions,omitempty"`
	Tools             []oaiTool `json:"tools,omitempty"`
	InputAudioFormat  string    `json:"input_audio_format"`
	OutputAudioFormat string    `json:"output_audio_format"`
}

type oaiTool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type appendAudioMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio"` // base64-encoded PCM16
}

type createConversationItemMessage struct {
	Type string           `json:"type"`
	Item conversationItem `json:"item"`
}

type conversationItem struct {
	Type   string `json:"type"`
	CallID string `json:"call_id,omitempty"`
	Output string `json:"output,omitempty"`
}

// serverErrorDetail represents the nested error object in an OpenAI Realtime
// error event: {"type":"error","error":{"type":"...","code":"...","message":"..."}}.
type serverErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ── Protocol message types (incoming) ────────────────────────────────────

type serverEvent struct {
	Type string `json:"type"`

	// response.audio_transcript.delta /
	// conversation.item.input_audio_transcription.completed (field name differs)
	Delta      string `json:"delta,omitempty"`
	Transcript string `json:"transcript,omitempty"`

	// response.function_call_arguments.done
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	CallID    string `json:"call_id,omitempty"`

	// error event
	Error *serverErrorDetail `json:"error,omitempty"`
}

// ── session ──────────────────────────────────────────────────────────────

type session struct {
	conn *websocket.Conn

	mu                sync.Mutex
	toolHandler       realtime.ToolCallHandler
	transcriptHandler func(types.TranscriptEntry)
	errorHandler      func(error)
	muted             bool
	closed            bool

	// currentTxText accumulates response.audio_transcript.delta events until
	// response.audio_transcript.done is received.
	currentTxText string

	ctx    context.Context
	cancel context.CancelFunc
}

// sendSessionUpdate sends a session.update event registering voice,
// instructions, the tool vocabulary, and audio formats.
func (s *session) sendSessionUpdate(voice, instructions string, tools []types.ToolDefinition) error {
	params := sessionParams{
		InputAudioFormat:  "pcm16",
		OutputAudioFormat: "pcm16",
		Voice:             voice,
		Instructions:      instructions,
	}
	if len(tools) > 0 {
		params.Tools = toOAITools(tools)
	}
	return s.writeJSON(sessionUpdateMessage{Type: "session.update", Session: params})
}

// writeJSON marshals v and writes it as a text WebSocket message.
func (s *session) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("openai: marshal: %w", err)
	}
	return s.conn.Write(s.ctx, websocket.MessageText, data)
}

// receiveLoop reads events from the WebSocket and dispatches them until the
// session is closed.
func (s *session) receiveLoop() {
	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.emitError(fmt.Errorf("%w: %v", realtime.ErrRemoteRequest, err))
			return
		}

		var evt serverEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			continue
		}

		s.handleServerEvent(&evt)
	}
}

func (s *session) handleServerEvent(evt *serverEvent) {
	switch evt.Type {
	case "response.audio_transcript.delta":
		if evt.Delta == "" {
			return
		}
		s.mu.Lock()
		s.currentTxText += evt.Delta
		s.mu.Unlock()

	case "response.audio_transcript.done":
		s.mu.Lock()
		text := s.currentTxText
		s.currentTxText = ""
		handler := s.transcriptHandler
		s.mu.Unlock()

		if text == "" || handler == nil {
			return
		}
		handler(types.TranscriptEntry{
			Speaker:   "assistant",
			Text:      text,
			Timestamp: time.Now(),
		})

	case "conversation.item.input_audio_transcription.completed":
		s.mu.Lock()
		handler := s.transcriptHandler
		s.mu.Unlock()

		if evt.Transcript == "" || handler == nil {
			return
		}
		handler(types.TranscriptEntry{
			Speaker:   "user",
			Text:      evt.Transcript,
			Timestamp: time.Now(),
		})

	case "response.function_call_arguments.done":
		s.handleFunctionCall(evt)

	case "error":
		msg := "unknown error"
		if evt.Error != nil && evt.Error.Message != "" {
			msg = evt.Error.Message
		}
		s.emitError(fmt.Errorf("openai: %s", msg))
	}
}

func (s *session) handleFunctionCall(evt *serverEvent) {
	s.mu.Lock()
	handler := s.toolHandler
	s.mu.Unlock()

	if handler == nil {
		return
	}

	result, callErr := handler(evt.Name, evt.Arguments)
	if callErr != nil {
		result = fmt.Sprintf(`{"error": %q}`, callErr.Error())
	}

	// Return tool result and trigger the next model response.
	_ = s.writeJSON(createConversationItemMessage{
		Type: "conversation.item.create",
		Item: conversationItem{
			Type:   "function_call_output",
			CallID: evt.CallID,
			Output: result,
		},
	})
	_ = s.writeJSON(map[string]string{"type": "response.create"})
}

func (s *session) emitError(err error) {
	s.mu.Lock()
	handler := s.errorHandler
	s.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}

// toOAITools converts tool definitions to the OpenAI Realtime tool format.
func toOAITools(tools []types.ToolDefinition) []oaiTool {
	out := make([]oaiTool, len(tools))
	for i, t := range tools {
		out[i] = oaiTool{
			Type:        "function",
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		}
	}
	return out
}

// ── SessionHandle methods ────────────────────────────────────────────────

// OnToolCall implements realtime.SessionHandle.
func (s *session) OnToolCall(handler realtime.ToolCallHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolHandler = handler
}

// OnTranscript implements realtime.SessionHandle.
func (s *session) OnTranscript(handler func(types.TranscriptEntry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcriptHandler = handler
}

// OnError implements realtime.SessionHandle.
func (s *session) OnError(handler func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorHandler = handler
}

// SendAudio delivers a raw PCM16 audio chunk to the model. Chunks sent while
// muted are dropped silently.
func (s *session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return realtime.ErrSessionClosed
	}
	if s.muted {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	encoded := base64.StdEncoding.EncodeToString(chunk)
	return s.writeJSON(appendAudioMessage{
		Type:  "input_audio_buffer.append",
		Audio: encoded,
	})
}

// SetMuted implements realtime.SessionHandle. Muting clears the pending
// input buffer so half-captured speech is not processed on resume.
func (s *session) SetMuted(muted bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return realtime.ErrSessionClosed
	}
	s.muted = muted
	s.mu.Unlock()

	if muted {
		return s.writeJSON(map[string]string{"type": "input_audio_buffer.clear"})
	}
	return nil
}

// Close terminates the session and releases all resources. Idempotent.
func (s *session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.conn.Close(websocket.StatusNormalClosure, "session closed")
	return nil
}
