package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/topology-ai/topology/internal/session"
	"github.com/topology-ai/topology/internal/storage"
	"github.com/topology-ai/topology/internal/tools"
	"github.com/topology-ai/topology/internal/workflow"
	"github.com/topology-ai/topology/pkg/provider/realtime"
	realtimemock "github.com/topology-ai/topology/pkg/provider/realtime/mock"
	"github.com/topology-ai/topology/pkg/types"
)

type fixture struct {
	provider   *realtimemock.Provider
	store      *workflow.Store
	storage    *storage.MemStore
	controller *session.Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := workflow.NewStore()
	resolver := workflow.NewResolver(store)
	dispatcher := tools.NewDispatcher(store, resolver, nil, nil)

	provider := &realtimemock.Provider{}
	mem := storage.NewMemStore()

	ctrl := session.NewController(session.ControllerConfig{
		Provider:     provider,
		Dispatcher:   dispatcher,
		Store:        store,
		Storage:      mem,
		Instructions: "Capture the workflow.",
		Voice:        "alloy",
	})

	return &fixture{provider: provider, store: store, storage: mem, controller: ctrl}
}

func TestControllerConnect(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	if f.controller.Connected() {
		t.Fatal("Connected() = true before Connect")
	}
	if err := f.controller.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !f.controller.Connected() {
		t.Fatal("Connected() = false after Connect")
	}

	if len(f.provider.ConnectCalls) != 1 {
		t.Fatalf("provider received %d Connect calls, want 1", len(f.provider.ConnectCalls))
	}
	cfg := f.provider.ConnectCalls[0]
	if cfg.Instructions != "Capture the workflow." {
		t.Errorf("session instructions = %q", cfg.Instructions)
	}
	if cfg.Voice != "alloy" {
		t.Errorf("session voice = %q, want alloy", cfg.Voice)
	}
	if len(cfg.Tools) != len(tools.Definitions()) {
		t.Errorf("session registered %d tools, want the full vocabulary of %d",
			len(cfg.Tools), len(tools.Definitions()))
	}

	if err := f.controller.Connect(ctx); !errors.Is(err, session.ErrAlreadyConnected) {
		t.Errorf("second Connect() = %v, want ErrAlreadyConnected", err)
	}
}

func TestControllerToolCallsReachDispatcher(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	if err := f.controller.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	result, err := f.provider.Session.EmitToolCall("add_participant",
		`{"name": "Sarah", "type": "internal", "role": "Account Manager"}`)
	if err != nil {
		t.Fatalf("tool call error = %v", err)
	}
	if result == "" {
		t.Error("tool call returned empty result")
	}

	snap := f.store.Snapshot()
	if len(snap.Participants) != 1 || snap.Participants[0].Name != "Sarah" {
		t.Errorf("participants after tool call = %+v", snap.Participants)
	}
}

func TestControllerTranscriptAccumulates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if err := f.controller.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	f.provider.Session.EmitTranscript(types.TranscriptEntry{
		Speaker: "user", Text: "Sarah receives the order.", Timestamp: time.Now(),
	})
	f.provider.Session.EmitTranscript(types.TranscriptEntry{
		Speaker: "assistant", Text: "Got it, adding Sarah.", Timestamp: time.Now(),
	})

	got := f.controller.Transcript()
	if len(got) != 2 {
		t.Fatalf("Transcript() length = %d, want 2", len(got))
	}
	if got[0].Speaker != "user" || got[1].Speaker != "assistant" {
		t.Errorf("transcript order = %q then %q", got[0].Speaker, got[1].Speaker)
	}
}

func TestControllerDisconnectPersistsSnapshot(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	if err := f.controller.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if _, err := f.provider.Session.EmitToolCall("add_participant",
		`{"name": "Sarah", "type": "internal", "role": "Account Manager"}`); err != nil {
		t.Fatalf("tool call error = %v", err)
	}

	if err := f.controller.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if f.controller.Connected() {
		t.Error("Connected() = true after Disconnect")
	}
	if !f.provider.Session.Closed() {
		t.Error("session handle was not closed")
	}

	list, err := f.storage.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("persisted %d workflows, want 1", len(list))
	}

	loaded, err := f.storage.Load(ctx, list[0].ID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded.Participants) != 1 || loaded.Participants[0].ID != "sarah" {
		t.Errorf("persisted participants = %+v", loaded.Participants)
	}
}

func TestControllerDisconnectSkipsEmptyWorkflow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	if err := f.controller.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := f.controller.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}

	list, err := f.storage.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 0 {
		t.Errorf("persisted %d workflows for an untouched session, want 0", len(list))
	}
}

func TestControllerDisconnectIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	if err := f.controller.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect() without session error = %v", err)
	}

	if err := f.controller.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := f.controller.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if err := f.controller.Disconnect(ctx); err != nil {
		t.Fatalf("second Disconnect() error = %v", err)
	}
}

func TestControllerMuteAndAudio(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	if err := f.controller.SetMuted(true); !errors.Is(err, realtime.ErrSessionClosed) {
		t.Errorf("SetMuted() without session = %v, want ErrSessionClosed", err)
	}
	if err := f.controller.SendAudio([]byte{1, 2}); !errors.Is(err, realtime.ErrSessionClosed) {
		t.Errorf("SendAudio() without session = %v, want ErrSessionClosed", err)
	}

	if err := f.controller.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := f.controller.SendAudio([]byte{1, 2}); err != nil {
		t.Fatalf("SendAudio() error = %v", err)
	}
	if err := f.controller.SetMuted(true); err != nil {
		t.Fatalf("SetMuted(true) error = %v", err)
	}
	if err := f.controller.SendAudio([]byte{3, 4}); err != nil {
		t.Fatalf("SendAudio() while muted error = %v", err)
	}

	if got := len(f.provider.Session.AudioChunks); got != 1 {
		t.Errorf("session recorded %d audio chunks, want 1 (muted chunk dropped)", got)
	}
	if want := []bool{true}; len(f.provider.Session.MuteCalls) != 1 || f.provider.Session.MuteCalls[0] != want[0] {
		t.Errorf("mute calls = %v, want [true]", f.provider.Session.MuteCalls)
	}
}

func TestControllerConnectFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.provider.ConnectErr = realtime.ErrCredentialInvalid

	err := f.controller.Connect(context.Background())
	if !errors.Is(err, realtime.ErrCredentialInvalid) {
		t.Fatalf("Connect() = %v, want wrapped ErrCredentialInvalid", err)
	}
	if f.controller.Connected() {
		t.Error("Connected() = true after failed Connect")
	}
}
