// Package tools exposes the fixed vocabulary of named operations callable by
// the realtime session, the batch extractor, and the MCP server.
//
// Each operation validates its declared argument shape, delegates to the
// entity resolver, the workflow store, and the canvas projector, and returns
// a JSON result string carrying the stable identifier the caller can
// reference in later operations. The [Dispatcher] is built with explicit
// handles to its collaborators; there is no package-level mutable state.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/topology-ai/topology/internal/canvas"
	"github.com/topology-ai/topology/internal/observe"
	"github.com/topology-ai/topology/internal/workflow"
)

// Sentinel errors surfaced by Execute. ErrEngineNotReady and
// ErrEntityNotFound originate in the projection layer and are re-exported
// here so callers only need this package to classify failures.
var (
	ErrEngineNotReady = canvas.ErrEngineNotReady
	ErrEntityNotFound = canvas.ErrEntityNotFound

	// ErrUnknownTool means the requested name is not in the vocabulary.
	ErrUnknownTool = errors.New("tools: unknown tool")

	// ErrArgumentParse means a tool invocation's arguments could not be
	// decoded or failed validation. The failure applies to that single
	// invocation only.
	ErrArgumentParse = errors.New("tools: invalid arguments")
)

// Dispatcher routes named tool invocations to the workflow store, the entity
// resolver, and the canvas projector.
//
// All invocations are serialised through one mutex: tool calls from a single
// turn must observe the side effects of earlier calls in the same turn, and
// the store and projector are not safe for concurrent use on their own.
type Dispatcher struct {
	mu        sync.Mutex
	store     *workflow.Store
	resolver  *workflow.Resolver
	projector *canvas.Projector
	metrics   *observe.Metrics
}

// NewDispatcher builds a Dispatcher over the given collaborators. projector
// may wrap a nil surface (headless extraction); metrics may be nil to skip
// instrumentation.
func NewDispatcher(store *workflow.Store, resolver *workflow.Resolver, projector *canvas.Projector, metrics *observe.Metrics) *Dispatcher {
	if projector == nil {
		projector = canvas.NewProjector(nil)
	}
	return &Dispatcher{
		store:     store,
		resolver:  resolver,
		projector: projector,
		metrics:   metrics,
	}
}

// Execute runs the named tool with JSON-encoded args and returns a
// JSON-encoded result string. Invocations are executed strictly in arrival
// order.
func (d *Dispatcher) Execute(ctx context.Context, name, args string) (result string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	defer func() {
		if d.metrics == nil {
			return
		}
		status := "ok"
		if err != nil {
			status = "error"
		}
		d.metrics.RecordToolCall(ctx, name, status)
		d.metrics.ToolExecutionDuration.Record(ctx, time.Since(start).Seconds())
	}()

	switch name {
	case NameDrawItem:
		return d.drawItem(args)
	case NameConnect:
		return d.connect(args)
	case NameDeleteItem:
		return d.deleteItem(args)
	case NameAddText:
		return d.addText(args)
	case NameAddParticipant:
		return d.addParticipant(ctx, args)
	case NameAddStep:
		return d.addStep(args)
	case NameAddFlow:
		return d.addFlow(args)
	case NameSetWorkflowName:
		return d.setWorkflowName(args)
	case NameAddSessionNote:
		return d.addSessionNote(args)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
}

// decodeArgs unmarshals args into v, mapping decode failures onto
// [ErrArgumentParse].
func decodeArgs(args string, v any) error {
	if err := json.Unmarshal([]byte(args), v); err != nil {
		return fmt.Errorf("%w: %v", ErrArgumentParse, err)
	}
	return nil
}

func encodeResult(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("tools: encode result: %w", err)
	}
	return string(raw), nil
}

// ── Ad hoc canvas operations ─────────────────────────────────────────────

type drawItemArgs struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

func (d *Dispatcher) drawItem(args string) (string, error) {
	var a drawItemArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if a.Type == "" {
		return "", fmt.Errorf("%w: type must not be empty", ErrArgumentParse)
	}

	id, err := d.projector.DrawItem(canvas.Kind(a.Type), a.X, a.Y)
	if err != nil {
		return "", err
	}
	return encodeResult(map[string]string{"id": id})
}

type connectArgs struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Direction string `json:"direction"`
}

func (d *Dispatcher) connect(args string) (string, error) {
	var a connectArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if a.From == "" || a.To == "" {
		return "", fmt.Errorf("%w: from and to must not be empty", ErrArgumentParse)
	}
	switch a.Direction {
	case "", "one_way", "two_way":
	default:
		return "", fmt.Errorf("%w: direction must be one_way or two_way", ErrArgumentParse)
	}

	if err := d.projector.Connect(a.From, a.To, a.Direction == "two_way"); err != nil {
		return "", err
	}
	return encodeResult(map[string]string{"from": a.From, "to": a.To})
}

type deleteItemArgs struct {
	ID string `json:"id"`
}

func (d *Dispatcher) deleteItem(args string) (string, error) {
	var a deleteItemArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if a.ID == "" {
		return "", fmt.Errorf("%w: id must not be empty", ErrArgumentParse)
	}

	if err := d.projector.Delete(a.ID); err != nil {
		return "", err
	}
	return encodeResult(map[string]string{"deleted": a.ID})
}

type addTextArgs struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

func (d *Dispatcher) addText(args string) (string, error) {
	var a addTextArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if a.Text == "" {
		return "", fmt.Errorf("%w: text must not be empty", ErrArgumentParse)
	}

	id, err := d.projector.AddText(a.Text, a.X, a.Y)
	if err != nil {
		return "", err
	}
	return encodeResult(map[string]string{"id": id})
}

// ── Workflow operations ──────────────────────────────────────────────────
//
// These always apply the graph mutation; the visual projection is skipped
// with a warning when no rendering surface is attached, so the same
// vocabulary works in headless batch extraction.

type addParticipantArgs struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Role string `json:"role"`
}

func (d *Dispatcher) addParticipant(ctx context.Context, args string) (string, error) {
	var a addParticipantArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if a.Name == "" {
		return "", fmt.Errorf("%w: name must not be empty", ErrArgumentParse)
	}
	ptype := workflow.ParticipantType(a.Type)
	if !ptype.IsValid() {
		return "", fmt.Errorf("%w: participant type must be internal or external", ErrArgumentParse)
	}

	before := len(d.store.Workflow().Participants)
	id := d.resolver.ResolveOrCreateParticipant(a.Name, ptype, a.Role)
	created := len(d.store.Workflow().Participants) > before

	if d.metrics != nil {
		outcome := "reused"
		if created {
			outcome = "created"
		}
		d.metrics.RecordResolverOutcome(ctx, outcome)
	}

	if created {
		d.projectParticipant(id)
	}
	return encodeResult(map[string]string{"id": id})
}

func (d *Dispatcher) projectParticipant(id string) {
	if !d.projector.Ready() {
		slog.Warn("no rendering surface attached, participant not drawn", "participant", id)
		return
	}
	wf := d.store.Workflow()
	if p, ok := wf.Participant(id); ok {
		if err := d.projector.AddParticipantNode(wf, p); err != nil {
			slog.Warn("participant projection failed", "participant", id, "error", err)
		}
	}
}

type addStepArgs struct {
	Action     string            `json:"action"`
	Actor      string            `json:"actor"`
	Type       string            `json:"type"`
	Conditions map[string]string `json:"conditions"`
	Inputs     []string          `json:"inputs"`
	Outputs    []string          `json:"outputs"`
}

func (d *Dispatcher) addStep(args string) (string, error) {
	var a addStepArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if a.Action == "" {
		return "", fmt.Errorf("%w: action must not be empty", ErrArgumentParse)
	}
	stype := workflow.StepType(a.Type)
	if a.Type == "" {
		stype = workflow.StepAction
	}
	if !stype.IsValid() {
		return "", fmt.Errorf("%w: step type must be action or decision", ErrArgumentParse)
	}

	actorID := d.resolver.ResolveActor(a.Actor)
	id := d.store.AddStep(a.Action, actorID, stype, a.Conditions, a.Inputs, a.Outputs)

	if d.projector.Ready() {
		wf := d.store.Workflow()
		if step, ok := wf.Step(id); ok {
			if err := d.projector.AddStepNode(wf, step); err != nil {
				slog.Warn("step projection failed", "step", id, "error", err)
			}
		}
	} else {
		slog.Warn("no rendering surface attached, step not drawn", "step", id)
	}
	return encodeResult(map[string]string{"id": id})
}

type addFlowArgs struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Condition string `json:"condition"`
}

func (d *Dispatcher) addFlow(args string) (string, error) {
	var a addFlowArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if a.From == "" || a.To == "" {
		return "", fmt.Errorf("%w: from and to must not be empty", ErrArgumentParse)
	}

	d.store.AddFlow(a.From, a.To, a.Condition)

	if d.projector.Ready() {
		index := len(d.store.Workflow().Flows) - 1
		d.projector.AddFlowConnector(index, workflow.Flow{From: a.From, To: a.To, Condition: a.Condition})
	}
	return encodeResult(map[string]string{"from": a.From, "to": a.To})
}

type setWorkflowNameArgs struct {
	Name string `json:"name"`
}

func (d *Dispatcher) setWorkflowName(args string) (string, error) {
	var a setWorkflowNameArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if a.Name == "" {
		return "", fmt.Errorf("%w: name must not be empty", ErrArgumentParse)
	}

	d.store.SetName(a.Name)
	return encodeResult(map[string]string{"name": a.Name})
}

type addSessionNoteArgs struct {
	Note string `json:"note"`
}

func (d *Dispatcher) addSessionNote(args string) (string, error) {
	var a addSessionNoteArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if a.Note == "" {
		return "", fmt.Errorf("%w: note must not be empty", ErrArgumentParse)
	}

	d.store.AddNote(a.Note)
	return encodeResult(map[string]bool{"ok": true})
}
