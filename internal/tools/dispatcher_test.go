package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/topology-ai/topology/internal/canvas"
	"github.com/topology-ai/topology/internal/tools"
	"github.com/topology-ai/topology/internal/workflow"
)

func newDispatcher(t *testing.T, surface canvas.Surface) (*tools.Dispatcher, *workflow.Store) {
	t.Helper()
	store := workflow.NewStore()
	resolver := workflow.NewResolver(store)
	projector := canvas.NewProjector(surface)
	return tools.NewDispatcher(store, resolver, projector, nil), store
}

func mustExecute(t *testing.T, d *tools.Dispatcher, name, args string) map[string]any {
	t.Helper()
	out, err := d.Execute(context.Background(), name, args)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("%s returned invalid JSON %q: %v", name, out, err)
	}
	return result
}

func TestDispatcherWorkflowScenario(t *testing.T) {
	t.Parallel()

	surface := canvas.NewMemSurface()
	d, store := newDispatcher(t, surface)

	res := mustExecute(t, d, tools.NameAddParticipant,
		`{"name":"Sarah","type":"internal","role":"Account Manager"}`)
	if res["id"] != "sarah" {
		t.Fatalf("participant id = %v", res["id"])
	}

	// Duplicate mention: same id, no second participant, no second node.
	res = mustExecute(t, d, tools.NameAddParticipant,
		`{"name":"sarah","type":"internal","role":"Ops"}`)
	if res["id"] != "sarah" {
		t.Fatalf("duplicate participant id = %v", res["id"])
	}
	if got := len(store.Workflow().Participants); got != 1 {
		t.Fatalf("participants = %d, want 1", got)
	}

	res = mustExecute(t, d, tools.NameAddStep,
		`{"action":"Review order","actor":"Sarah","type":"action"}`)
	if res["id"] != "step_1" {
		t.Fatalf("step id = %v", res["id"])
	}
	if step, _ := store.Workflow().Step("step_1"); step.Actor != "sarah" {
		t.Fatalf("step actor = %q", step.Actor)
	}

	mustExecute(t, d, tools.NameAddStep,
		`{"action":"Approve?","actor":"Sarah","type":"decision","conditions":{"approved":"Stock available","rejected":"Out of stock"}}`)
	mustExecute(t, d, tools.NameAddFlow, `{"from":"step_1","to":"step_2"}`)

	if got := len(store.Workflow().Flows); got != 1 {
		t.Fatalf("flows = %d, want 1", got)
	}

	// The projection kept pace with the graph.
	if _, ok := surface.Node(canvas.StepNodeID("step_2")); !ok {
		t.Fatal("step_2 not drawn")
	}
	if got := len(surface.Connectors()); got != 1 {
		t.Fatalf("connectors = %d, want 1", got)
	}

	mustExecute(t, d, tools.NameSetWorkflowName, `{"name":"Order Handling"}`)
	mustExecute(t, d, tools.NameAddSessionNote, `{"note":"First pass"}`)

	wf := store.Workflow()
	if wf.Name != "Order Handling" || len(wf.Metadata.Notes) != 1 {
		t.Fatalf("workflow = %q notes=%d", wf.Name, len(wf.Metadata.Notes))
	}
}

func TestDispatcherConnectRequiresBothEndpoints(t *testing.T) {
	t.Parallel()

	surface := canvas.NewMemSurface()
	d, _ := newDispatcher(t, surface)

	res := mustExecute(t, d, tools.NameDrawItem, `{"type":"server","x":100,"y":100}`)
	serverID, _ := res["id"].(string)
	if serverID == "" {
		t.Fatal("draw_item returned no id")
	}

	args, _ := json.Marshal(map[string]string{"from": serverID, "to": "shape:item_database_9"})
	_, err := d.Execute(context.Background(), tools.NameConnect, string(args))
	if !errors.Is(err, tools.ErrEntityNotFound) {
		t.Fatalf("err = %v, want ErrEntityNotFound", err)
	}
	if got := len(surface.Connectors()); got != 0 {
		t.Fatalf("connectors = %d, want 0", got)
	}
}

func TestDispatcherVisualOpsWithoutSurface(t *testing.T) {
	t.Parallel()

	d, store := newDispatcher(t, nil)
	ctx := context.Background()

	if _, err := d.Execute(ctx, tools.NameDrawItem, `{"type":"server","x":0,"y":0}`); !errors.Is(err, tools.ErrEngineNotReady) {
		t.Fatalf("draw_item err = %v, want ErrEngineNotReady", err)
	}
	if _, err := d.Execute(ctx, tools.NameAddText, `{"text":"hi","x":0,"y":0}`); !errors.Is(err, tools.ErrEngineNotReady) {
		t.Fatalf("add_text err = %v, want ErrEngineNotReady", err)
	}

	// Workflow operations still record graph data headlessly.
	res := mustExecute(t, d, tools.NameAddParticipant, `{"name":"Ops","type":"internal"}`)
	if res["id"] != "ops" {
		t.Fatalf("participant id = %v", res["id"])
	}
	mustExecute(t, d, tools.NameAddStep, `{"action":"Check","actor":"Ops"}`)
	if got := len(store.Workflow().Steps); got != 1 {
		t.Fatalf("steps = %d, want 1", got)
	}
}

func TestDispatcherArgumentValidation(t *testing.T) {
	t.Parallel()

	d, _ := newDispatcher(t, canvas.NewMemSurface())
	ctx := context.Background()

	cases := []struct {
		name string
		tool string
		args string
	}{
		{"malformed json", tools.NameAddParticipant, `{"name":`},
		{"empty name", tools.NameAddParticipant, `{"name":"","type":"internal"}`},
		{"bad participant type", tools.NameAddParticipant, `{"name":"Bob","type":"robot"}`},
		{"empty action", tools.NameAddStep, `{"action":"","actor":"Bob"}`},
		{"bad step type", tools.NameAddStep, `{"action":"Go","actor":"Bob","type":"loop"}`},
		{"missing flow endpoint", tools.NameAddFlow, `{"from":"step_1"}`},
		{"bad direction", tools.NameConnect, `{"from":"a","to":"b","direction":"sideways"}`},
		{"empty note", tools.NameAddSessionNote, `{"note":""}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := d.Execute(ctx, tc.tool, tc.args)
			if !errors.Is(err, tools.ErrArgumentParse) {
				t.Fatalf("err = %v, want ErrArgumentParse", err)
			}
		})
	}
}

func TestDispatcherUnknownTool(t *testing.T) {
	t.Parallel()

	d, _ := newDispatcher(t, canvas.NewMemSurface())
	_, err := d.Execute(context.Background(), "summon_demon", `{}`)
	if !errors.Is(err, tools.ErrUnknownTool) {
		t.Fatalf("err = %v, want ErrUnknownTool", err)
	}
}

func TestDispatcherDeleteItem(t *testing.T) {
	t.Parallel()

	surface := canvas.NewMemSurface()
	d, _ := newDispatcher(t, surface)

	res := mustExecute(t, d, tools.NameDrawItem, `{"type":"user","x":50,"y":50}`)
	id := res["id"].(string)

	args, _ := json.Marshal(map[string]string{"id": id})
	mustExecute(t, d, tools.NameDeleteItem, string(args))

	if _, ok := surface.Node(id); ok {
		t.Fatal("node still present after delete_item")
	}
}

func TestDefinitionsCoverVocabulary(t *testing.T) {
	t.Parallel()

	defs := tools.Definitions()
	want := map[string]bool{
		tools.NameDrawItem: false, tools.NameConnect: false, tools.NameDeleteItem: false,
		tools.NameAddText: false, tools.NameAddParticipant: false, tools.NameAddStep: false,
		tools.NameAddFlow: false, tools.NameSetWorkflowName: false, tools.NameAddSessionNote: false,
	}
	for _, def := range defs {
		if _, ok := want[def.Name]; !ok {
			t.Errorf("unexpected tool %q", def.Name)
			continue
		}
		want[def.Name] = true
		if def.Description == "" {
			t.Errorf("tool %q has no description", def.Name)
		}
		if def.Parameters["type"] != "object" {
			t.Errorf("tool %q parameters are not an object schema", def.Name)
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("tool %q missing from definitions", name)
		}
	}
}
