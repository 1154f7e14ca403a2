package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/topology-ai/topology/internal/canvas"
	"github.com/topology-ai/topology/internal/config"
	"github.com/topology-ai/topology/internal/extract"
	"github.com/topology-ai/topology/internal/observe"
	"github.com/topology-ai/topology/internal/session"
	"github.com/topology-ai/topology/internal/storage"
	"github.com/topology-ai/topology/internal/tools"
	"github.com/topology-ai/topology/internal/workflow"
	"github.com/topology-ai/topology/pkg/provider/llm"
	llmmock "github.com/topology-ai/topology/pkg/provider/llm/mock"
	realtimemock "github.com/topology-ai/topology/pkg/provider/realtime/mock"
	"github.com/topology-ai/topology/pkg/types"
)

// newTestApp assembles an App without touching global telemetry state, so
// tests stay independent of each other.
func newTestApp(t *testing.T, llmProvider llm.Provider, rtProvider *realtimemock.Provider) *App {
	t.Helper()

	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	a := &App{
		cfg:     config.Default(),
		metrics: metrics,
		store:   storage.NewMemStore(),
		surface: canvas.NewMemSurface(),
		wfStore: workflow.NewStore(),
	}
	resolver := workflow.NewResolver(a.wfStore)
	dispatcher := tools.NewDispatcher(a.wfStore, resolver, canvas.NewProjector(a.surface), metrics)

	if llmProvider != nil {
		a.extractor = extract.New(llmProvider, metrics)
	}
	if rtProvider != nil {
		a.ctrl = session.NewController(session.ControllerConfig{
			Provider:   rtProvider,
			Dispatcher: dispatcher,
			Store:      a.wfStore,
			Storage:    a.store,
		})
	}
	return a
}

func seedWorkflow(t *testing.T, a *App) workflow.Workflow {
	t.Helper()

	wf := workflow.Workflow{
		ID:           "wf-1",
		Name:         "Order Intake",
		Version:      "1.2",
		LastModified: "2026-08-31",
		Participants: []workflow.Participant{
			{ID: "sarah", Name: "Sarah", Type: workflow.ParticipantInternal, Role: "Account Manager"},
		},
		Steps: []workflow.Step{
			{ID: "step_1", Sequence: 1, Action: "Receive order", Actor: "sarah", Type: workflow.StepAction},
		},
	}
	if err := a.store.Save(context.Background(), wf); err != nil {
		t.Fatalf("seeding workflow: %v", err)
	}
	return wf
}

func TestListWorkflows(t *testing.T) {
	a := newTestApp(t, nil, nil)
	seedWorkflow(t, a)

	rec := httptest.NewRecorder()
	a.routes().ServeHTTP(rec, httptest.NewRequest("GET", "/v1/workflows", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var body struct {
		Workflows []storage.Summary `json:"workflows"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Workflows) != 1 || body.Workflows[0].Name != "Order Intake" {
		t.Errorf("workflows = %+v", body.Workflows)
	}
}

func TestGetWorkflow(t *testing.T) {
	a := newTestApp(t, nil, nil)
	seedWorkflow(t, a)

	rec := httptest.NewRecorder()
	a.routes().ServeHTTP(rec, httptest.NewRequest("GET", "/v1/workflows/wf-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var wf workflow.Workflow
	if err := json.NewDecoder(rec.Body).Decode(&wf); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if wf.ID != "wf-1" || len(wf.Steps) != 1 {
		t.Errorf("workflow = %+v", wf)
	}
}

func TestGetWorkflowNotFound(t *testing.T) {
	a := newTestApp(t, nil, nil)

	rec := httptest.NewRecorder()
	a.routes().ServeHTTP(rec, httptest.NewRequest("GET", "/v1/workflows/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestWorkflowDocument(t *testing.T) {
	a := newTestApp(t, nil, nil)
	seedWorkflow(t, a)

	rec := httptest.NewRecorder()
	a.routes().ServeHTTP(rec, httptest.NewRequest("GET", "/v1/workflows/wf-1/document", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("Content-Type = %q", ct)
	}
	doc := rec.Body.String()
	if !strings.Contains(doc, "# Order Intake") {
		t.Errorf("document missing title:\n%s", doc)
	}
	if !strings.Contains(doc, "**Who**: Sarah (Account Manager)") {
		t.Errorf("document missing actor line:\n%s", doc)
	}
}

func TestExtractEndpoint(t *testing.T) {
	provider := &llmmock.Provider{
		CompleteResponses: []*llm.CompletionResponse{
			{
				FinishReason: "tool_calls",
				ToolCalls: []types.ToolCall{
					{ID: "c1", Name: "set_workflow_name", Arguments: `{"name": "Order Intake"}`},
					{ID: "c2", Name: "add_participant", Arguments: `{"name": "Sarah", "type": "internal", "role": "Account Manager"}`},
				},
			},
			{Content: "Captured the workflow.", FinishReason: "stop"},
		},
	}
	a := newTestApp(t, provider, nil)

	req := httptest.NewRequest("POST", "/v1/extract",
		strings.NewReader(`{"transcript": "Sarah receives the order."}`))
	rec := httptest.NewRecorder()
	a.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var body extractResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Workflow.Name != "Order Intake" {
		t.Errorf("extracted name = %q", body.Workflow.Name)
	}
	if body.Iterations != 2 || body.Capped {
		t.Errorf("iterations = %d, capped = %v", body.Iterations, body.Capped)
	}

	// The extracted workflow must be persisted for later retrieval.
	list, err := a.store.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("persisted %d workflows, want 1", len(list))
	}
}

func TestExtractWithoutProvider(t *testing.T) {
	a := newTestApp(t, nil, nil)

	req := httptest.NewRequest("POST", "/v1/extract", strings.NewReader(`{"transcript": "x"}`))
	rec := httptest.NewRecorder()
	a.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	rt := &realtimemock.Provider{}
	a := newTestApp(t, nil, rt)
	h := a.routes()

	do := func(method, path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rec
	}

	if rec := do("POST", "/v1/session/connect", ""); rec.Code != http.StatusOK {
		t.Fatalf("connect status = %d, body %s", rec.Code, rec.Body)
	}
	if rec := do("POST", "/v1/session/connect", ""); rec.Code != http.StatusConflict {
		t.Errorf("second connect status = %d, want 409", rec.Code)
	}
	if rec := do("POST", "/v1/session/mute", `{"muted": true}`); rec.Code != http.StatusOK {
		t.Errorf("mute status = %d, body %s", rec.Code, rec.Body)
	}
	if rec := do("POST", "/v1/session/disconnect", ""); rec.Code != http.StatusOK {
		t.Errorf("disconnect status = %d, body %s", rec.Code, rec.Body)
	}
	if !rt.Session.Closed() {
		t.Error("session not closed after disconnect endpoint")
	}
	if rec := do("POST", "/v1/session/mute", `{"muted": false}`); rec.Code != http.StatusConflict {
		t.Errorf("mute without session status = %d, want 409", rec.Code)
	}
}

func TestSessionEndpointsWithoutProvider(t *testing.T) {
	a := newTestApp(t, nil, nil)

	rec := httptest.NewRecorder()
	a.routes().ServeHTTP(rec, httptest.NewRequest("POST", "/v1/session/connect", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	a := newTestApp(t, nil, nil)
	h := a.routes()

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}
