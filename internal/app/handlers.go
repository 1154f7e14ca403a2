package app

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/topology-ai/topology/internal/session"
	"github.com/topology-ai/topology/internal/workflow"
)

// maxRequestBody caps extract request bodies. Transcripts of multi-hour
// sessions fit comfortably under this.
const maxRequestBody = 4 << 20

// metricsHandler serves the Prometheus scrape endpoint. The OTel prometheus
// exporter registers with the default registry.
func metricsHandler() http.Handler {
	return promhttp.Handler()
}

// ── Workflows ────────────────────────────────────────────────────────────

func (a *App) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	list, err := a.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflows": list})
}

func (a *App) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := a.loadWorkflow(w, r)
	if wf == nil || err != nil {
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (a *App) handleWorkflowDocument(w http.ResponseWriter, r *http.Request) {
	wf, err := a.loadWorkflow(w, r)
	if wf == nil || err != nil {
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	io.WriteString(w, workflow.GenerateDocument(wf))
}

// loadWorkflow fetches the workflow named in the path, writing the error
// response itself. A nil workflow with nil error means 404 was already sent.
func (a *App) loadWorkflow(w http.ResponseWriter, r *http.Request) (*workflow.Workflow, error) {
	id := r.PathValue("id")
	wf, err := a.store.Load(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return nil, err
	}
	if wf == nil {
		writeError(w, http.StatusNotFound, errors.New("workflow not found: "+id))
		return nil, nil
	}
	return wf, nil
}

// ── Extraction ───────────────────────────────────────────────────────────

type extractRequest struct {
	Transcript string `json:"transcript"`
}

type extractResponse struct {
	Workflow     workflow.Workflow `json:"workflow"`
	Iterations   int               `json:"iterations"`
	FinishReason string            `json:"finishReason"`
	Capped       bool              `json:"capped"`
}

func (a *App) handleExtract(w http.ResponseWriter, r *http.Request) {
	if a.extractor == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no LLM provider configured"))
		return
	}

	var req extractRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.extractor.Extract(r.Context(), req.Transcript)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	if err := a.store.Save(r.Context(), result.Workflow); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, extractResponse{
		Workflow:     result.Workflow,
		Iterations:   result.Iterations,
		FinishReason: result.FinishReason,
		Capped:       result.Capped,
	})
}

// ── Sessions ─────────────────────────────────────────────────────────────

type muteRequest struct {
	Muted bool `json:"muted"`
}

func (a *App) handleSessionConnect(w http.ResponseWriter, r *http.Request) {
	if a.ctrl == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no realtime provider configured"))
		return
	}
	if err := a.ctrl.Connect(r.Context()); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, session.ErrAlreadyConnected) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"connected": true})
}

func (a *App) handleSessionDisconnect(w http.ResponseWriter, r *http.Request) {
	if a.ctrl == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no realtime provider configured"))
		return
	}
	if err := a.ctrl.Disconnect(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"connected": false})
}

func (a *App) handleSessionMute(w http.ResponseWriter, r *http.Request) {
	if a.ctrl == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no realtime provider configured"))
		return
	}

	var req muteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.ctrl.SetMuted(req.Muted); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"muted": req.Muted})
}

// ── Response helpers ─────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
