// Package health provides HTTP liveness and readiness handlers.
//
//   - /healthz — liveness probe; returns 200 whenever the process serves HTTP.
//   - /readyz  — readiness probe; returns 200 only when every registered
//     [Checker] passes.
//
// Responses are JSON with a top-level "status" field ("ok" or "fail") and a
// "checks" map with one entry per named checker.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/topology-ai/topology/internal/storage"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named readiness probe. Check must return nil when the
// dependency is healthy and respect context cancellation.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// StorageChecker probes a workflow store by listing its contents.
func StorageChecker(store storage.Store) Checker {
	return Checker{
		Name: "storage",
		Check: func(ctx context.Context) error {
			if store == nil {
				return fmt.Errorf("no storage configured")
			}
			_, err := store.List(ctx)
			return err
		},
	}
}

// response is the JSON body served by both endpoints.
type response struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime,omitempty"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the health endpoints. The checker list is fixed at
// construction time; Handler is safe for concurrent use.
type Handler struct {
	started  time.Time
	checkers []Checker
}

// New creates a [Handler] evaluating the given checkers on each /readyz
// request, sequentially and in order.
func New(checkers ...Checker) *Handler {
	return &Handler{
		started:  time.Now(),
		checkers: append([]Checker(nil), checkers...),
	}
}

// Healthz is the liveness probe. It always returns 200 with the process
// uptime.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{
		Status: "ok",
		Uptime: time.Since(h.started).Round(time.Second).String(),
	})
}

// Readyz is the readiness probe. It returns 503 as soon as any checker
// fails; all checkers are still evaluated so the response names every
// failing dependency.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	status := http.StatusOK

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[c.Name] = "ok"
	}

	res := response{Status: "ok", Checks: checks}
	if status != http.StatusOK {
		res.Status = "fail"
	}
	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
