// Package app wires configuration, providers, storage, and the HTTP surface
// into a runnable server. New builds all subsystems, Run serves until the
// context is cancelled, and Shutdown tears everything down in reverse order.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/topology-ai/topology/internal/canvas"
	"github.com/topology-ai/topology/internal/config"
	"github.com/topology-ai/topology/internal/extract"
	"github.com/topology-ai/topology/internal/health"
	"github.com/topology-ai/topology/internal/observe"
	"github.com/topology-ai/topology/internal/session"
	"github.com/topology-ai/topology/internal/storage"
	"github.com/topology-ai/topology/internal/storage/postgres"
	"github.com/topology-ai/topology/internal/tools"
	"github.com/topology-ai/topology/internal/workflow"
	"github.com/topology-ai/topology/pkg/provider/llm"
	"github.com/topology-ai/topology/pkg/provider/realtime"
)

// shutdownTimeout bounds the HTTP server drain during Shutdown.
const shutdownTimeout = 10 * time.Second

// Providers bundles the externally constructed providers the app consumes.
// Either field may be nil; the corresponding endpoints then report the
// feature as unavailable.
type Providers struct {
	// LLM backs the batch transcript extractor.
	LLM llm.Provider

	// Realtime backs live voice sessions.
	Realtime realtime.Provider
}

// App owns all server subsystems.
type App struct {
	cfg       *config.Config
	metrics   *observe.Metrics
	store     storage.Store
	pool      *pgxpool.Pool
	wfStore   *workflow.Store
	surface   *canvas.MemSurface
	extractor *extract.Extractor
	ctrl      *session.Controller
	server    *http.Server

	shutdownTelemetry func(context.Context) error
}

// New builds the application from configuration and providers.
func New(ctx context.Context, cfg *config.Config, providers Providers) (*App, error) {
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "topology",
	})
	if err != nil {
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}
	metrics := observe.DefaultMetrics()

	a := &App{
		cfg:               cfg,
		metrics:           metrics,
		shutdownTelemetry: shutdownTelemetry,
	}

	if err := a.initStorage(ctx); err != nil {
		_ = shutdownTelemetry(ctx)
		return nil, err
	}

	// The server keeps an in-memory mirror of the canvas, so visual tool
	// calls work even before a renderer attaches.
	a.surface = canvas.NewMemSurface()
	a.wfStore = workflow.NewStore()
	resolver := workflow.NewResolver(a.wfStore)
	projector := canvas.NewProjector(a.surface)
	dispatcher := tools.NewDispatcher(a.wfStore, resolver, projector, metrics)

	if providers.LLM != nil {
		a.extractor = extract.New(providers.LLM, metrics,
			extract.WithTemperature(cfg.Extract.Temperature))
	}
	if providers.Realtime != nil {
		a.ctrl = session.NewController(session.ControllerConfig{
			Provider:     providers.Realtime,
			Dispatcher:   dispatcher,
			Store:        a.wfStore,
			Storage:      a.store,
			Instructions: sessionInstructions,
			Voice:        cfg.Realtime.Voice,
			Metrics:      metrics,
		})
	}

	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// initStorage builds the snapshot store selected by the configuration.
func (a *App) initStorage(ctx context.Context) error {
	switch a.cfg.Storage.Backend {
	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, a.cfg.Storage.PostgresDSN)
		if err != nil {
			return fmt.Errorf("app: connect postgres: %w", err)
		}
		store := postgres.New(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return err
		}
		a.pool = pool
		a.store = store
		slog.Info("storage ready", "backend", "postgres")
	default:
		a.store = storage.NewMemStore()
		slog.Info("storage ready", "backend", "memory")
	}
	return nil
}

// routes assembles the HTTP handler tree.
func (a *App) routes() http.Handler {
	mux := http.NewServeMux()

	checkers := []health.Checker{health.StorageChecker(a.store)}
	health.New(checkers...).Register(mux)

	mux.Handle("GET /metrics", metricsHandler())

	mux.HandleFunc("GET /v1/workflows", a.handleListWorkflows)
	mux.HandleFunc("GET /v1/workflows/{id}", a.handleGetWorkflow)
	mux.HandleFunc("GET /v1/workflows/{id}/document", a.handleWorkflowDocument)
	mux.HandleFunc("POST /v1/extract", a.handleExtract)
	mux.HandleFunc("POST /v1/session/connect", a.handleSessionConnect)
	mux.HandleFunc("POST /v1/session/disconnect", a.handleSessionDisconnect)
	mux.HandleFunc("POST /v1/session/mute", a.handleSessionMute)

	return observe.Middleware(a.metrics)(mux)
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(drainCtx)
	})

	return g.Wait()
}

// Shutdown tears down subsystems in reverse-init order.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if a.ctrl != nil {
		if err := a.ctrl.Disconnect(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.shutdownTelemetry != nil {
		if err := a.shutdownTelemetry(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// sessionInstructions is the system prompt for live voice sessions.
const sessionInstructions = `You are a business process analyst conducting a live mapping session.
As the participants describe their process, capture it with the workflow
tools: add_participant for every person or team, add_step for every
activity, add_flow for the transitions between steps. Use set_workflow_name
once the process has a clear name and add_session_note for context worth
keeping. Confirm what you captured in one short sentence at a time.`
