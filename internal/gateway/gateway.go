// ABOUTME: Gateway orchestrator that assembles and runs the HTTP server
// ABOUTME: Manages the definition store, session hub, web UI and health endpoints lifecycle

package gateway

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/2389/coven-wizard/internal/assets"
	"github.com/2389/coven-wizard/internal/config"
	"github.com/2389/coven-wizard/internal/conversation"
	"github.com/2389/coven-wizard/internal/dedupe"
	"github.com/2389/coven-wizard/internal/deliverable"
	"github.com/2389/coven-wizard/internal/i18n"
	"github.com/2389/coven-wizard/internal/metrics"
	"github.com/2389/coven-wizard/internal/session"
	"github.com/2389/coven-wizard/internal/store"
	"github.com/2389/coven-wizard/internal/webui"
	"github.com/2389/coven-wizard/internal/workflow"
)

// maxNonces bounds the replay guard across all sessions.
const maxNonces = 100_000

// Gateway orchestrates the coven-wizard server components.
type Gateway struct {
	config      *config.Config
	store       store.DefinitionStore
	hub         *session.Hub
	broadcaster *conversation.EventBroadcaster
	guard       *dedupe.Guard
	metrics     *metrics.Metrics
	ui          *webui.UI
	httpServer  *http.Server
	logger      *slog.Logger
}

// initStore creates the SQLite store, honoring COVEN_WIZARD_DB_PATH.
func initStore(cfg *config.Config) (*store.SQLiteStore, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("COVEN_WIZARD_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// SeedWorkflows upserts every definition file in dir into the store.
// An empty dir seeds nothing.
func SeedWorkflows(ctx context.Context, s store.DefinitionStore, dir string, logger *slog.Logger) (int, error) {
	if dir == "" {
		return 0, nil
	}

	defs, err := workflow.LoadDir(dir)
	if err != nil {
		return 0, err
	}
	for _, def := range defs {
		if err := s.SaveDefinition(ctx, def); err != nil {
			return 0, fmt.Errorf("saving workflow %q: %w", def.ID, err)
		}
		logger.Debug("seeded workflow", "workflow_id", def.ID, "steps", len(def.Steps))
	}
	return len(defs), nil
}

// sessionSecret returns the configured cookie secret or a random one.
func sessionSecret(cfg *config.Config, logger *slog.Logger) ([]byte, error) {
	if cfg.Sessions.Secret != "" {
		return []byte(cfg.Sessions.Secret), nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating session secret: %w", err)
	}
	logger.Info("sessions.secret not set, using a random secret for this process")
	return secret, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	seeded, err := SeedWorkflows(context.Background(), s, cfg.Workflows.Dir, logger.With("component", "seed"))
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("seeding workflows: %w", err)
	}
	if seeded > 0 {
		logger.Info("seeded workflows", "count", seeded, "dir", cfg.Workflows.Dir)
	}

	secret, err := sessionSecret(cfg, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	broadcaster := conversation.NewEventBroadcaster(logger)
	guard := dedupe.New(cfg.Sessions.IdleTimeout, maxNonces)
	hub := session.NewHub(session.Config{
		IdleTimeout:   cfg.Sessions.IdleTimeout,
		SweepInterval: time.Minute,
		Delays:        cfg.Engine.Delays(),
		Override:      cfg.Engine.DefaultOverride,
		Nonces:        guard,
	}, broadcaster, m, logger)

	gw := &Gateway{
		config:      cfg,
		store:       s,
		hub:         hub,
		broadcaster: broadcaster,
		guard:       guard,
		metrics:     m,
		logger:      logger.With("component", "gateway"),
	}

	gw.ui = webui.New(webui.Deps{
		Store:       s,
		Hub:         hub,
		Broadcaster: broadcaster,
		Guard:       guard,
		Signer:      session.NewTokenSigner(secret),
		Producer:    deliverable.NewMarkdownProducer(time.Now),
		Metrics:     m,
	}, webui.Config{
		CookieName:      cfg.Sessions.CookieName,
		DefaultLanguage: i18n.Parse(cfg.I18n.DefaultLanguage),
	}, logger)

	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("GET /health", gw.handleHealth)
	mux.HandleFunc("GET /health/ready", gw.handleReady)

	// Read-only workflow API
	mux.HandleFunc("GET /api/workflows", gw.handleListWorkflows)
	mux.HandleFunc("GET /api/workflows/{id}", gw.handleGetWorkflow)

	mux.Handle("GET "+assets.Prefix, http.StripPrefix(assets.Prefix, assets.FileServer()))

	if m != nil {
		mux.Handle("GET "+cfg.Metrics.Path, m.Handler())
		logger.Info("metrics enabled", "path", cfg.Metrics.Path)
	}

	gw.ui.RegisterRoutes(mux)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Handler returns the root HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server, unmounts every chat view and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	g.hub.Shutdown()
	g.guard.Close()
	g.broadcaster.Close()

	errs = appendCloseError(errs, "store close", g.store.Close())

	return errors.Join(errs...)
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if at least one workflow can be started.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	summaries, err := g.store.ListDefinitions(r.Context())
	if err != nil {
		g.logger.Error("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	if len(summaries) == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no workflows loaded"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d workflows, %d sessions)", len(summaries), g.hub.Len())
}
