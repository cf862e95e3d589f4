// ABOUTME: Tests for the Gateway orchestrator lifecycle and health endpoints
// ABOUTME: Runs the real HTTP server on a free port against an in-memory store

package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/2389/coven-wizard/internal/config"
	"github.com/2389/coven-wizard/internal/store"
)

const briefYAML = `id: brand-brief
title: Brand brief
steps:
  - id: basics
    title: Basics
    fields:
      - id: name
        type: text
        label: Name
        required: true
`

// testConfig creates a minimal config for testing with an available port.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	httpListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find available HTTP port: %v", err)
	}
	httpAddr := httpListener.Addr().String()
	httpListener.Close()

	return &config.Config{
		Server: config.ServerConfig{
			HTTPAddr: httpAddr,
		},
		Database: config.DatabaseConfig{
			Path: ":memory:",
		},
		Sessions: config.SessionsConfig{
			IdleTimeout: 30 * time.Minute,
			CookieName:  config.DefaultCookieName,
		},
		I18n: config.I18nConfig{
			DefaultLanguage: config.DefaultLanguage,
		},
		Metrics: config.MetricsConfig{
			Enabled: true,
			Path:    config.DefaultMetricsPath,
		},
	}
}

// testLogger creates a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// workflowDir writes the given files into a temp dir.
func workflowDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	return dir
}

func TestGatewayNew(t *testing.T) {
	cfg := testConfig(t)

	gw, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer gw.Shutdown(context.Background())

	if gw.config != cfg {
		t.Error("gateway config mismatch")
	}
	if gw.hub == nil {
		t.Error("hub should not be nil")
	}
	if gw.store == nil {
		t.Error("store should not be nil")
	}
	if gw.metrics == nil {
		t.Error("metrics should not be nil when enabled")
	}
	if gw.ui == nil {
		t.Error("ui should not be nil")
	}
}

func TestGatewayNew_MetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false

	gw, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer gw.Shutdown(context.Background())

	if gw.metrics != nil {
		t.Error("metrics should be nil when disabled")
	}

	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for /metrics, got %d", rec.Code)
	}
}

func TestGatewayNew_SeedsWorkflows(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workflows.Dir = workflowDir(t, map[string]string{
		"brief.yaml": briefYAML,
		"notes.txt":  "ignored",
	})

	gw, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer gw.Shutdown(context.Background())

	def, err := gw.store.GetDefinition(context.Background(), "brand-brief")
	if err != nil {
		t.Fatalf("seeded workflow missing: %v", err)
	}
	if len(def.Steps) != 1 {
		t.Errorf("expected 1 step, got %d", len(def.Steps))
	}
}

func TestGatewayNew_BadWorkflowDir(t *testing.T) {
	tests := []struct {
		name string
		dir  string
	}{
		{"missing dir", filepath.Join(t.TempDir(), "nope")},
		{"invalid definition", workflowDir(t, map[string]string{"bad.yaml": "id: bad\ntitle: Bad\nsteps: []\n"})},
		{"duplicate ids", workflowDir(t, map[string]string{"a.yaml": briefYAML, "b.yaml": briefYAML})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Workflows.Dir = tt.dir

			gw, err := New(cfg, testLogger())
			if err == nil {
				gw.Shutdown(context.Background())
				t.Fatal("expected New() to fail")
			}
			if !strings.Contains(err.Error(), "seeding workflows") {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestGatewayNew_DBPathOverride(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", "wizard.db")
	t.Setenv("COVEN_WIZARD_DB_PATH", dbPath)

	cfg := testConfig(t)
	cfg.Database.Path = "/nonexistent/should/not/be/used.db"

	gw, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer gw.Shutdown(context.Background())

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("expected database at %s: %v", dbPath, err)
	}
}

func TestSessionSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sessions.Secret = strings.Repeat("s", 32)

	secret, err := sessionSecret(cfg, testLogger())
	if err != nil {
		t.Fatalf("sessionSecret() failed: %v", err)
	}
	if string(secret) != cfg.Sessions.Secret {
		t.Error("configured secret should be used as-is")
	}

	cfg.Sessions.Secret = ""
	a, err := sessionSecret(cfg, testLogger())
	if err != nil {
		t.Fatalf("sessionSecret() failed: %v", err)
	}
	b, _ := sessionSecret(cfg, testLogger())
	if len(a) != 32 {
		t.Errorf("expected 32 random bytes, got %d", len(a))
	}
	if string(a) == string(b) {
		t.Error("random secrets should differ")
	}
}

func TestGatewayRunAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workflows.Dir = workflowDir(t, map[string]string{"brief.yaml": briefYAML})

	gw, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- gw.Run(ctx)
	}()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	base := "http://" + cfg.Server.HTTPAddr
	for _, path := range []string{"/health", "/health/ready", "/workflows", "/metrics"} {
		resp, err := http.Get(base + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, resp.StatusCode)
		}
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if _, err := gw.store.ListDefinitions(context.Background()); err == nil {
		t.Error("store should be closed after shutdown")
	}
}

func TestGatewayRun_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := testConfig(t)
	cfg.Server.HTTPAddr = ln.Addr().String()

	gw, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer gw.Shutdown(context.Background())

	err = gw.Run(context.Background())
	if err == nil {
		t.Fatal("expected Run() to fail on a busy port")
	}
	if !strings.Contains(err.Error(), "listening on HTTP address") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHealthEndpoints(t *testing.T) {
	cfg := testConfig(t)

	gw, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer gw.Shutdown(context.Background())

	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("/health: got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/health/ready with no workflows: expected 503, got %d", rec.Code)
	}

	if _, err := SeedWorkflows(context.Background(), gw.store, workflowDir(t, map[string]string{"brief.yaml": briefYAML}), testLogger()); err != nil {
		t.Fatalf("SeedWorkflows() failed: %v", err)
	}

	rec = httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/health/ready: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "1 workflows") {
		t.Errorf("unexpected ready body: %q", rec.Body.String())
	}
}

func TestStaticAssets(t *testing.T) {
	cfg := testConfig(t)

	gw, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer gw.Shutdown(context.Background())

	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/wizard.css", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/css") {
		t.Errorf("unexpected Content-Type: %q", ct)
	}
}

func TestSeedWorkflows_EmptyDir(t *testing.T) {
	n, err := SeedWorkflows(context.Background(), store.NewMockStore(), "", testLogger())
	if err != nil || n != 0 {
		t.Errorf("SeedWorkflows(\"\") = %d, %v; want 0, nil", n, err)
	}
}

func TestAppendCloseError(t *testing.T) {
	var errs []error
	errs = appendCloseError(errs, "first", nil)
	if len(errs) != 0 {
		t.Fatalf("nil error should not be appended")
	}

	boom := errors.New("boom")
	errs = appendCloseError(errs, "second", boom)
	if len(errs) != 1 || !errors.Is(errs[0], boom) {
		t.Fatalf("expected wrapped boom, got %v", errs)
	}
	if errs[0].Error() != "second: boom" {
		t.Errorf("unexpected message: %q", errs[0].Error())
	}
}
