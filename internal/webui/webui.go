// ABOUTME: Browser surface for running workflows in a chat view
// ABOUTME: Provides routing, CSRF protection, session cookies and error mapping

package webui

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/text/language"

	"github.com/2389/coven-wizard/internal/conversation"
	"github.com/2389/coven-wizard/internal/dedupe"
	"github.com/2389/coven-wizard/internal/engine"
	"github.com/2389/coven-wizard/internal/form"
	"github.com/2389/coven-wizard/internal/i18n"
	"github.com/2389/coven-wizard/internal/metrics"
	"github.com/2389/coven-wizard/internal/session"
	"github.com/2389/coven-wizard/internal/store"
	"github.com/2389/coven-wizard/internal/workflow"
)

const (
	// CSRFCookieName is the name of the CSRF token cookie
	CSRFCookieName = "coven_wizard_csrf"

	// DefaultCookieName is the session cookie name when Config leaves it empty
	DefaultCookieName = "coven_wizard_session"

	// heartbeatInterval keeps idle SSE connections open through proxies
	heartbeatInterval = 30 * time.Second
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const csrfContextKey contextKey = "csrf_token"

// Config holds web UI configuration
type Config struct {
	// CookieName names the cookie binding a browser to its chat view
	CookieName string

	// DefaultLanguage is used when the browser sends no Accept-Language
	DefaultLanguage language.Tag

	// TokenTTL bounds the lifetime of the session cookie
	TokenTTL time.Duration
}

// UI handles the workflow list and chat view routes
type UI struct {
	store       store.DefinitionStore
	hub         *session.Hub
	broadcaster *conversation.EventBroadcaster
	guard       *dedupe.Guard
	signer      *session.TokenSigner
	producer    engine.Producer
	metrics     *metrics.Metrics
	config      Config
	logger      *slog.Logger
}

// Deps collects the collaborators the web UI drives. Guard and Metrics may be nil.
type Deps struct {
	Store       store.DefinitionStore
	Hub         *session.Hub
	Broadcaster *conversation.EventBroadcaster
	Guard       *dedupe.Guard
	Signer      *session.TokenSigner
	Producer    engine.Producer
	Metrics     *metrics.Metrics
}

// New creates the web UI
func New(deps Deps, cfg Config, logger *slog.Logger) *UI {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.DefaultLanguage == language.Und {
		cfg.DefaultLanguage = i18n.Supported[0]
	}
	return &UI{
		store:       deps.Store,
		hub:         deps.Hub,
		broadcaster: deps.Broadcaster,
		guard:       deps.Guard,
		signer:      deps.Signer,
		producer:    deps.Producer,
		metrics:     deps.Metrics,
		config:      cfg,
		logger:      logger.With("component", "webui"),
	}
}

// RegisterRoutes registers all web UI routes on the given mux
func (u *UI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", u.handleIndex)
	mux.HandleFunc("GET /workflows", u.handleWorkflows)
	mux.HandleFunc("POST /workflows/{id}/start", u.requireCSRF(u.handleStart))

	mux.HandleFunc("GET /chat/{sid}", u.requireSession(u.handleChat))
	mux.HandleFunc("GET /chat/{sid}/state", u.requireSession(u.handleState))
	mux.HandleFunc("GET /chat/{sid}/stream", u.requireSession(u.handleStream))
	mux.HandleFunc("GET /chat/{sid}/deliverable", u.requireSession(u.handleDeliverable))
	mux.HandleFunc("GET /chat/{sid}/preview", u.requireSession(u.handlePreview))

	mux.HandleFunc("POST /chat/{sid}/submit", u.requireSession(u.requireCSRF(u.handleSubmit)))
	mux.HandleFunc("POST /chat/{sid}/cancel", u.requireSession(u.requireCSRF(u.handleCancel)))
	mux.HandleFunc("POST /chat/{sid}/expand", u.requireSession(u.requireCSRF(u.handleExpand)))
	mux.HandleFunc("POST /chat/{sid}/resume", u.requireSession(u.requireCSRF(u.handleResume)))
	mux.HandleFunc("POST /chat/{sid}/override", u.requireSession(u.requireCSRF(u.handleOverride)))
	mux.HandleFunc("POST /chat/{sid}/message", u.requireSession(u.requireCSRF(u.handleMessage)))
	mux.HandleFunc("POST /chat/{sid}/close", u.requireSession(u.requireCSRF(u.handleClose)))
}

// requireSession checks the signed cookie belongs to the chat view in the path
func (u *UI) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := r.PathValue("sid")

		cookie, err := r.Cookie(u.config.CookieName)
		if err != nil || cookie.Value == "" {
			http.Error(w, "Unknown conversation", http.StatusForbidden)
			return
		}
		bound, err := u.signer.Verify(cookie.Value)
		if err != nil || bound != sid {
			u.logger.Debug("rejected session cookie", "session_id", sid, "error", err)
			http.Error(w, "Unknown conversation", http.StatusForbidden)
			return
		}

		if _, err := u.hub.Get(sid); err != nil {
			u.writeError(w, err)
			return
		}
		next(w, r)
	}
}

// requireCSRF validates the double-submit token on state-changing requests
func (u *UI) requireCSRF(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		if !u.validateCSRF(r) {
			http.Error(w, "Invalid request", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// ensureCSRFToken generates a CSRF token if not present and adds it to context
func (u *UI) ensureCSRFToken(w http.ResponseWriter, r *http.Request) (*http.Request, string) {
	cookie, err := r.Cookie(CSRFCookieName)
	if err == nil && cookie.Value != "" {
		ctx := context.WithValue(r.Context(), csrfContextKey, cookie.Value)
		return r.WithContext(ctx), cookie.Value
	}

	token, err := generateSecureToken(32)
	if err != nil {
		u.logger.Error("failed to generate CSRF token", "error", err)
		token = "" // Will fail validation, but won't crash
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	ctx := context.WithValue(r.Context(), csrfContextKey, token)
	return r.WithContext(ctx), token
}

// getCSRFToken retrieves the CSRF token from the request context
func getCSRFToken(r *http.Request) string {
	token, _ := r.Context().Value(csrfContextKey).(string)
	return token
}

// validateCSRF checks the CSRF token from form against cookie
func (u *UI) validateCSRF(r *http.Request) bool {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}

	formToken := r.FormValue("csrf_token")
	if formToken == "" {
		// htmx sends the token as a header
		formToken = r.Header.Get("X-CSRF-Token")
	}

	return formToken != "" && formToken == cookie.Value
}

// setSessionCookie binds the browser to a freshly mounted chat view
func (u *UI) setSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) error {
	token, err := u.signer.Generate(sessionID, u.config.TokenTTL)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     u.config.CookieName,
		Value:    token,
		Path:     "/chat/" + sessionID,
		MaxAge:   int(u.config.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (u *UI) clearSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     u.config.CookieName,
		Value:    "",
		Path:     "/chat/" + sessionID,
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// languageFor picks the presentation language for a new chat view
func (u *UI) languageFor(r *http.Request) language.Tag {
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		return i18n.Match(accept)
	}
	return u.config.DefaultLanguage
}

// isHTMX reports whether the request came from htmx and wants a partial
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	var missing *workflow.MissingFieldsError
	var invalid *workflow.InvalidOptionError
	switch {
	case errors.As(err, &missing), errors.As(err, &invalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrClosed), errors.Is(err, engine.ErrDetached):
		return http.StatusGone
	case errors.Is(err, engine.ErrEmptyMessage), errors.Is(err, engine.ErrInvalidOverride),
		errors.Is(err, form.ErrUnknownField):
		return http.StatusBadRequest
	case errors.Is(err, dedupe.ErrReplayed),
		errors.Is(err, engine.ErrNoActiveForm), errors.Is(err, engine.ErrStepMismatch),
		errors.Is(err, engine.ErrFormActive), errors.Is(err, engine.ErrComplete),
		errors.Is(err, engine.ErrNotComplete), errors.Is(err, engine.ErrInputBlocked),
		errors.Is(err, engine.ErrNotStarted), errors.Is(err, engine.ErrAlreadyStarted),
		errors.Is(err, form.ErrNotExpandable), errors.Is(err, form.ErrNoForm),
		errors.Is(err, form.ErrClosed):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError answers with the mapped status and logs unexpected failures
func (u *UI) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		u.logger.Error("request failed", "error", err)
		http.Error(w, "An error occurred", status)
		return
	}
	http.Error(w, err.Error(), status)
}

// generateSecureToken generates a cryptographically secure random token
func generateSecureToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
