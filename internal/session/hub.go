// ABOUTME: Hub of mounted chat views, each owning one workflow engine
// ABOUTME: Serializes engine access and closes sessions left idle

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-wizard/internal/conversation"
	"github.com/2389/coven-wizard/internal/engine"
	"github.com/2389/coven-wizard/internal/i18n"
	"github.com/2389/coven-wizard/internal/metrics"
	"github.com/2389/coven-wizard/internal/workflow"
)

// Session errors
var (
	ErrNotFound  = errors.New("session not found")
	ErrClosed    = errors.New("session closed")
	ErrHubClosed = errors.New("session hub is shut down")
)

// NonceForgetter drops the replay nonces claimed by a session.
type NonceForgetter interface {
	Forget(sessionID string) int
}

// Config controls engine pacing and session lifetime. Nonces, when set, is
// told about every session the hub tears down.
type Config struct {
	IdleTimeout   time.Duration
	SweepInterval time.Duration
	Delays        engine.Delays
	Override      engine.Override
	Nonces        NonceForgetter
}

// DefaultConfig returns the standard session settings.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:   30 * time.Minute,
		SweepInterval: time.Minute,
		Delays:        engine.DefaultDelays(),
	}
}

// Session is one mounted chat view.
type Session struct {
	ID         string
	WorkflowID string
	CreatedAt  time.Time

	mu       sync.Mutex
	eng      *engine.Engine
	sched    *engine.TimerScheduler
	lastUsed time.Time
	closed   bool
	now      func() time.Time
}

// Do runs fn with exclusive access to the session's engine. Delayed engine
// transitions take the same lock.
func (s *Session) Do(fn func(e *engine.Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.lastUsed = s.now()
	return fn(s.eng)
}

// LastUsed returns when the session was last accessed through Do.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// close detaches the engine and stops pending timers.
func (s *Session) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.closed = true
	s.eng.Detach()
	s.sched.Stop()
	return true
}

// Hub indexes mounted sessions.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool

	cfg         Config
	broadcaster *conversation.EventBroadcaster
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
	cancel      context.CancelFunc
}

// NewHub creates a hub and starts its idle sweep. metrics may be nil.
func NewHub(cfg Config, b *conversation.EventBroadcaster, m *metrics.Metrics, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		sessions:    make(map[string]*Session),
		cfg:         cfg,
		broadcaster: b,
		metrics:     m,
		logger:      logger.With("component", "session"),
		now:         time.Now,
		cancel:      cancel,
	}
	go h.sweepLoop(ctx)
	return h
}

// Open mounts a new chat view for def and starts its workflow.
func (h *Hub) Open(ctx context.Context, def *workflow.Definition, ictx i18n.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if def == nil {
		return nil, fmt.Errorf("%w: nil definition", workflow.ErrInvalidDefinition)
	}

	now := h.now()
	s := &Session{
		ID:         uuid.New().String(),
		WorkflowID: def.ID,
		CreatedAt:  now,
		lastUsed:   now,
		now:        h.now,
	}
	s.sched = engine.NewTimerScheduler(&s.mu)

	opts := []engine.Option{
		engine.WithScheduler(s.sched),
		engine.WithDelays(h.cfg.Delays),
		engine.WithOverride(h.cfg.Override),
		engine.WithContext(ictx),
		engine.WithLogger(h.logger.With("session_id", s.ID)),
	}
	if h.broadcaster != nil {
		opts = append(opts, engine.WithListener(conversation.NewListener(h.broadcaster, s.ID)))
	}
	if h.metrics != nil {
		opts = append(opts, engine.WithListener(h.metrics.Listener(def.ID)))
	}

	eng, err := engine.New(def, opts...)
	if err != nil {
		return nil, err
	}
	s.eng = eng

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	h.sessions[s.ID] = s
	h.mu.Unlock()

	if err := s.Do(func(e *engine.Engine) error { return e.Start() }); err != nil {
		h.Close(s.ID)
		return nil, err
	}

	if h.metrics != nil {
		h.metrics.SessionOpened()
	}
	h.logger.Info("session opened", "session_id", s.ID, "workflow_id", def.ID,
		"language", ictx.Language.String())
	return s, nil
}

// Get returns a mounted session.
func (h *Hub) Get(id string) (*Session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s, ok := h.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Close unmounts a session.
func (h *Hub) Close(id string) error {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	h.teardown(s, "closed")
	return nil
}

// Len returns the number of mounted sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Shutdown closes every session and stops the sweep.
func (h *Hub) Shutdown() {
	h.cancel()

	h.mu.Lock()
	h.closed = true
	sessions := h.sessions
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()

	for _, s := range sessions {
		h.teardown(s, "shutdown")
	}
}

func (h *Hub) teardown(s *Session, reason string) {
	if !s.close() {
		return
	}
	if h.broadcaster != nil {
		h.broadcaster.CloseSession(s.ID)
	}
	forgotten := 0
	if h.cfg.Nonces != nil {
		forgotten = h.cfg.Nonces.Forget(s.ID)
	}
	if h.metrics != nil {
		h.metrics.SessionClosed()
	}
	h.logger.Info("session "+reason, "session_id", s.ID, "workflow_id", s.WorkflowID, "nonces", forgotten)
}

func (h *Hub) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweepIdle()
		}
	}
}

// sweepIdle closes sessions unused for longer than the idle timeout.
func (h *Hub) sweepIdle() int {
	if h.cfg.IdleTimeout <= 0 {
		return 0
	}
	now := h.now()

	h.mu.Lock()
	var stale []*Session
	for id, s := range h.sessions {
		if now.Sub(s.LastUsed()) > h.cfg.IdleTimeout {
			stale = append(stale, s)
			delete(h.sessions, id)
		}
	}
	h.mu.Unlock()

	for _, s := range stale {
		h.teardown(s, "expired")
	}
	return len(stale)
}
