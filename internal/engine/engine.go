// ABOUTME: Workflow engine state machine: step cursor, answers, completion and chat
// ABOUTME: Sequences steps, selects display modes and appends to the conversation log

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-wizard/internal/i18n"
	"github.com/2389/coven-wizard/internal/workflow"
)

// Engine errors.
var (
	ErrAlreadyStarted = errors.New("workflow already started")
	ErrNotStarted     = errors.New("workflow not started")
	ErrNoActiveForm   = errors.New("no form is active")
	ErrFormActive     = errors.New("a form is already active")
	ErrStepMismatch   = errors.New("step is not the active step")
	ErrComplete       = errors.New("workflow is already complete")
	ErrNotComplete    = errors.New("workflow is not complete")
	ErrInputBlocked   = errors.New("chat input is unavailable while an overlay form is open")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrDetached       = errors.New("engine is detached")
)

// Default cosmetic delays.
const (
	DefaultStartDelay   = 2 * time.Second
	DefaultAdvanceDelay = 1500 * time.Millisecond
	DefaultReplyDelay   = time.Second
)

// Delays holds the pacing of delayed transitions.
type Delays struct {
	Start   time.Duration // mount -> first prompt
	Advance time.Duration // submission -> next prompt
	Reply   time.Duration // user chat -> bot reply
}

// DefaultDelays returns the standard pacing.
func DefaultDelays() Delays {
	return Delays{
		Start:   DefaultStartDelay,
		Advance: DefaultAdvanceDelay,
		Reply:   DefaultReplyDelay,
	}
}

// Producer synthesizes the final deliverable from the collected answers.
type Producer interface {
	Produce(ctx context.Context, def *workflow.Definition, answers workflow.Answers) (*workflow.Artifact, error)
}

// Snapshot is a copy of the engine state for rendering and inspection.
type Snapshot struct {
	WorkflowID      string       `json:"workflow_id"`
	Cursor          int          `json:"cursor"`
	StepCount       int          `json:"step_count"`
	ActiveStepID    string       `json:"active_step_id,omitempty"`
	PromptMessageID string       `json:"prompt_message_id,omitempty"`
	InlineAnchor    string       `json:"inline_anchor,omitempty"`
	Display         DisplayState `json:"display"`
	Override        Override     `json:"override"`
	Completed       []string     `json:"completed"`
	Complete        bool         `json:"complete"`
	Started         bool         `json:"started"`
	Detached        bool         `json:"detached"`
	// Pending counts scheduled advances that have not fired yet.
	Pending int `json:"pending"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithScheduler sets the scheduler for delayed transitions.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) { e.sched = s }
}

// WithClock sets the time source for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator sets the message id generator.
func WithIDGenerator(next func() string) Option {
	return func(e *Engine) { e.newID = next }
}

// WithDelays sets the cosmetic delays.
func WithDelays(d Delays) Option {
	return func(e *Engine) { e.delays = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithContext injects the presentation context (language, user, theme).
func WithContext(c i18n.Context) Option {
	return func(e *Engine) { e.ctx = c }
}

// WithListener registers an observer of engine activity.
func WithListener(l Listener) Option {
	return func(e *Engine) {
		if l != nil {
			e.listeners = append(e.listeners, l)
		}
	}
}

// WithOverride sets the initial display mode override.
func WithOverride(o Override) Option {
	return func(e *Engine) { e.override = o }
}

// Engine drives one workflow view. See the package documentation.
type Engine struct {
	def       *workflow.Definition
	log       *Log
	answers   workflow.Answers
	completed map[string]struct{}

	cursor   int
	activeID string
	promptID string
	display  DisplayState
	override Override

	started  bool
	detached bool
	pending  int

	sched     Scheduler
	delays    Delays
	now       func() time.Time
	newID     func() string
	ctx       i18n.Context
	phrases   *i18n.Phrases
	listeners Listeners
	logger    *slog.Logger
}

// New creates an engine for def in the idle state with the welcome message
// logged. The definition is copied.
func New(def *workflow.Definition, opts ...Option) (*Engine, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: nil definition", workflow.ErrInvalidDefinition)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		def:       def.Clone(),
		log:       NewLog(),
		answers:   make(workflow.Answers),
		completed: make(map[string]struct{}),
		display:   DisplayNormal,
		delays:    DefaultDelays(),
		now:       time.Now,
		newID:     uuid.NewString,
		ctx:       i18n.DefaultContext(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if !e.override.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOverride, e.override)
	}
	if e.sched == nil {
		e.sched = NewTimerScheduler(nil)
	}
	e.phrases = i18n.For(e.ctx.Language)
	e.logger = e.logger.With("component", "engine", "workflow_id", e.def.ID)

	welcome := e.def.Welcome
	if strings.TrimSpace(welcome) == "" {
		welcome = e.phrases.Welcome(e.def.Title)
	}
	e.append(SenderSystem, KindPlain, welcome, "")

	return e, nil
}

// Start schedules the first step's prompt after the start delay.
func (e *Engine) Start() error {
	if e.detached {
		return ErrDetached
	}
	if e.started {
		return ErrAlreadyStarted
	}
	e.started = true
	e.scheduleAdvance(0, e.delays.Start)
	e.notifyState()
	return nil
}

// Resume prompts the step at the cursor again, typically after a cancel.
func (e *Engine) Resume() error {
	switch {
	case e.detached:
		return ErrDetached
	case !e.started:
		return ErrNotStarted
	case e.display.Awaiting():
		return ErrFormActive
	case e.IsComplete():
		return ErrComplete
	}
	e.advance(e.cursor)
	e.notifyState()
	return nil
}

// Submit validates and records the values for the active step. A
// *workflow.MissingFieldsError or *workflow.InvalidOptionError leaves the
// engine untouched.
func (e *Engine) Submit(stepID string, values map[string]string) error {
	if e.detached {
		return ErrDetached
	}
	if !e.display.Awaiting() {
		return ErrNoActiveForm
	}
	if stepID != e.activeID {
		return fmt.Errorf("%w: got %q, active %q", ErrStepMismatch, stepID, e.activeID)
	}

	step := e.def.Steps[e.cursor]
	if err := workflow.CheckValues(step, values); err != nil {
		var missing *workflow.MissingFieldsError
		var invalid *workflow.InvalidOptionError
		switch {
		case errors.As(err, &missing):
			e.listeners.ValidationFailed(stepID, missing.Labels())
			e.logger.Debug("submission rejected", "step_id", stepID, "missing", missing.Labels())
		case errors.As(err, &invalid):
			e.listeners.ValidationFailed(stepID, invalid.Labels())
			e.logger.Debug("submission rejected", "step_id", stepID, "invalid", invalid.Labels())
		}
		return err
	}

	stored := make(map[string]string, len(step.Fields))
	for _, f := range step.Fields {
		if v, ok := values[f.ID]; ok {
			stored[f.ID] = v
		}
	}
	e.answers[stepID] = stored
	e.completed[stepID] = struct{}{}
	e.cursor++
	e.clearActive()

	e.append(SenderSystem, KindCompletion, e.phrases.Completion(step.Title), stepID)
	e.listeners.StepSubmitted(stepID)
	e.logger.Info("step submitted", "step_id", stepID, "completed", len(e.completed), "total", len(e.def.Steps))

	if e.cursor < len(e.def.Steps) {
		e.scheduleAdvance(e.cursor, e.delays.Advance)
	} else {
		e.append(SenderSystem, KindDeliverableReady, e.phrases.Deliverable(), "")
		e.listeners.WorkflowCompleted()
		e.logger.Info("workflow complete")
	}
	e.notifyState()
	return nil
}

// Cancel closes the active form without recording anything.
func (e *Engine) Cancel() error {
	if e.detached {
		return ErrDetached
	}
	if !e.display.Awaiting() {
		return ErrNoActiveForm
	}

	step := e.def.Steps[e.cursor]
	e.clearActive()
	e.append(SenderSystem, KindPlain, e.phrases.Cancelled(step.Title), "")
	e.logger.Debug("form cancelled", "step_id", step.ID)
	e.notifyState()
	return nil
}

// Expand moves an inline form with more than two fields into the panel.
// It reports whether anything changed.
func (e *Engine) Expand() bool {
	if e.detached || e.display != DisplayInline {
		return false
	}
	if len(e.def.Steps[e.cursor].Fields) <= MaxInlineFields {
		return false
	}
	e.display = DisplayPanel
	e.notifyState()
	return true
}

// SetOverride changes the display override. It applies from the next
// prompted step; a form already on screen keeps its presentation.
func (e *Engine) SetOverride(o Override) error {
	if !o.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidOverride, o)
	}
	if e.detached {
		return ErrDetached
	}
	e.override = o
	e.notifyState()
	return nil
}

// Chat logs a free-text user message and schedules a contextual reply. It
// never affects the cursor, answers or completed steps.
func (e *Engine) Chat(text string) error {
	if e.detached {
		return ErrDetached
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if e.display == DisplayOverlay {
		return ErrInputBlocked
	}

	e.append(SenderUser, KindPlain, text, "")
	e.sched.After(e.delays.Reply, func() {
		if e.detached {
			return
		}
		reply := e.phrases.ReplyPending()
		if e.IsComplete() {
			reply = e.phrases.ReplyComplete()
		}
		e.append(SenderSystem, KindPlain, reply, "")
	})
	return nil
}

// Deliver hands the full answer map to p once the workflow is complete.
func (e *Engine) Deliver(ctx context.Context, p Producer) (*workflow.Artifact, error) {
	if !e.IsComplete() {
		return nil, ErrNotComplete
	}
	artifact, err := p.Produce(ctx, e.def.Clone(), e.answers.Clone())
	if err != nil {
		return nil, fmt.Errorf("producing deliverable: %w", err)
	}
	return artifact, nil
}

// Detach tears the engine down. Pending delayed transitions become no-ops
// and further mutations return ErrDetached.
func (e *Engine) Detach() {
	if e.detached {
		return
	}
	e.detached = true
	e.logger.Debug("engine detached")
}

// IsComplete reports whether every step has been submitted.
func (e *Engine) IsComplete() bool {
	return len(e.completed) == len(e.def.Steps)
}

// Definition returns a copy of the workflow definition.
func (e *Engine) Definition() *workflow.Definition {
	return e.def.Clone()
}

// Context returns the injected presentation context.
func (e *Engine) Context() i18n.Context { return e.ctx }

// Phrases returns the phrase set for the engine's language.
func (e *Engine) Phrases() *i18n.Phrases { return e.phrases }

// ActiveStep returns the step whose form is currently presented.
func (e *Engine) ActiveStep() (workflow.Step, bool) {
	if !e.display.Awaiting() {
		return workflow.Step{}, false
	}
	return e.def.Steps[e.cursor].Clone(), true
}

// Messages returns a copy of the conversation log.
func (e *Engine) Messages() []Message {
	return e.log.Messages()
}

// MessagesSince returns log entries from index i onwards.
func (e *Engine) MessagesSince(i int) []Message {
	return e.log.Since(i)
}

// Answers returns a copy of the answer map.
func (e *Engine) Answers() workflow.Answers {
	return e.answers.Clone()
}

// Completed returns the submitted step ids in definition order.
func (e *Engine) Completed() []string {
	out := make([]string, 0, len(e.completed))
	for _, s := range e.def.Steps {
		if _, ok := e.completed[s.ID]; ok {
			out = append(out, s.ID)
		}
	}
	return out
}

// State returns a snapshot of the engine state.
func (e *Engine) State() Snapshot {
	snap := Snapshot{
		WorkflowID:      e.def.ID,
		Cursor:          e.cursor,
		StepCount:       len(e.def.Steps),
		ActiveStepID:    e.activeID,
		PromptMessageID: e.promptID,
		Display:         e.display,
		Override:        e.override,
		Completed:       e.Completed(),
		Complete:        e.IsComplete(),
		Started:         e.started,
		Detached:        e.detached,
		Pending:         e.pending,
	}
	if e.display == DisplayInline {
		snap.InlineAnchor = e.promptID
	}
	return snap
}

// scheduleAdvance prompts steps[index] after d, unless the engine has moved
// on or been detached by then.
func (e *Engine) scheduleAdvance(index int, d time.Duration) {
	e.pending++
	e.sched.After(d, func() {
		e.pending--
		if e.detached {
			e.logger.Debug("dropping advance after detach", "index", index)
			return
		}
		if e.display.Awaiting() || e.cursor != index || index >= len(e.def.Steps) {
			e.logger.Debug("dropping stale advance", "index", index, "cursor", e.cursor)
			return
		}
		e.advance(index)
		e.notifyState()
	})
}

// advance presents steps[index]'s form.
func (e *Engine) advance(index int) {
	step := e.def.Steps[index]
	e.display = SelectMode(step, e.override)
	e.activeID = step.ID

	msg := e.append(SenderSystem, KindFormPrompt, e.phrases.Prompt(step.Title), step.ID)
	e.promptID = msg.ID

	mode, _ := e.display.Mode()
	e.listeners.StepPrompted(step.Clone(), mode)
	e.logger.Debug("step prompted", "step_id", step.ID, "mode", mode.String())
}

func (e *Engine) clearActive() {
	e.activeID = ""
	e.promptID = ""
	e.display = DisplayNormal
}

// append logs a new message and notifies listeners.
func (e *Engine) append(sender Sender, kind Kind, content, stepID string) Message {
	msg := Message{
		ID:        e.newID(),
		Sender:    sender,
		Author:    e.author(sender),
		Content:   content,
		Timestamp: e.now(),
		Kind:      kind,
		StepID:    stepID,
	}
	if err := e.log.Append(msg); err != nil {
		e.logger.Error("message id rejected, using uuid", "error", err)
		msg.ID = uuid.NewString()
		_ = e.log.Append(msg)
	}
	e.listeners.MessageAppended(msg)
	return msg
}

func (e *Engine) author(sender Sender) string {
	if sender == SenderUser {
		return e.ctx.User
	}
	return e.def.Title
}

func (e *Engine) notifyState() {
	e.listeners.StateChanged(e.State())
}
