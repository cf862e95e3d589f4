// ABOUTME: Form renderers for the three presentation variants of a step form
// ABOUTME: Holds the in-progress value buffer and validates before handing off

// Package form renders a workflow step's form in one of three presentations:
// inline under the prompt message, as a panel pinned below the conversation,
// or as a modal overlay. Every variant keeps its own value buffer, validates
// it before submitting and reports back through Callbacks.
package form

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/2389/coven-wizard/internal/engine"
	"github.com/2389/coven-wizard/internal/i18n"
	"github.com/2389/coven-wizard/internal/workflow"
)

// Form errors.
var (
	ErrNoForm        = errors.New("no form is displayed")
	ErrNotExpandable = errors.New("form cannot be expanded")
	ErrClosed        = errors.New("form is closed")
	ErrUnknownField  = errors.New("unknown field")
)

// Callbacks connect a renderer back to its owner.
type Callbacks struct {
	OnSubmit func(values map[string]string) error
	OnCancel func() error
	OnExpand func() error
}

// View carries the request-scoped values a rendered form needs. A nil
// Phrases renders in the fallback language.
type View struct {
	ActionBase string // e.g. /chat/{sid}
	CSRFToken  string
	Nonce      string
	Phrases    *i18n.Phrases
}

// Renderer is a single presented form.
type Renderer interface {
	Mode() engine.Mode
	Step() workflow.Step
	Set(fieldID, value string) error
	Value(fieldID string) string
	Values() map[string]string
	Submit() error
	Cancel() error
	Expandable() bool
	Expand() error
	VisibleFields() []workflow.Field
	HiddenCount() int
	Errors() []string
	InvalidOptions() []string
	Render(w io.Writer, v View) error
}

// New builds the renderer for a display state. DisplayNormal has no form.
func New(state engine.DisplayState, step workflow.Step, cb Callbacks) (Renderer, error) {
	b := newBase(step, cb)
	switch state {
	case engine.DisplayInline:
		return &Inline{base: b}, nil
	case engine.DisplayPanel:
		return &Panel{base: b}, nil
	case engine.DisplayOverlay:
		return &Overlay{base: b}, nil
	case engine.DisplayNormal:
		return nil, ErrNoForm
	}
	return nil, fmt.Errorf("%w: display state %d", ErrNoForm, state)
}

// base is the state shared by every variant.
type base struct {
	step    workflow.Step
	values  map[string]string
	missing []workflow.Field
	invalid []workflow.Field
	cb      Callbacks
	closed  bool
}

func newBase(step workflow.Step, cb Callbacks) *base {
	values := make(map[string]string, len(step.Fields))
	for _, f := range step.Fields {
		values[f.ID] = ""
	}
	return &base{step: step.Clone(), values: values, cb: cb}
}

func (b *base) Step() workflow.Step { return b.step.Clone() }

// Set updates one field in the buffer.
func (b *base) Set(fieldID, value string) error {
	if b.closed {
		return ErrClosed
	}
	if _, ok := b.step.Field(fieldID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, fieldID)
	}
	b.values[fieldID] = value
	return nil
}

func (b *base) Value(fieldID string) string { return b.values[fieldID] }

func (b *base) Values() map[string]string {
	out := make(map[string]string, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// Submit validates the buffer and passes it to OnSubmit. Missing fields and
// select values outside their options are remembered for rendering and
// OnSubmit is not called.
func (b *base) Submit() error {
	if b.closed {
		return ErrClosed
	}
	b.missing, b.invalid = nil, nil
	err := workflow.CheckValues(b.step, b.values)
	var missing *workflow.MissingFieldsError
	var invalid *workflow.InvalidOptionError
	switch {
	case errors.As(err, &missing):
		b.missing = missing.Fields
		return err
	case errors.As(err, &invalid):
		b.invalid = invalid.Fields
		return err
	}
	if b.cb.OnSubmit != nil {
		if err := b.cb.OnSubmit(b.Values()); err != nil {
			return err
		}
	}
	b.closed = true
	return nil
}

func (b *base) Cancel() error {
	if b.closed {
		return ErrClosed
	}
	if b.cb.OnCancel != nil {
		if err := b.cb.OnCancel(); err != nil {
			return err
		}
	}
	b.closed = true
	return nil
}

// Errors returns the labels of the fields missing from the last submit.
func (b *base) Errors() []string { return labels(b.missing) }

// InvalidOptions returns the labels of the select fields whose value was not
// among their options on the last submit.
func (b *base) InvalidOptions() []string { return labels(b.invalid) }

func (b *base) isMissing(fieldID string) bool { return containsField(b.missing, fieldID) }
func (b *base) isInvalid(fieldID string) bool { return containsField(b.invalid, fieldID) }

func labels(fields []workflow.Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.DisplayLabel()
	}
	return out
}

func containsField(fields []workflow.Field, fieldID string) bool {
	for _, f := range fields {
		if f.ID == fieldID {
			return true
		}
	}
	return false
}

// Inline shows at most engine.MaxInlineFields fields under the prompt.
// Hidden fields are still validated on submit.
type Inline struct{ *base }

func (*Inline) Mode() engine.Mode { return engine.ModeInline }

func (f *Inline) Expandable() bool { return len(f.step.Fields) > engine.MaxInlineFields }

// Expand asks the owner to move this form into the panel.
func (f *Inline) Expand() error {
	if f.closed {
		return ErrClosed
	}
	if !f.Expandable() {
		return ErrNotExpandable
	}
	if f.cb.OnExpand != nil {
		return f.cb.OnExpand()
	}
	return nil
}

func (f *Inline) VisibleFields() []workflow.Field {
	fields := f.step.Fields
	if len(fields) > engine.MaxInlineFields {
		fields = fields[:engine.MaxInlineFields]
	}
	return append([]workflow.Field(nil), fields...)
}

func (f *Inline) HiddenCount() int {
	if n := len(f.step.Fields) - engine.MaxInlineFields; n > 0 {
		return n
	}
	return 0
}

func (f *Inline) Render(w io.Writer, v View) error {
	return render(w, "inline", f, v)
}

// Panel shows every field in a block pinned below the conversation.
type Panel struct{ *base }

func (*Panel) Mode() engine.Mode { return engine.ModePanel }
func (*Panel) Expandable() bool  { return false }
func (*Panel) Expand() error     { return ErrNotExpandable }
func (*Panel) HiddenCount() int  { return 0 }

func (f *Panel) VisibleFields() []workflow.Field {
	return append([]workflow.Field(nil), f.step.Fields...)
}

func (f *Panel) Render(w io.Writer, v View) error {
	return render(w, "panel", f, v)
}

// Overlay shows every field in a modal that blocks the chat input.
type Overlay struct{ *base }

func (*Overlay) Mode() engine.Mode { return engine.ModeOverlay }
func (*Overlay) Expandable() bool  { return false }
func (*Overlay) Expand() error     { return ErrNotExpandable }
func (*Overlay) HiddenCount() int  { return 0 }

func (f *Overlay) VisibleFields() []workflow.Field {
	return append([]workflow.Field(nil), f.step.Fields...)
}

func (f *Overlay) Render(w io.Writer, v View) error {
	return render(w, "overlay", f, v)
}

// Describe returns a short human-readable summary, used in logs.
func Describe(r Renderer) string {
	step := r.Step()
	return fmt.Sprintf("%s form for %s (%d fields: %s)",
		r.Mode(), step.ID, len(step.Fields), strings.Join(fieldIDs(step.Fields), ","))
}

func fieldIDs(fields []workflow.Field) []string {
	ids := make([]string, len(fields))
	for i, f := range fields {
		ids[i] = f.ID
	}
	return ids
}
