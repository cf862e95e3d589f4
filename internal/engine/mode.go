// ABOUTME: Display-mode selector: picks inline, panel or overlay for a step
// ABOUTME: Closed variants for Mode, Override and DisplayState with text encoding

package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/2389/coven-wizard/internal/workflow"
)

// ErrInvalidOverride is returned for an unknown override name or value.
var ErrInvalidOverride = errors.New("invalid display mode override")

// Field-count thresholds for automatic classification.
const (
	MaxInlineFields = 2
	MaxPanelFields  = 5
)

// Mode is a form presentation strategy.
type Mode uint8

const (
	ModeInline Mode = iota + 1
	ModePanel
	ModeOverlay
)

func (m Mode) String() string {
	switch m {
	case ModeInline:
		return "inline"
	case ModePanel:
		return "panel"
	case ModeOverlay:
		return "overlay"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// Override is the user's global display preference.
type Override uint8

const (
	OverrideAuto Override = iota
	OverrideInline
	OverridePanel
	OverrideOverlay
)

// Valid reports whether o is a known override.
func (o Override) Valid() bool { return o <= OverrideOverlay }

func (o Override) String() string {
	switch o {
	case OverrideAuto:
		return "auto"
	case OverrideInline:
		return "inline"
	case OverridePanel:
		return "panel"
	case OverrideOverlay:
		return "overlay"
	}
	return fmt.Sprintf("Override(%d)", uint8(o))
}

// MarshalText implements encoding.TextMarshaler.
func (o Override) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// ParseOverride parses "auto", "inline", "panel" or "overlay".
// An empty string means auto.
func ParseOverride(s string) (Override, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return OverrideAuto, nil
	case "inline":
		return OverrideInline, nil
	case "panel":
		return OverridePanel, nil
	case "overlay":
		return OverrideOverlay, nil
	}
	return OverrideAuto, fmt.Errorf("%w: %q", ErrInvalidOverride, s)
}

// DisplayState is what the chat view is currently showing.
type DisplayState uint8

const (
	DisplayNormal DisplayState = iota
	DisplayInline
	DisplayPanel
	DisplayOverlay
)

func (d DisplayState) String() string {
	switch d {
	case DisplayNormal:
		return "normal"
	case DisplayInline:
		return "awaiting-inline-form"
	case DisplayPanel:
		return "awaiting-panel-form"
	case DisplayOverlay:
		return "awaiting-overlay-form"
	}
	return fmt.Sprintf("DisplayState(%d)", uint8(d))
}

// MarshalText implements encoding.TextMarshaler.
func (d DisplayState) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Awaiting reports whether a form is being presented.
func (d DisplayState) Awaiting() bool { return d != DisplayNormal }

// Mode returns the presentation mode of an awaiting state.
func (d DisplayState) Mode() (Mode, bool) {
	switch d {
	case DisplayInline:
		return ModeInline, true
	case DisplayPanel:
		return ModePanel, true
	case DisplayOverlay:
		return ModeOverlay, true
	}
	return 0, false
}

// awaiting maps a mode to its display state.
func awaiting(m Mode) DisplayState {
	switch m {
	case ModeInline:
		return DisplayInline
	case ModePanel:
		return DisplayPanel
	case ModeOverlay:
		return DisplayOverlay
	}
	return DisplayNormal
}

// SelectMode decides how a step's form is presented. A non-auto override is
// returned verbatim; otherwise the step is classified by field count.
func SelectMode(step workflow.Step, override Override) DisplayState {
	switch override {
	case OverrideInline:
		return DisplayInline
	case OverridePanel:
		return DisplayPanel
	case OverrideOverlay:
		return DisplayOverlay
	}

	n := len(step.Fields)
	switch {
	case n <= MaxInlineFields:
		return awaiting(ModeInline)
	case n <= MaxPanelFields:
		return awaiting(ModePanel)
	default:
		return awaiting(ModeOverlay)
	}
}
