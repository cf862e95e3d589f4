// ABOUTME: Core workflow types: Definition, Step, Field and the answer map
// ABOUTME: Definitions come from the step supplier and are immutable once loaded

package workflow

import "strings"

// FieldType is the input kind of a Field.
type FieldType string

// Field types understood by the form renderers.
const (
	FieldText     FieldType = "text"
	FieldURL      FieldType = "url"
	FieldTextarea FieldType = "textarea"
	FieldSelect   FieldType = "select"
)

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldURL, FieldTextarea, FieldSelect:
		return true
	}
	return false
}

// Field is a single typed input within a step.
type Field struct {
	ID          string    `json:"id" yaml:"id" toml:"id"`
	Type        FieldType `json:"type" yaml:"type" toml:"type"`
	Label       string    `json:"label" yaml:"label" toml:"label"`
	Placeholder string    `json:"placeholder,omitempty" yaml:"placeholder,omitempty" toml:"placeholder,omitempty"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty" toml:"required,omitempty"`
	Options     []string  `json:"options,omitempty" yaml:"options,omitempty" toml:"options,omitempty"`
}

// DisplayLabel returns the label, falling back to the field id.
func (f Field) DisplayLabel() string {
	if strings.TrimSpace(f.Label) != "" {
		return f.Label
	}
	return f.ID
}

// Step is one unit of information-gathering in the wizard.
type Step struct {
	ID          string  `json:"id" yaml:"id" toml:"id"`
	Title       string  `json:"title" yaml:"title" toml:"title"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Fields      []Field `json:"fields" yaml:"fields" toml:"fields"`
}

// Field looks up a field by id.
func (s Step) Field(id string) (Field, bool) {
	for _, f := range s.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// Clone returns a deep copy of the step.
func (s Step) Clone() Step {
	out := s
	out.Fields = make([]Field, len(s.Fields))
	for i, f := range s.Fields {
		f.Options = append([]string(nil), f.Options...)
		out.Fields[i] = f
	}
	return out
}

// Definition is a complete workflow as supplied to the engine.
type Definition struct {
	ID          string `json:"id" yaml:"id" toml:"id"`
	Title       string `json:"title" yaml:"title" toml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Welcome     string `json:"welcome,omitempty" yaml:"welcome,omitempty" toml:"welcome,omitempty"`
	Steps       []Step `json:"steps" yaml:"steps" toml:"steps"`
}

// Step looks up a step by id.
func (d *Definition) Step(id string) (Step, bool) {
	for _, s := range d.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}

// Clone returns a deep copy of the definition.
func (d *Definition) Clone() *Definition {
	out := *d
	out.Steps = make([]Step, len(d.Steps))
	for i, s := range d.Steps {
		out.Steps[i] = s.Clone()
	}
	return &out
}

// Answers maps step id -> field id -> submitted value.
type Answers map[string]map[string]string

// Clone returns a deep copy of the answer map.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for stepID, values := range a {
		inner := make(map[string]string, len(values))
		for k, v := range values {
			inner[k] = v
		}
		out[stepID] = inner
	}
	return out
}

// Artifact is a downloadable deliverable produced from the answers.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}
