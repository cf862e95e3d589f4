// ABOUTME: Definition validation and the shared required-field check
// ABOUTME: MissingFieldsError and InvalidOptionError report rejected submissions

package workflow

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidDefinition wraps every structural problem found by Validate.
var ErrInvalidDefinition = errors.New("invalid workflow definition")

// Validate checks the definition and reports all problems joined together.
func (d *Definition) Validate() error {
	var errs []error

	if strings.TrimSpace(d.ID) == "" {
		errs = append(errs, errors.New("workflow id is required"))
	}
	if len(d.Steps) == 0 {
		errs = append(errs, errors.New("workflow must have at least one step"))
	}

	seenSteps := make(map[string]bool, len(d.Steps))
	for i, s := range d.Steps {
		if strings.TrimSpace(s.ID) == "" {
			errs = append(errs, fmt.Errorf("steps[%d]: id is required", i))
			continue
		}
		if seenSteps[s.ID] {
			errs = append(errs, fmt.Errorf("steps[%d]: duplicate step id %q", i, s.ID))
		}
		seenSteps[s.ID] = true
		errs = append(errs, validateFields(s)...)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidDefinition, errors.Join(errs...))
}

func validateFields(s Step) []error {
	var errs []error
	seen := make(map[string]bool, len(s.Fields))
	for i, f := range s.Fields {
		if strings.TrimSpace(f.ID) == "" {
			errs = append(errs, fmt.Errorf("step %q fields[%d]: id is required", s.ID, i))
			continue
		}
		if seen[f.ID] {
			errs = append(errs, fmt.Errorf("step %q: duplicate field id %q", s.ID, f.ID))
		}
		seen[f.ID] = true
		if !f.Type.Valid() {
			errs = append(errs, fmt.Errorf("step %q field %q: unknown type %q", s.ID, f.ID, f.Type))
		}
		if f.Type == FieldSelect && len(f.Options) == 0 {
			errs = append(errs, fmt.Errorf("step %q field %q: select needs at least one option", s.ID, f.ID))
		}
	}
	return errs
}

// Missing returns the required fields of s that have no value in values.
// Whitespace-only values count as empty. Order follows the step's fields.
func (s Step) Missing(values map[string]string) []Field {
	var missing []Field
	for _, f := range s.Fields {
		if !f.Required {
			continue
		}
		if strings.TrimSpace(values[f.ID]) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// MissingFieldsError reports a submission that left required fields empty.
type MissingFieldsError struct {
	StepID string
	Fields []Field
}

// Labels returns the display labels of the missing fields.
func (e *MissingFieldsError) Labels() []string {
	labels := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		labels[i] = f.DisplayLabel()
	}
	return labels
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("step %q: missing required fields: %s", e.StepID, strings.Join(e.Labels(), ", "))
}

// Invalid returns the select fields of s whose value is not one of the
// field's options. Empty values are left to Missing.
func (s Step) Invalid(values map[string]string) []Field {
	var invalid []Field
	for _, f := range s.Fields {
		if f.Type != FieldSelect {
			continue
		}
		v := values[f.ID]
		if strings.TrimSpace(v) == "" {
			continue
		}
		if !slices.Contains(f.Options, v) {
			invalid = append(invalid, f)
		}
	}
	return invalid
}

// InvalidOptionError reports select fields submitted with a value outside
// their options.
type InvalidOptionError struct {
	StepID string
	Fields []Field
}

// Labels returns the display labels of the offending fields.
func (e *InvalidOptionError) Labels() []string {
	labels := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		labels[i] = f.DisplayLabel()
	}
	return labels
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("step %q: value not among the options: %s", e.StepID, strings.Join(e.Labels(), ", "))
}

// CheckValues returns a *MissingFieldsError when values leave any required
// field of s empty, then an *InvalidOptionError when a select value is not
// one of its options, and nil otherwise.
func CheckValues(s Step, values map[string]string) error {
	if missing := s.Missing(values); len(missing) > 0 {
		return &MissingFieldsError{StepID: s.ID, Fields: missing}
	}
	if invalid := s.Invalid(values); len(invalid) > 0 {
		return &InvalidOptionError{StepID: s.ID, Fields: invalid}
	}
	return nil
}
