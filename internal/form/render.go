// ABOUTME: HTML rendering of step forms from embedded templates
// ABOUTME: Maps field types to inputs and selects with localized labels

package form

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/2389/coven-wizard/internal/engine"
	"github.com/2389/coven-wizard/internal/i18n"
	"github.com/2389/coven-wizard/internal/workflow"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type fieldData struct {
	Field   workflow.Field
	InputID string
	Value   string
	Missing bool
	Invalid bool
	Text    *text
}

// text is the localized chrome around the fields.
type text struct {
	MissingBanner string
	InvalidBanner string
	FieldRequired string
	FieldInvalid  string
	NoSelection   string
	Submit        string
	Cancel        string
	ShowMore      string
}

type formData struct {
	Mode        engine.Mode
	Step        workflow.Step
	Fields      []fieldData
	Expandable  bool
	HiddenCount int
	Text        *text
	View        View
}

// variant is what render needs beyond the Renderer interface.
type variant interface {
	Renderer
	isMissing(fieldID string) bool
	isInvalid(fieldID string) bool
}

func render(w io.Writer, name string, f variant, v View) error {
	p := v.Phrases
	if p == nil {
		p = i18n.For(i18n.Supported[0])
	}
	txt := &text{
		FieldRequired: p.FieldRequired(),
		FieldInvalid:  p.FieldInvalid(),
		NoSelection:   p.NoSelection(),
		Submit:        p.Submit(),
		Cancel:        p.Cancel(),
	}
	if missing := f.Errors(); len(missing) > 0 {
		txt.MissingBanner = p.MissingFields(missing)
	}
	if invalid := f.InvalidOptions(); len(invalid) > 0 {
		txt.InvalidBanner = p.InvalidOption(invalid)
	}
	if n := f.HiddenCount(); n > 0 {
		txt.ShowMore = p.ShowMore(n)
	}

	step := f.Step()
	data := formData{
		Mode:        f.Mode(),
		Step:        step,
		Expandable:  f.Expandable(),
		HiddenCount: f.HiddenCount(),
		Text:        txt,
		View:        v,
	}
	for _, field := range f.VisibleFields() {
		data.Fields = append(data.Fields, fieldData{
			Field:   field,
			InputID: fmt.Sprintf("field-%s-%s", step.ID, field.ID),
			Value:   f.Value(field.ID),
			Missing: f.isMissing(field.ID),
			Invalid: f.isInvalid(field.ID),
			Text:    txt,
		})
	}
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		return fmt.Errorf("rendering %s form: %w", name, err)
	}
	return nil
}
