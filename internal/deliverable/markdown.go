// ABOUTME: Markdown deliverable built from a completed workflow's answers
// ABOUTME: Also renders a sanitized HTML preview with goldmark and bluemonday

// Package deliverable turns the answers of a completed workflow into the
// downloadable artifact the user walks away with.
package deliverable

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/2389/coven-wizard/internal/workflow"
)

// ContentType of every Markdown artifact.
const ContentType = "text/markdown; charset=utf-8"

// ErrEmptyArtifact is returned when previewing an artifact with no content.
var ErrEmptyArtifact = errors.New("artifact is empty")

// MarkdownProducer writes the answers as a Markdown document with one
// section per step in definition order.
type MarkdownProducer struct {
	now func() time.Time
}

// NewMarkdownProducer creates a producer. A nil clock uses time.Now.
func NewMarkdownProducer(now func() time.Time) *MarkdownProducer {
	if now == nil {
		now = time.Now
	}
	return &MarkdownProducer{now: now}
}

// Produce implements engine.Producer.
func (p *MarkdownProducer) Produce(ctx context.Context, def *workflow.Definition, answers workflow.Answers) (*workflow.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", def.Title)
	if def.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", def.Description)
	}

	for _, step := range def.Steps {
		values, ok := answers[step.ID]
		if !ok {
			return nil, fmt.Errorf("no answers for step %q", step.ID)
		}
		fmt.Fprintf(&b, "## %s\n\n", step.Title)
		for _, f := range step.Fields {
			value := "_not provided_"
			if v := strings.TrimSpace(values[f.ID]); v != "" {
				value = escapeValue(v)
			}
			fmt.Fprintf(&b, "- **%s:** %s\n", f.DisplayLabel(), value)
		}
		b.WriteString("\n")
	}

	return &workflow.Artifact{
		Filename:    Filename(def.Title, p.now()),
		ContentType: ContentType,
		Data:        []byte(b.String()),
	}, nil
}

var inlineEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`",
	"[", `\[`, "]", `\]`, "<", `\<`, ">", `\>`,
)

// escapeValue makes a user answer render as literal text inside a list item.
// Emphasis, link and HTML markers are escaped everywhere; block markers only
// at the start of a line. Continuation lines are indented under the item.
func escapeValue(v string) string {
	lines := strings.Split(strings.ReplaceAll(v, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = escapeLineStart(inlineEscaper.Replace(strings.TrimLeft(line, " \t")))
	}
	return strings.Join(lines, "\n  ")
}

// escapeLineStart neutralizes headings, quotes, list and table markers, and
// setext underlines.
func escapeLineStart(line string) string {
	if line == "" {
		return line
	}
	switch line[0] {
	case '#', '-', '+', '=', '|', '~':
		return `\` + line
	}
	digits := 0
	for digits < len(line) && line[digits] >= '0' && line[digits] <= '9' {
		digits++
	}
	if digits > 0 && digits < len(line) && (line[digits] == '.' || line[digits] == ')') {
		return line[:digits] + `\` + line[digits:]
	}
	return line
}

// Filename returns "<slug>-<yyyymmdd>.md".
func Filename(title string, at time.Time) string {
	return fmt.Sprintf("%s-%s.md", Slug(title), at.Format("20060102"))
}

// Slug reduces s to lowercase ASCII letters, digits and single hyphens.
// Accents are folded first so "Café" becomes "cafe".
func Slug(s string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			hyphen = false
		case b.Len() > 0 && !hyphen:
			b.WriteByte('-')
			hyphen = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "deliverable"
	}
	return slug
}

var previewPolicy = bluemonday.UGCPolicy()

// Preview renders a Markdown artifact as sanitized HTML.
func Preview(a *workflow.Artifact) (template.HTML, error) {
	if a == nil || len(a.Data) == 0 {
		return "", ErrEmptyArtifact
	}
	var buf bytes.Buffer
	if err := goldmark.Convert(a.Data, &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return template.HTML(previewPolicy.SanitizeBytes(buf.Bytes())), nil
}
