// ABOUTME: Template rendering for the workflow list and chat view
// ABOUTME: Loads templates from the embedded filesystem and renders forms in place

package webui

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-wizard/internal/assets"
	"github.com/2389/coven-wizard/internal/engine"
	"github.com/2389/coven-wizard/internal/form"
	"github.com/2389/coven-wizard/internal/session"
	"github.com/2389/coven-wizard/internal/store"
)

//go:embed templates/*.html templates/partials/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"asset": assets.URL,
	"clock": func(t time.Time) string { return t.Format("15:04") },
}

// pages holds one template set per page, each with the base layout and partials.
var pages = map[string]*template.Template{
	"workflows": parsePage("workflows.html"),
	"chat":      parsePage("chat.html"),
	"preview":   parsePage("preview.html"),
}

func parsePage(name string) *template.Template {
	return template.Must(template.New(name).Funcs(funcs).ParseFS(templateFS,
		"templates/base.html", "templates/partials/*.html", "templates/"+name))
}

// Template data types
type workflowsData struct {
	Title     string
	Workflows []store.Summary
	CSRFToken string
}

type messageView struct {
	engine.Message
	InlineForm template.HTML
}

type conversationData struct {
	SessionID     string
	Messages      []messageView
	Panel         template.HTML
	Overlay       template.HTML
	InputDisabled bool
	Complete      bool
	CanResume     bool
	Override      string
	Overrides     []string
	Progress      int
	StepCount     int
	CSRFToken     string
}

type chatData struct {
	Title        string
	Conversation conversationData
	CSRFToken    string
}

type previewData struct {
	Title     string
	SessionID string
	Filename  string
	Body      template.HTML
	CSRFToken string
}

var overrideChoices = []string{
	engine.OverrideAuto.String(),
	engine.OverrideInline.String(),
	engine.OverridePanel.String(),
	engine.OverrideOverlay.String(),
}

// buildConversation snapshots the engine into view data. The caller holds the
// session lock. active is the form from the current request, if any; it keeps
// the entered values and validation errors when it still matches the engine.
func (u *UI) buildConversation(sid, csrfToken string, e *engine.Engine, active form.Renderer) (conversationData, error) {
	snap := e.State()
	data := conversationData{
		SessionID:     sid,
		InputDisabled: snap.Display == engine.DisplayOverlay,
		Complete:      snap.Complete,
		CanResume:     snap.Started && !snap.Complete && !snap.Display.Awaiting() && snap.Pending == 0,
		Override:      snap.Override.String(),
		Overrides:     overrideChoices,
		Progress:      len(snap.Completed),
		StepCount:     snap.StepCount,
		CSRFToken:     csrfToken,
	}

	var rendered template.HTML
	if step, ok := e.ActiveStep(); ok {
		mode, _ := snap.Display.Mode()
		if active == nil || active.Mode() != mode || active.Step().ID != step.ID {
			var err error
			if active, err = form.New(snap.Display, step, form.Callbacks{}); err != nil {
				return data, err
			}
		}
		var buf bytes.Buffer
		view := form.View{
			ActionBase: "/chat/" + sid,
			CSRFToken:  csrfToken,
			Nonce:      uuid.New().String(),
			Phrases:    e.Phrases(),
		}
		if err := active.Render(&buf, view); err != nil {
			return data, err
		}
		rendered = template.HTML(buf.String())
	}

	for _, msg := range e.Messages() {
		mv := messageView{Message: msg}
		if snap.InlineAnchor != "" && msg.ID == snap.InlineAnchor {
			mv.InlineForm = rendered
		}
		data.Messages = append(data.Messages, mv)
	}

	switch snap.Display {
	case engine.DisplayPanel:
		data.Panel = rendered
	case engine.DisplayOverlay:
		data.Overlay = rendered
	}
	return data, nil
}

// renderPage executes a full page with the base layout
func (u *UI) renderPage(w http.ResponseWriter, page string, status int, data any) {
	var buf bytes.Buffer
	if err := pages[page].ExecuteTemplate(&buf, "base", data); err != nil {
		u.logger.Error("failed to render page", "page", page, "error", err)
		http.Error(w, "An error occurred", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderConversation executes only the conversation partial for htmx swaps
func (u *UI) renderConversation(w http.ResponseWriter, status int, data conversationData) {
	var buf bytes.Buffer
	if err := pages["chat"].ExecuteTemplate(&buf, "conversation", data); err != nil {
		u.logger.Error("failed to render conversation", "error", err)
		http.Error(w, "An error occurred", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// respond finishes a chat action: htmx gets the updated partial, plain form
// posts get a redirect on success and the full page otherwise.
func (u *UI) respond(w http.ResponseWriter, r *http.Request, s *session.Session, status int, active form.Renderer) {
	if !isHTMX(r) && status == http.StatusOK {
		http.Redirect(w, r, "/chat/"+s.ID, http.StatusSeeOther)
		return
	}
	u.renderChat(w, r, s, status, active)
}

// renderChat renders the chat view, as a partial for htmx requests
func (u *UI) renderChat(w http.ResponseWriter, r *http.Request, s *session.Session, status int, active form.Renderer) {
	_, csrfToken := u.ensureCSRFToken(w, r)

	var conv conversationData
	var title string
	err := s.Do(func(e *engine.Engine) error {
		title = e.Definition().Title
		var err error
		conv, err = u.buildConversation(s.ID, csrfToken, e, active)
		return err
	})
	if err != nil {
		u.writeError(w, err)
		return
	}

	if isHTMX(r) {
		u.renderConversation(w, status, conv)
		return
	}
	u.renderPage(w, "chat", status, chatData{Title: title, Conversation: conv, CSRFToken: csrfToken})
}
