// ABOUTME: HTTP handlers for listing workflows and driving a chat view
// ABOUTME: Each action runs under the session lock and answers with PRG or an htmx partial

package webui

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/2389/coven-wizard/internal/deliverable"
	"github.com/2389/coven-wizard/internal/engine"
	"github.com/2389/coven-wizard/internal/form"
	"github.com/2389/coven-wizard/internal/i18n"
	"github.com/2389/coven-wizard/internal/session"
	"github.com/2389/coven-wizard/internal/workflow"
)

// handleIndex redirects to the workflow list
func (u *UI) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/workflows", http.StatusSeeOther)
}

// handleWorkflows lists the stored workflow definitions
func (u *UI) handleWorkflows(w http.ResponseWriter, r *http.Request) {
	_, csrfToken := u.ensureCSRFToken(w, r)

	summaries, err := u.store.ListDefinitions(r.Context())
	if err != nil {
		u.logger.Error("failed to list workflows", "error", err)
		http.Error(w, "Failed to load workflows", http.StatusInternalServerError)
		return
	}

	u.renderPage(w, "workflows", http.StatusOK, workflowsData{
		Title:     "Workflows",
		Workflows: summaries,
		CSRFToken: csrfToken,
	})
}

// handleStart mounts a chat view for a workflow and sends the browser to it
func (u *UI) handleStart(w http.ResponseWriter, r *http.Request) {
	def, err := u.store.GetDefinition(r.Context(), r.PathValue("id"))
	if err != nil {
		u.writeError(w, err)
		return
	}

	ictx := i18n.DefaultContext()
	ictx.Language = u.languageFor(r)

	s, err := u.hub.Open(r.Context(), def, ictx)
	if err != nil {
		u.writeError(w, err)
		return
	}

	if err := u.setSessionCookie(w, r, s.ID); err != nil {
		u.logger.Error("failed to sign session cookie", "error", err)
		_ = u.hub.Close(s.ID)
		http.Error(w, "An error occurred", http.StatusInternalServerError)
		return
	}

	target := "/chat/" + s.ID
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// handleChat renders the full chat view
func (u *UI) handleChat(w http.ResponseWriter, r *http.Request) {
	s, err := u.hub.Get(r.PathValue("sid"))
	if err != nil {
		u.writeError(w, err)
		return
	}
	u.renderChat(w, r, s, http.StatusOK, nil)
}

// handleState returns the engine snapshot and log as JSON. ?since=N limits
// the log to entries from index N onwards.
func (u *UI) handleState(w http.ResponseWriter, r *http.Request) {
	s, err := u.hub.Get(r.PathValue("sid"))
	if err != nil {
		u.writeError(w, err)
		return
	}

	since := 0
	if v := r.URL.Query().Get("since"); v != "" {
		if since, err = strconv.Atoi(v); err != nil || since < 0 {
			http.Error(w, "since must be a non-negative integer", http.StatusBadRequest)
			return
		}
	}

	var resp stateResponse
	err = s.Do(func(e *engine.Engine) error {
		resp.State = e.State()
		resp.Messages = e.MessagesSince(since)
		return nil
	})
	if err != nil {
		u.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		u.logger.Error("failed to encode state", "error", err)
	}
}

type stateResponse struct {
	State    engine.Snapshot  `json:"state"`
	Messages []engine.Message `json:"messages"`
}

// handleSubmit validates the posted values and hands them to the engine
func (u *UI) handleSubmit(w http.ResponseWriter, r *http.Request) {
	s, ok := u.claim(w, r)
	if !ok {
		return
	}

	var active form.Renderer
	err := s.Do(func(e *engine.Engine) error {
		f, step, err := activeForm(e, r, func(step workflow.Step) form.Callbacks {
			return form.Callbacks{
				OnSubmit: func(values map[string]string) error { return e.Submit(step.ID, values) },
			}
		})
		if err != nil {
			return err
		}
		for _, field := range step.Fields {
			if err := f.Set(field.ID, r.PostFormValue(field.ID)); err != nil {
				return err
			}
		}
		active = f
		return f.Submit()
	})

	var missing *workflow.MissingFieldsError
	var invalid *workflow.InvalidOptionError
	switch {
	case errors.As(err, &missing):
		u.logger.Debug("submission missing fields", "session_id", s.ID, "form", form.Describe(active), "missing", missing.Labels())
		u.respond(w, r, s, http.StatusUnprocessableEntity, active)
		return
	case errors.As(err, &invalid):
		u.logger.Debug("submission outside options", "session_id", s.ID, "form", form.Describe(active), "invalid", invalid.Labels())
		u.respond(w, r, s, http.StatusUnprocessableEntity, active)
		return
	}
	if err != nil {
		u.writeError(w, err)
		return
	}
	u.respond(w, r, s, http.StatusOK, nil)
}

// handleCancel closes the active form without recording anything
func (u *UI) handleCancel(w http.ResponseWriter, r *http.Request) {
	u.formAction(w, r, func(e *engine.Engine, f form.Renderer) error { return f.Cancel() },
		func(e *engine.Engine, _ workflow.Step) form.Callbacks {
			return form.Callbacks{OnCancel: e.Cancel}
		})
}

// handleExpand moves an inline form into the panel
func (u *UI) handleExpand(w http.ResponseWriter, r *http.Request) {
	u.formAction(w, r, func(e *engine.Engine, f form.Renderer) error { return f.Expand() },
		func(e *engine.Engine, _ workflow.Step) form.Callbacks {
			return form.Callbacks{OnExpand: func() error {
				if !e.Expand() {
					return form.ErrNotExpandable
				}
				return nil
			}}
		})
}

// handleResume prompts the current step again after a cancel
func (u *UI) handleResume(w http.ResponseWriter, r *http.Request) {
	u.engineAction(w, r, func(e *engine.Engine) error { return e.Resume() })
}

// handleOverride sets the display mode used for the next prompted step
func (u *UI) handleOverride(w http.ResponseWriter, r *http.Request) {
	o, err := engine.ParseOverride(r.PostFormValue("override"))
	if err != nil {
		u.writeError(w, err)
		return
	}
	u.engineAction(w, r, func(e *engine.Engine) error { return e.SetOverride(o) })
}

// handleMessage logs a free-text chat message
func (u *UI) handleMessage(w http.ResponseWriter, r *http.Request) {
	text := r.PostFormValue("text")
	u.engineAction(w, r, func(e *engine.Engine) error { return e.Chat(text) })
}

// handleClose unmounts the chat view
func (u *UI) handleClose(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("sid")
	if err := u.hub.Close(sid); err != nil {
		u.writeError(w, err)
		return
	}
	u.clearSessionCookie(w, sid)

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/workflows")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/workflows", http.StatusSeeOther)
}

// handleDeliverable downloads the finished artifact
func (u *UI) handleDeliverable(w http.ResponseWriter, r *http.Request) {
	s, art, err := u.produce(r)
	if err != nil {
		u.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.Filename}))
	if _, err := w.Write(art.Data); err != nil {
		u.logger.Warn("failed to write deliverable", "session_id", s.ID, "error", err)
	}
}

// handlePreview renders the finished artifact as sanitized HTML
func (u *UI) handlePreview(w http.ResponseWriter, r *http.Request) {
	s, art, err := u.produce(r)
	if err != nil {
		u.writeError(w, err)
		return
	}

	body, err := deliverable.Preview(art)
	if err != nil {
		u.writeError(w, err)
		return
	}

	_, csrfToken := u.ensureCSRFToken(w, r)
	u.renderPage(w, "preview", http.StatusOK, previewData{
		Title:     "Preview",
		SessionID: s.ID,
		Filename:  art.Filename,
		Body:      body,
		CSRFToken: csrfToken,
	})
}

// produce asks the engine for the deliverable and records the attempt
func (u *UI) produce(r *http.Request) (*session.Session, *workflow.Artifact, error) {
	s, err := u.hub.Get(r.PathValue("sid"))
	if err != nil {
		return nil, nil, err
	}

	var art *workflow.Artifact
	err = s.Do(func(e *engine.Engine) error {
		var err error
		art, err = e.Deliver(r.Context(), u.producer)
		return err
	})
	if u.metrics != nil && !errors.Is(err, engine.ErrNotComplete) && !errors.Is(err, session.ErrClosed) {
		u.metrics.DeliverableProduced(s.WorkflowID, err)
	}
	if err != nil {
		return s, nil, err
	}
	return s, art, nil
}

// claim rejects a replayed form nonce. An empty nonce is not checked.
func (u *UI) claim(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := u.hub.Get(r.PathValue("sid"))
	if err != nil {
		u.writeError(w, err)
		return nil, false
	}
	if nonce := r.PostFormValue("nonce"); nonce != "" && u.guard != nil {
		if err := u.guard.Claim(s.ID, nonce); err != nil {
			u.logger.Debug("replayed submission", "session_id", s.ID)
			u.writeError(w, err)
			return nil, false
		}
	}
	return s, true
}

// engineAction runs one engine call and responds
func (u *UI) engineAction(w http.ResponseWriter, r *http.Request, fn func(e *engine.Engine) error) {
	s, ok := u.claim(w, r)
	if !ok {
		return
	}
	if err := s.Do(fn); err != nil {
		u.writeError(w, err)
		return
	}
	u.respond(w, r, s, http.StatusOK, nil)
}

// formAction builds the active form wired to cb and runs fn against it
func (u *UI) formAction(w http.ResponseWriter, r *http.Request, fn func(e *engine.Engine, f form.Renderer) error, cb func(e *engine.Engine, step workflow.Step) form.Callbacks) {
	u.engineAction(w, r, func(e *engine.Engine) error {
		f, _, err := activeForm(e, r, func(step workflow.Step) form.Callbacks { return cb(e, step) })
		if err != nil {
			return err
		}
		return fn(e, f)
	})
}

// activeForm builds the renderer for the engine's current form. A posted
// step_id must name the active step.
func activeForm(e *engine.Engine, r *http.Request, cb func(step workflow.Step) form.Callbacks) (form.Renderer, workflow.Step, error) {
	step, ok := e.ActiveStep()
	if !ok {
		return nil, workflow.Step{}, engine.ErrNoActiveForm
	}
	if posted := r.PostFormValue("step_id"); posted != "" && posted != step.ID {
		return nil, step, fmt.Errorf("%w: got %q, active %q", engine.ErrStepMismatch, posted, step.ID)
	}
	f, err := form.New(e.State().Display, step, cb(step))
	return f, step, err
}
