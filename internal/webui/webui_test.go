// ABOUTME: Tests for the web UI handlers using httptest
// ABOUTME: Drives a real session hub with millisecond delays

package webui

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-wizard/internal/conversation"
	"github.com/2389/coven-wizard/internal/dedupe"
	"github.com/2389/coven-wizard/internal/deliverable"
	"github.com/2389/coven-wizard/internal/engine"
	"github.com/2389/coven-wizard/internal/metrics"
	"github.com/2389/coven-wizard/internal/session"
	"github.com/2389/coven-wizard/internal/store"
	"github.com/2389/coven-wizard/internal/workflow"
)

const testCSRF = "test-csrf-token"

func brandBrief() *workflow.Definition {
	return &workflow.Definition{
		ID:          "brand",
		Title:       "Brand Brief",
		Description: "Collects the basics of a brand.",
		Steps: []workflow.Step{
			{ID: "basics", Title: "Basics", Fields: []workflow.Field{
				{ID: "name", Type: workflow.FieldText, Label: "Name", Required: true},
			}},
			{ID: "details", Title: "Details", Fields: []workflow.Field{
				{ID: "site", Type: workflow.FieldURL, Label: "Website"},
				{ID: "audience", Type: workflow.FieldTextarea, Label: "Audience", Required: true},
				{ID: "tone", Type: workflow.FieldSelect, Label: "Tone", Options: []string{"warm", "bold"}},
			}},
		},
	}
}

type harness struct {
	ui      *UI
	mux     *http.ServeMux
	hub     *session.Hub
	guard   *dedupe.Guard
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, override engine.Override) *harness {
	t.Helper()

	st := store.NewMockStore()
	require.NoError(t, st.SaveDefinition(context.Background(), brandBrief()))

	b := conversation.NewEventBroadcaster(nil)
	m := metrics.New()
	cfg := session.DefaultConfig()
	cfg.Delays = engine.Delays{Start: time.Millisecond, Advance: time.Millisecond, Reply: time.Millisecond}
	cfg.Override = override
	guard := dedupe.New(time.Minute, 100)
	cfg.Nonces = guard
	hub := session.NewHub(cfg, b, m, nil)
	t.Cleanup(func() {
		hub.Shutdown()
		b.Close()
		guard.Close()
	})

	fixed := func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	ui := New(Deps{
		Store:       st,
		Hub:         hub,
		Broadcaster: b,
		Guard:       guard,
		Signer:      session.NewTokenSigner([]byte("webui-test-secret-webui-test-secret")),
		Producer:    deliverable.NewMarkdownProducer(fixed),
		Metrics:     m,
	}, Config{}, nil)

	mux := http.NewServeMux()
	ui.RegisterRoutes(mux)
	return &harness{ui: ui, mux: mux, hub: hub, guard: guard, metrics: m}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

func postForm(target string, values url.Values) *http.Request {
	if values == nil {
		values = url.Values{}
	}
	if _, ok := values["csrf_token"]; !ok {
		values.Set("csrf_token", testCSRF)
	}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: testCSRF})
	return req
}

// chat is one mounted chat view with the cookie that binds to it.
type chat struct {
	h      *harness
	t      *testing.T
	id     string
	cookie *http.Cookie
}

func (h *harness) start(t *testing.T) *chat {
	t.Helper()
	return h.startIn(t, "")
}

// startIn mounts a chat view with the given Accept-Language header.
func (h *harness) startIn(t *testing.T, acceptLanguage string) *chat {
	t.Helper()
	req := postForm("/workflows/brand/start", nil)
	if acceptLanguage != "" {
		req.Header.Set("Accept-Language", acceptLanguage)
	}
	rec := h.do(req)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

	loc := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(loc, "/chat/"), loc)
	c := &chat{h: h, t: t, id: strings.TrimPrefix(loc, "/chat/")}
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == DefaultCookieName {
			c.cookie = ck
		}
	}
	require.NotNil(t, c.cookie, "session cookie not set")
	return c
}

func (c *chat) get(path string, htmx bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/chat/"+c.id+path, nil)
	req.AddCookie(c.cookie)
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	return c.h.do(req)
}

func (c *chat) post(action string, values url.Values, htmx bool) *httptest.ResponseRecorder {
	req := postForm("/chat/"+c.id+"/"+action, values)
	req.AddCookie(c.cookie)
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	return c.h.do(req)
}

func (c *chat) state() engine.Snapshot {
	c.t.Helper()
	s, err := c.h.hub.Get(c.id)
	require.NoError(c.t, err)
	var snap engine.Snapshot
	require.NoError(c.t, s.Do(func(e *engine.Engine) error {
		snap = e.State()
		return nil
	}))
	return snap
}

// waitFor blocks until the engine presents a form in the given state.
func (c *chat) waitFor(display engine.DisplayState) {
	c.t.Helper()
	require.Eventually(c.t, func() bool {
		return c.state().Display == display
	}, time.Second, 2*time.Millisecond)
}

func (c *chat) completeAll() {
	c.t.Helper()
	c.waitFor(engine.DisplayInline)
	require.Equal(c.t, http.StatusSeeOther, c.post("submit", url.Values{"step_id": {"basics"}, "name": {"Acme"}}, false).Code)
	c.waitFor(engine.DisplayPanel)
	rec := c.post("submit", url.Values{"step_id": {"details"}, "audience": {"Makers"}, "tone": {"bold"}}, false)
	require.Equal(c.t, http.StatusSeeOther, rec.Code, rec.Body.String())
	require.True(c.t, c.state().Complete)
}

func TestIndex_RedirectsToWorkflows(t *testing.T) {
	h := newHarness(t, engine.OverrideAuto)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/workflows", rec.Header().Get("Location"))
}

func TestWorkflows_ListsDefinitions(t *testing.T) {
	h := newHarness(t, engine.OverrideAuto)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/workflows", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Brand Brief")
	assert.Contains(t, body, "2 steps")
	assert.Contains(t, body, `action="/workflows/brand/start"`)

	var csrf *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == CSRFCookieName {
			csrf = ck
		}
	}
	require.NotNil(t, csrf)
	assert.Contains(t, body, `name="csrf_token" value="`+csrf.Value+`"`)
}

func TestStart(t *testing.T) {
	t.Run("mounts a session", func(t *testing.T) {
		h := newHarness(t, engine.OverrideAuto)
		c := h.start(t)

		assert.Equal(t, 1, h.hub.Len())
		assert.Equal(t, "/chat/"+c.id, c.cookie.Path)
		assert.True(t, c.cookie.HttpOnly)
	})

	t.Run("unknown workflow", func(t *testing.T) {
		h := newHarness(t, engine.OverrideAuto)
		rec := h.do(postForm("/workflows/nope/start", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Zero(t, h.hub.Len())
	})

	t.Run("missing csrf token", func(t *testing.T) {
		h := newHarness(t, engine.OverrideAuto)
		rec := h.do(postForm("/workflows/brand/start", url.Values{"csrf_token": {"wrong"}}))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Zero(t, h.hub.Len())
	})

	t.Run("htmx gets HX-Redirect", func(t *testing.T) {
		h := newHarness(t, engine.OverrideAuto)
		req := postForm("/workflows/brand/start", nil)
		req.Header.Set("HX-Request", "true")
		rec := h.do(req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.True(t, strings.HasPrefix(rec.Header().Get("HX-Redirect"), "/chat/"))
	})
}

func TestChat_RequiresBoundCookie(t *testing.T) {
	h := newHarness(t, engine.OverrideAuto)
	a := h.start(t)
	b := h.start(t)

	req := httptest.NewRequest(http.MethodGet, "/chat/"+a.id, nil)
	assert.Equal(t, http.StatusForbidden, h.do(req).Code, "no cookie")

	req = httptest.NewRequest(http.MethodGet, "/chat/"+a.id, nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: b.cookie.Value})
	assert.Equal(t, http.StatusForbidden, h.do(req).Code, "cookie for another session")

	req = httptest.NewRequest(http.MethodGet, "/chat/"+a.id, nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "not-a-token"})
	assert.Equal(t, http.StatusForbidden, h.do(req).Code, "garbage cookie")

	assert.Equal(t, http.StatusOK, a.get("", false).Code)
}

func TestChat_InlineFormUnderPrompt(t *testing.T) {
	h := newHarness(t, engine.OverrideAuto)
	c := h.start(t)
	c.waitFor(engine.DisplayInline)

	rec := c.get("", false)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	anchor := c.state().InlineAnchor
	require.NotEmpty(t, anchor)
	promptAt := strings.Index(body, `id="msg-`+anchor+`"`)
	formAt := strings.Index(body, "step-form-inline")
	require.Positive(t, promptAt)
	assert.Greater(t, formAt, promptAt, "inline form renders under its prompt")
	assert.NotContains(t, body, "panel-dock")
	assert.NotContains(t, body, `role="dialog"`)
	assert.Contains(t, body, `name="step_id" value="basics"`)
}

func TestSubmit_MissingFields(t *testing.T) {
	h := newHarness(t, engine.OverrideAuto)
	c := h.start(t)
	c.waitFor(engine.DisplayInline)
	before := c.state()

	rec := c.post("submit", url.Values{"step_id": {"basics"}, "name": {"   "}}, false)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please fill in: Name")
	assert.Contains(t, rec.Body.String(), "field-missing")

	after := c.state()
	assert.Equal(t, before, after, "rejected submission leaves the engine untouched")
}

func TestSubmit_MissingFieldsLocalized(t *testing.T) {
	h := newHarness(t, engine.OverrideAuto)
	c := h.startIn(t, "de-DE,de;q=0.9")
	c.waitFor(engine.DisplayInline)

	rec := c.post("submit", url.Values{"step_id": {"basics"}, "name": {""}}, false)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Bitte ausfüllen: Name")
	assert.Contains(t, body, "Dieses Feld ist erforderlich.")
	assert.NotContains(t, body, "Please fill in")
}

func TestSubmit_ValueOutsideOptions(t *testing.T) {
	h := newHarness(t, engine.OverrideAuto)
	c := h.start(t)
	c.waitFor(engine.DisplayInline)
	require.Equal(t, http.StatusSeeOther, c.post("submit", url.Values{"step_id": {"basics"}, "name": {"Acme"}}, false).Code)
	c.waitFor(engine.DisplayPanel)
	before := c.state()

	rec := c.post("submit", url.Values{"step_id": {"details"}, "audience": {"Makers"}, "tone": {"platinum-not-offered"}}, false)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please pick one of the listed options for: Tone")
	assert.Contains(t, rec.Body.String(), "field-invalid")
	assert.Equal(t, before, c.state(), "rejected submission leaves the engine untouched")
}

func TestSubmit_AdvancesToPanel(t *testing.T) {
	h := newHarness(t, engine.OverrideAuto)
	c := h.start(t)
	c.waitFor(engine.DisplayInline)

	rec := c.post("submit", url.Values{"step_id": {"basics"}, "name": {"Acme"}, "extra": {"ignored"}}, false)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/chat/"+c.id, rec.Header().Get("Location"))

	c.waitFor(engine.DisplayPanel)
	snap := c.state()
	assert.Equal(t, 1, snap.Cursor)
	assert.Equal(t, []string{"basics"}, snap.Completed)

	body := c.get("", false).Body.String()
	assert.Contains(t, body, "panel-dock")
	assert.Contains(t, body, "Thanks, Basics is done.")
}

func TestSubmit_ReplayedNonce(t *testing.T) {
	h := newHarness(t, engine.OverrideAuto)
	c := h.start(t)
	c.waitFor(engine.DisplayInline)

	values := url.Values{"step_id": {"basics"}, "name": {""}, "nonce": {"n-1"}}
	assert.Equal(t, http.StatusUnprocessableEntity, c.post("submit", values, false).Code)
	assert.Equal(t, http.StatusConflict, c.post("submit", values, false).Code)

	values.Set("nonce", "n-2")
	values.Set("name", "Acme")
	assert.Equal(t, http.StatusSeeOther, c.post("submit", values, false).Code)
}

func TestSubmit_Conflicts(t *testing.T) {
	h := newHarness(t, engine.OverrideAuto)
	c := h.start(t)
	c.waitFor(engine.DisplayInline)

	rec := c.post("submit", url.Values{"step_id": {"details"}, "name": {"Acme"}}, false)
	assert.Equal(t, http.StatusConflict, rec.Code, "wrong step")

	require.Equal(t, http.StatusSeeOther, c.post("cancel", nil, false).Code)
	rec = c.post("submit", url.Values{"step_id": {"basics"}, "name": {"Acme"}}, false)
	assert.Equal(t, http.StatusConflict, rec.Code, "no active form")
}

func TestHTMX_ReturnsPartial(t *testing.T) {
	h := newHarness(t, engine.OverrideAuto)
	c := h.start(t)
	c.waitFor(engine.DisplayInline)

	rec := c.post("submit", url.Values{"step_id": {"basics"}, "name": {""}}, true)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := strings.TrimSpace(rec.Body.String())
	assert.True(t, strings.HasPrefix(body, `<div id="conversation"`), body)
	assert.NotContains(t, body, "<html")

	rec = c.post("submit", url.Values{"step_id": {"basics"}, "name": {"Acme"}}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Thanks, Basics is done.")
}

func TestCancelAndResume(t *testing.T) {
	h := newHarness(t, engine.OverrideAuto)
	c := h.start(t)
	c.waitFor(engine.DisplayInline)

	require.Equal(t, http.StatusSeeOther, c.post("cancel", url.Values{"step_id": {"basics"}}, false).Code)
	snap := c.state()
	assert.Equal(t, engine.DisplayNormal, snap.Display)
	assert.Equal(t, 0, snap.Cursor)
	assert.Contains(t, c.get("", false).Body.String(), "/resume")

	assert.Equal(t, http.StatusConflict, c.post("cancel", nil, false).Code)

	require.Equal(t, http.StatusSeeOther, c.post("resume", nil, false).Code)
	assert.Equal(t, engine.DisplayInline, c.state().Display)
	assert.Equal(t, http.StatusConflict, c.post("resume", nil, false).Code)
}

func TestExpand(t *testing.T) {
	h := newHarness(t, engine.OverrideInline)
	c := h.start(t)
	c.waitFor(engine.DisplayInline)

	// One field: nothing to expand.
	assert.Equal(t, http.StatusConflict, c.post("expand", nil, false).Code)

	require.Equal(t, http.StatusSeeOther, c.post("submit", url.Values{"name": {"Acme"}}, false).Code)
	c.waitFor(engine.DisplayInline)
	assert.Contains(t, c.get("", false).Body.String(), "Show 1 more field")

	require.Equal(t, http.StatusSeeOther, c.post("expand", nil, false).Code)
	assert.Equal(t, engine.DisplayPanel, c.state().Display)
	assert.Equal(t, http.StatusConflict, c.post("expand", nil, false).Code)
}

func TestOverride(t *testing.T) {
	h := newHarness(t, engine.OverrideAuto)
	c := h.start(t)
	c.waitFor(engine.DisplayInline)

	assert.Equal(t, http.StatusBadRequest, c.post("override", url.Values{"override": {"sidebar"}}, false).Code)

	require.Equal(t, http.StatusSeeOther, c.post("override", url.Values{"override": {"overlay"}}, false).Code)
	snap := c.state()
	assert.Equal(t, engine.OverrideOverlay, snap.Override)
	assert.Equal(t, engine.DisplayInline, snap.Display, "the active form keeps its presentation")

	require.Equal(t, http.StatusSeeOther, c.post("submit", url.Values{"name": {"Acme"}}, false).Code)
	c.waitFor(engine.DisplayOverlay)
}

func TestMessage(t *testing.T) {
	h := newHarness(t, engine.OverrideOverlay)
	c := h.start(t)

	assert.Equal(t, http.StatusBadRequest, c.post("message", url.Values{"text": {"  "}}, false).Code)

	c.waitFor(engine.DisplayOverlay)
	body := c.get("", false).Body.String()
	assert.Contains(t, body, `role="dialog"`)
	assert.Contains(t, body, `placeholder="Type a message" disabled`)

	assert.Equal(t, http.StatusConflict, c.post("message", url.Values{"text": {"hello?"}}, false).Code)

	require.Equal(t, http.StatusSeeOther, c.post("cancel", nil, false).Code)

	s, err := h.hub.Get(c.id)
	require.NoError(t, err)
	messages := func() []engine.Message {
		var msgs []engine.Message
		_ = s.Do(func(e *engine.Engine) error {
			msgs = e.Messages()
			return nil
		})
		return msgs
	}
	before := len(messages())

	require.Equal(t, http.StatusSeeOther, c.post("message", url.Values{"text": {"hello?"}}, false).Code)
	require.Eventually(t, func() bool {
		return len(messages()) == before+2
	}, time.Second, 2*time.Millisecond)

	msgs := messages()
	assert.Equal(t, engine.SenderUser, msgs[before].Sender)
	assert.Equal(t, "hello?", msgs[before].Content)
	assert.Equal(t, engine.SenderSystem, msgs[before+1].Sender)
}

func TestState_JSON(t *testing.T) {
	h := newHarness(t, engine.OverrideAuto)
	c := h.start(t)
	c.waitFor(engine.DisplayInline)

	rec := c.get("/state", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp struct {
		State    map[string]any   `json:"state"`
		Messages []map[string]any `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "awaiting-inline-form", resp.State["display"])
	assert.Equal(t, "basics", resp.State["active_step_id"])
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "form-prompt", resp.Messages[1]["kind"])

	rec = c.get("/state?since=1", false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "form-prompt", resp.Messages[0]["kind"])

	rec = c.get("/state?since=9", false)
	require.Equal(t, http.StatusOK, rec.Code)
	resp.Messages = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Messages)

	assert.Equal(t, http.StatusBadRequest, c.get("/state?since=-1", false).Code)
	assert.Equal(t, http.StatusBadRequest, c.get("/state?since=abc", false).Code)
}

func TestDeliverable(t *testing.T) {
	h := newHarness(t, engine.OverrideAuto)
	c := h.start(t)

	assert.Equal(t, http.StatusConflict, c.get("/deliverable", false).Code)
	assert.Equal(t, http.StatusConflict, c.get("/preview", false).Code)

	c.completeAll()
	assert.Contains(t, c.get("", false).Body.String(), "/deliverable")

	rec := c.get("/deliverable", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, deliverable.ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=brand-brief-20260301.md`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "# Brand Brief")
	assert.Contains(t, rec.Body.String(), "- **Audience:** Makers")

	rec = c.get("/preview", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>Brand Brief</h1>")

	families, err := h.metrics.Registry().Gather()
	require.NoError(t, err)
	var produced float64
	for _, f := range families {
		if f.GetName() == "coven_wizard_deliverables_total" {
			for _, m := range f.GetMetric() {
				produced += m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(2), produced, "download and preview each produce once")
}

func TestClose(t *testing.T) {
	h := newHarness(t, engine.OverrideAuto)
	c := h.start(t)

	c.waitFor(engine.DisplayInline)
	require.Equal(t, http.StatusUnprocessableEntity,
		c.post("submit", url.Values{"step_id": {"basics"}, "nonce": {"n-1"}}, false).Code)
	require.True(t, h.guard.Claimed(c.id, "n-1"))

	rec := c.post("close", nil, false)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/workflows", rec.Header().Get("Location"))
	assert.Zero(t, h.hub.Len())
	assert.False(t, h.guard.Claimed(c.id, "n-1"), "closing forgets the session's nonces")

	assert.Equal(t, http.StatusNotFound, c.get("", false).Code)
}

func TestStream(t *testing.T) {
	h := newHarness(t, engine.OverrideAuto)
	srv := httptest.NewServer(h.mux)
	defer srv.Close()

	c := h.start(t)
	c.waitFor(engine.DisplayInline)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/chat/"+c.id+"/stream", nil)
	require.NoError(t, err)
	req.AddCookie(c.cookie)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	waitLine := func(want string) {
		t.Helper()
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatalf("stream ended before %q", want)
				}
				if line == want {
					return
				}
			case <-ctx.Done():
				t.Fatalf("timed out waiting for %q", want)
			}
		}
	}

	waitLine("event: connected")
	require.Eventually(t, func() bool {
		return h.ui.broadcaster.Subscribers(c.id) == 1
	}, time.Second, 2*time.Millisecond)

	require.Equal(t, http.StatusSeeOther, c.post("message", url.Values{"text": {"hi"}}, false).Code)
	waitLine("event: message")

	require.NoError(t, h.hub.Close(c.id))
	waitLine("event: closed")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&workflow.MissingFieldsError{StepID: "s"}, http.StatusUnprocessableEntity},
		{&workflow.InvalidOptionError{StepID: "s"}, http.StatusUnprocessableEntity},
		{session.ErrNotFound, http.StatusNotFound},
		{store.ErrNotFound, http.StatusNotFound},
		{session.ErrClosed, http.StatusGone},
		{engine.ErrEmptyMessage, http.StatusBadRequest},
		{dedupe.ErrReplayed, http.StatusConflict},
		{engine.ErrInputBlocked, http.StatusConflict},
		{context.Canceled, http.StatusServiceUnavailable},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
