// ABOUTME: Server-sent events for live chat view updates
// ABOUTME: Relays broadcaster events for one session until it closes

package webui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/2389/coven-wizard/internal/conversation"
)

// handleStream streams appended messages and state changes over SSE
func (u *UI) handleStream(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("sid")
	if u.broadcaster == nil {
		http.Error(w, "Streaming not available", http.StatusNotImplemented)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	events, subID := u.broadcaster.Subscribe(r.Context(), sid)
	defer u.broadcaster.Unsubscribe(sid, subID)

	fmt.Fprintf(w, "event: connected\ndata: {\"session_id\": %q}\n\n", sid)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()

		case ev, ok := <-events:
			if !ok {
				return
			}

			data, err := json.Marshal(ev)
			if err != nil {
				u.logger.Error("failed to marshal event", "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, data)
			flusher.Flush()

			if ev.Type == conversation.EventClosed {
				return
			}
		}
	}
}
