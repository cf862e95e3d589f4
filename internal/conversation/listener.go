// ABOUTME: engine.Listener that republishes engine activity as broadcaster events
// ABOUTME: One Listener per mounted session

package conversation

import (
	"time"

	"github.com/2389/coven-wizard/internal/engine"
)

// Listener publishes appended messages and state changes for one session.
type Listener struct {
	engine.NopListener
	b         *EventBroadcaster
	sessionID string
	now       func() time.Time
}

// NewListener returns a Listener publishing to b under sessionID.
func NewListener(b *EventBroadcaster, sessionID string) *Listener {
	return &Listener{b: b, sessionID: sessionID, now: time.Now}
}

func (l *Listener) MessageAppended(msg engine.Message) {
	l.b.Publish(l.sessionID, &Event{Type: EventMessage, Message: &msg, At: l.now()})
}

func (l *Listener) StateChanged(snap engine.Snapshot) {
	l.b.Publish(l.sessionID, &Event{Type: EventState, State: &snap, At: l.now()})
}

var _ engine.Listener = (*Listener)(nil)
