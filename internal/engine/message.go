// ABOUTME: Conversation log: append-only, ordered chat messages
// ABOUTME: Messages are never edited, removed or reordered once appended

package engine

import (
	"errors"
	"fmt"
	"time"
)

// ErrDuplicateMessageID is returned when appending a message whose id is already logged.
var ErrDuplicateMessageID = errors.New("duplicate message id")

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderSystem Sender = "system"
)

// Kind tags a message with its role in the workflow.
type Kind string

const (
	KindPlain            Kind = "plain"
	KindFormPrompt       Kind = "form-prompt"
	KindCompletion       Kind = "completion"
	KindDeliverableReady Kind = "deliverable-ready"
)

// Message is a single entry in the conversation log.
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Author    string    `json:"author,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	StepID    string    `json:"step_id,omitempty"` // set on form-prompt and completion
}

// Log is an append-only ordered sequence of messages.
type Log struct {
	messages []Message
	ids      map[string]struct{}
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{ids: make(map[string]struct{})}
}

// Append adds msg to the end of the log.
func (l *Log) Append(msg Message) error {
	if msg.ID == "" {
		return errors.New("message id is required")
	}
	if l.Has(msg.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateMessageID, msg.ID)
	}
	if msg.Kind == "" {
		msg.Kind = KindPlain
	}
	l.ids[msg.ID] = struct{}{}
	l.messages = append(l.messages, msg)
	return nil
}

// Has reports whether a message with id has been appended.
func (l *Log) Has(id string) bool {
	_, ok := l.ids[id]
	return ok
}

// Len returns the number of messages.
func (l *Log) Len() int { return len(l.messages) }

// Messages returns a copy of the log in chronological order.
func (l *Log) Messages() []Message {
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Since returns a copy of the messages from index i onwards.
func (l *Log) Since(i int) []Message {
	if i < 0 {
		i = 0
	}
	if i >= len(l.messages) {
		return nil
	}
	out := make([]Message, len(l.messages)-i)
	copy(out, l.messages[i:])
	return out
}

// Last returns the most recent message.
func (l *Log) Last() (Message, bool) {
	if len(l.messages) == 0 {
		return Message{}, false
	}
	return l.messages[len(l.messages)-1], true
}

// LatestPrompt returns the most recent form-prompt message.
func (l *Log) LatestPrompt() (Message, bool) {
	for i := len(l.messages) - 1; i >= 0; i-- {
		if l.messages[i].Kind == KindFormPrompt {
			return l.messages[i], true
		}
	}
	return Message{}, false
}
