// ABOUTME: Listener hooks the engine calls after each transition
// ABOUTME: Used by sessions for live fan-out and by metrics

package engine

import "github.com/2389/coven-wizard/internal/workflow"

// Listener observes engine activity. Methods are called synchronously on the
// goroutine that drove the transition and must not call back into the engine.
type Listener interface {
	MessageAppended(msg Message)
	StateChanged(snap Snapshot)
	StepPrompted(step workflow.Step, mode Mode)
	StepSubmitted(stepID string)
	ValidationFailed(stepID string, missing []string)
	WorkflowCompleted()
}

// NopListener ignores every event. Embed it to implement only some hooks.
type NopListener struct{}

func (NopListener) MessageAppended(Message) {}
func (NopListener) StateChanged(Snapshot) {}
func (NopListener) StepPrompted(workflow.Step, Mode) {}
func (NopListener) StepSubmitted(string) {}
func (NopListener) ValidationFailed(string, []string) {}
func (NopListener) WorkflowCompleted() {}

// Listeners fans every event out to each listener in order.
type Listeners []Listener

func (ls Listeners) MessageAppended(msg Message) {
	for _, l := range ls {
		l.MessageAppended(msg)
	}
}

func (ls Listeners) StateChanged(snap Snapshot) {
	for _, l := range ls {
		l.StateChanged(snap)
	}
}

func (ls Listeners) StepPrompted(step workflow.Step, mode Mode) {
	for _, l := range ls {
		l.StepPrompted(step, mode)
	}
}

func (ls Listeners) StepSubmitted(stepID string) {
	for _, l := range ls {
		l.StepSubmitted(stepID)
	}
}

func (ls Listeners) ValidationFailed(stepID string, missing []string) {
	for _, l := range ls {
		l.ValidationFailed(stepID, missing)
	}
}

func (ls Listeners) WorkflowCompleted() {
	for _, l := range ls {
		l.WorkflowCompleted()
	}
}
