// Package engine implements the conversational workflow engine.
//
// # Overview
//
// An Engine walks a workflow.Definition one step at a time inside a chat
// stream. For every step it decides how the step's form is presented,
// appends a prompt to the conversation log, waits for a submission, stores
// the answers and moves on. Once every step is submitted the final
// deliverable is unlocked.
//
// # States
//
//	idle-normal ──advance──▶ awaiting-form(inline|panel|overlay)
//	     ▲                         │
//	     └──── submit / cancel ────┘
//
// Expand moves an inline form with more than two fields to the panel.
// SetOverride changes the presentation of the next prompted step only.
//
// # Display Modes
//
// SelectMode classifies a step by field count (≤2 inline, 3–5 panel,
// >5 overlay) unless an override other than auto is set.
//
// # Timing
//
// Advancing to the next step and answering free-text chat happen after a
// short cosmetic delay. Delays go through a Scheduler so tests can use a
// ManualScheduler and step through transitions synchronously. Callbacks
// that fire after Detach are dropped.
//
// # Concurrency
//
// An Engine is not safe for concurrent use. Callers serialize access, and
// a TimerScheduler given the same sync.Locker runs its callbacks under it.
package engine
