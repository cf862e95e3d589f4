// ABOUTME: Scheduler capability for the engine's cosmetic delays
// ABOUTME: TimerScheduler for production, ManualScheduler and ImmediateScheduler for tests and dry runs

package engine

import (
	"sync"
	"time"
)

// Scheduler runs fn once after d. Scheduled callbacks are fire-and-forget.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// TimerScheduler schedules callbacks on real timers. Each callback runs while
// holding locker (if set) so it is serialized with the engine's other callers.
type TimerScheduler struct {
	locker sync.Locker

	mu      sync.Mutex
	timers  map[*time.Timer]struct{}
	stopped bool
}

// NewTimerScheduler creates a scheduler whose callbacks run under locker.
func NewTimerScheduler(locker sync.Locker) *TimerScheduler {
	return &TimerScheduler{
		locker: locker,
		timers: make(map[*time.Timer]struct{}),
	}
}

// After implements Scheduler. It is a no-op once Stop has been called.
func (s *TimerScheduler) After(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		_, live := s.timers[t]
		delete(s.timers, t)
		s.mu.Unlock()
		if !live {
			return
		}

		if s.locker != nil {
			s.locker.Lock()
			defer s.locker.Unlock()
		}
		fn()
	})
	s.timers[t] = struct{}{}
}

// Pending returns the number of callbacks that have not fired yet.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop stops all outstanding timers and rejects new ones. Safe to call
// multiple times.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for t := range s.timers {
		t.Stop()
		delete(s.timers, t)
	}
}

// scheduled is a queued ManualScheduler callback.
type scheduled struct {
	delay time.Duration
	fn    func()
}

// ManualScheduler queues callbacks until the test runs them.
type ManualScheduler struct {
	queue []scheduled
}

// NewManualScheduler returns an empty manual scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// After implements Scheduler.
func (m *ManualScheduler) After(d time.Duration, fn func()) {
	m.queue = append(m.queue, scheduled{delay: d, fn: fn})
}

// Pending returns the number of queued callbacks.
func (m *ManualScheduler) Pending() int { return len(m.queue) }

// Delays returns the requested delay of each queued callback, in order.
func (m *ManualScheduler) Delays() []time.Duration {
	out := make([]time.Duration, len(m.queue))
	for i, s := range m.queue {
		out[i] = s.delay
	}
	return out
}

// RunNext runs the oldest queued callback. Returns false if none are queued.
func (m *ManualScheduler) RunNext() bool {
	if len(m.queue) == 0 {
		return false
	}
	next := m.queue[0]
	m.queue = m.queue[1:]
	next.fn()
	return true
}

// RunAll runs queued callbacks, including ones they schedule, until the
// queue is empty. Returns how many ran.
func (m *ManualScheduler) RunAll() int {
	n := 0
	for m.RunNext() {
		n++
	}
	return n
}

// ImmediateScheduler runs every callback synchronously, ignoring the delay.
type ImmediateScheduler struct{}

// After implements Scheduler.
func (ImmediateScheduler) After(_ time.Duration, fn func()) { fn() }
