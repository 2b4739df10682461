// Package timectrl provides the clock used to stamp scenarios and time
// rebuilds, with a controllable implementation for tests and offline runs.
package timectrl

import (
	"sync"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// System is the wall clock.
type System struct{}

// Now returns time.Now.
func (System) Now() time.Time { return time.Now() }

// Manual is a clock that only moves when told to. Every call to Now
// advances it by Step, which lets tests observe non-zero durations while
// staying deterministic.
type Manual struct {
	mu      sync.RWMutex
	current time.Time

	// Step is added after each Now call. Zero freezes the clock.
	Step time.Duration

	listeners []func(time.Time)
}

// NewManual creates a manual clock starting at start.
func NewManual(start time.Time, step time.Duration) *Manual {
	return &Manual{current: start, Step: step}
}

// Now returns the current time and advances the clock by Step.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	now := m.current
	m.current = m.current.Add(m.Step)
	m.mu.Unlock()
	return now
}

// Peek returns the current time without advancing.
func (m *Manual) Peek() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// SetTime sets the current time and notifies listeners.
func (m *Manual) SetTime(t time.Time) {
	m.mu.Lock()
	m.current = t
	listeners := append([]func(time.Time){}, m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(t)
	}
}

// Advance moves the clock forward by d and notifies listeners.
func (m *Manual) Advance(d time.Duration) {
	m.SetTime(m.Peek().Add(d))
}

// AddListener registers a callback invoked whenever the time is set.
func (m *Manual) AddListener(fn func(time.Time)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}
