// Package otp provides the resend-cooldown countdown used by the journey's
// one-time-code stages. The timer never drives a transition by itself; it
// only gates whether a resend request is accepted.
package otp

import (
	"sync"
	"time"
)

// Timer is a cancellable fixed-duration countdown. Restarting always resets
// to the full duration regardless of time remaining. Safe for concurrent use.
type Timer struct {
	mu       sync.Mutex
	duration time.Duration
	deadline time.Time
	now      func() time.Time
}

// Option configures a Timer.
type Option func(*Timer)

// WithNow injects a clock, for deterministic tests.
func WithNow(now func() time.Time) Option {
	return func(t *Timer) {
		t.now = now
	}
}

// NewTimer creates a stopped countdown with the given duration.
func NewTimer(duration time.Duration, opts ...Option) *Timer {
	t := &Timer{
		duration: duration,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins (or restarts) the countdown and returns its deadline.
func (t *Timer) Start() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deadline = t.now().Add(t.duration)
	return t.deadline
}

// Remaining returns the time left before expiry, or zero if expired/stopped.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.deadline.IsZero() {
		return 0
	}
	left := t.deadline.Sub(t.now())
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether the countdown has run out (or was never started).
func (t *Timer) Expired() bool {
	return t.Remaining() == 0
}

// Cancel stops the countdown. A cancelled timer reads as expired.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deadline = time.Time{}
}
