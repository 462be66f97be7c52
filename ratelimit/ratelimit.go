// Package ratelimit provides the shared sliding-window limiter that
// throttles direct request replay.
//
// One limiter instance is shared by every extraction session so the
// target origin sees bounded aggregate load. A burst from one session can
// therefore delay another; that is the intended trade-off.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a sliding-window counter: at most Max events per Window,
// counted across all callers.
type Limiter struct {
	max    int
	window time.Duration

	mu     sync.Mutex
	events []time.Time
}

// New creates a Limiter. max <= 0 defaults to 10, window <= 0 to one
// minute.
func New(max int, window time.Duration) *Limiter {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{max: max, window: window}
}

// Allow reports whether an event may proceed now, recording it if so.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.pruneLocked(now)
	if len(l.events) >= l.max {
		return false
	}
	l.events = append(l.events, now)
	return true
}

// Wait blocks until an event may proceed or ctx is done. On success the
// event is recorded.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		l.pruneLocked(now)
		if len(l.events) < l.max {
			l.events = append(l.events, now)
			l.mu.Unlock()
			return nil
		}
		// Oldest event leaving the window frees a slot.
		wakeAt := l.events[0].Add(l.window)
		l.mu.Unlock()

		timer := time.NewTimer(time.Until(wakeAt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Pending reports how many events are currently inside the window.
func (l *Limiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(time.Now())
	return len(l.events)
}

func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	keep := l.events[:0]
	for _, t := range l.events {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	l.events = keep
}
