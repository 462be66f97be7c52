package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllow_CapWithinWindow(t *testing.T) {
	// WHAT: Exactly max events pass, the next is refused.
	// WHY: The cap is the whole point; off-by-one means doubled load.
	l := New(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("event %d refused under the cap", i)
		}
	}
	if l.Allow() {
		t.Error("event over the cap was allowed")
	}
	if l.Pending() != 3 {
		t.Errorf("pending = %d, want 3", l.Pending())
	}
}

func TestAllow_WindowSlides(t *testing.T) {
	// WHAT: Events leaving the window free their slots.
	// WHY: Sliding, not fixed buckets: capacity recovers continuously.
	l := New(2, 50*time.Millisecond)
	l.Allow()
	l.Allow()
	if l.Allow() {
		t.Fatal("cap not enforced")
	}
	time.Sleep(70 * time.Millisecond)
	if !l.Allow() {
		t.Error("slot not freed after the window slid past")
	}
}

func TestWait_BlocksUntilSlotFrees(t *testing.T) {
	// WHAT: Wait blocks while the window is full and proceeds once it isn't.
	// WHY: Direct calls prefer waiting over dropping.
	l := New(1, 40*time.Millisecond)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := l.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("second Wait returned after %v, expected to block for the window", elapsed)
	}
}

func TestWait_ContextCancel(t *testing.T) {
	// WHAT: A cancelled context aborts Wait with the context's error.
	// WHY: A shutting-down cascade must not hang on the limiter.
	l := New(1, time.Hour)
	l.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Error("expected a context error from Wait")
	}
}

func TestSharedAcrossCallers(t *testing.T) {
	// WHAT: Concurrent callers share one budget.
	// WHY: The limiter bounds aggregate load on the target origin, not
	// per-session load.
	l := New(5, time.Minute)
	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() { done <- l.Allow() }()
	}
	allowed := 0
	for i := 0; i < 10; i++ {
		if <-done {
			allowed++
		}
	}
	if allowed != 5 {
		t.Errorf("allowed = %d, want 5", allowed)
	}
}
