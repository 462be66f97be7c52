package cascade

import (
	"strconv"
	"testing"
)

func TestEventQueue_DeliversInOrder(t *testing.T) {
	// WHAT: Events under the depth cap arrive in push order.
	q := NewEventQueue(8)
	for i := 0; i < 3; i++ {
		q.Push(NetworkEvent{URL: strconv.Itoa(i)})
	}
	q.Close()

	i := 0
	for ev := range q.Events() {
		if ev.URL != strconv.Itoa(i) {
			t.Errorf("event %d = %q", i, ev.URL)
		}
		i++
	}
	if i != 3 {
		t.Errorf("delivered %d events", i)
	}
}

func TestEventQueue_DropOldestUnderPressure(t *testing.T) {
	// WHAT: When the queue is full the oldest pending event is evicted so
	// the newest always fits; production never blocks.
	// WHY: A hot page can emit events faster than the cascade consumes
	// them, and recent traffic is worth more than stale traffic.
	q := NewEventQueue(2)
	q.Push(NetworkEvent{URL: "a"})
	q.Push(NetworkEvent{URL: "b"})
	q.Push(NetworkEvent{URL: "c"})
	q.Close()

	var got []string
	for ev := range q.Events() {
		got = append(got, ev.URL)
	}
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("got %v, want [b c]", got)
	}
	if q.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", q.Dropped())
	}
}

func TestEventQueue_PushAfterCloseNoop(t *testing.T) {
	// WHAT: Push after Close is a silent no-op.
	// WHY: The CDP pump may fire once more while the session tears down.
	q := NewEventQueue(2)
	q.Close()
	q.Push(NetworkEvent{URL: "late"})

	if _, ok := <-q.Events(); ok {
		t.Error("event delivered after close")
	}
}

func TestEventQueue_CloseIdempotent(t *testing.T) {
	// WHAT: Double Close does not panic.
	q := NewEventQueue(2)
	q.Close()
	q.Close()
}
