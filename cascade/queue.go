package cascade

import "sync"

// EventQueue bridges the automation surface's event callbacks to the
// cascade's consumer channel. Depth is capped; when the consumer lags,
// the oldest pending event is dropped so production never blocks and the
// buffer never grows unbounded.
type EventQueue struct {
	mu      sync.Mutex
	ch      chan NetworkEvent
	closed  bool
	dropped int64
}

// NewEventQueue creates a queue with the given depth cap (default 256).
func NewEventQueue(depth int) *EventQueue {
	if depth <= 0 {
		depth = 256
	}
	return &EventQueue{ch: make(chan NetworkEvent, depth)}
}

// Push enqueues an event, evicting the oldest pending event when full.
func (q *EventQueue) Push(ev NetworkEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	for {
		select {
		case q.ch <- ev:
			return
		default:
		}
		select {
		case <-q.ch:
			q.dropped++
		default:
		}
	}
}

// Events returns the consumer channel.
func (q *EventQueue) Events() <-chan NetworkEvent {
	return q.ch
}

// Close closes the consumer channel. Push becomes a no-op.
func (q *EventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// Dropped reports how many events were evicted under backpressure.
func (q *EventQueue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
