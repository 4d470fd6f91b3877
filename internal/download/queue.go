package download

import (
	"sync"

	"github.com/ytget/yt-fetcher/internal/model"
)

// Event queue bounds
const (
	MinEventBuffer     = 2
	MaxEventBuffer     = 4096
	DefaultEventBuffer = 256
)

// EventQueue is a bounded FIFO handing events from a task to one consumer.
// Neither Push nor Poll blocks. When the queue is full the oldest Progress
// event is evicted; terminal events are never evicted. The queue closes
// itself after a terminal event and ignores later pushes.
type EventQueue struct {
	mu       sync.Mutex
	items    []model.Event
	capacity int
	closed   bool
	dropped  int
	onDrop   func(model.Event)
}

// NewEventQueue creates a queue holding at most capacity events.
// capacity is clamped to [MinEventBuffer, MaxEventBuffer].
func NewEventQueue(capacity int, onDrop func(model.Event)) *EventQueue {
	capacity = clampEventBuffer(capacity)
	return &EventQueue{
		items:    make([]model.Event, 0, capacity),
		capacity: capacity,
		onDrop:   onDrop,
	}
}

func clampEventBuffer(n int) int {
	if n < MinEventBuffer {
		return MinEventBuffer
	}
	if n > MaxEventBuffer {
		return MaxEventBuffer
	}
	return n
}

// Push appends ev. It returns false if the queue was already closed.
func (q *EventQueue) Push(ev model.Event) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}

	var evicted model.Event
	if len(q.items) >= q.capacity {
		evicted = q.evictOldestProgress()
	}
	q.items = append(q.items, ev)
	if ev.Terminal() {
		q.closed = true
	}
	q.mu.Unlock()

	if evicted != nil && q.onDrop != nil {
		q.onDrop(evicted)
	}
	return true
}

// evictOldestProgress removes the first non-terminal event. Caller holds mu.
func (q *EventQueue) evictOldestProgress() model.Event {
	for i, ev := range q.items {
		if ev.Terminal() {
			continue
		}
		copy(q.items[i:], q.items[i+1:])
		q.items[len(q.items)-1] = nil
		q.items = q.items[:len(q.items)-1]
		q.dropped++
		return ev
	}
	return nil
}

// Poll removes and returns the oldest event.
func (q *EventQueue) Poll() (model.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	ev := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return ev, true
}

// Drain removes and returns all queued events in order.
func (q *EventQueue) Drain() []model.Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]model.Event, len(q.items))
	copy(out, q.items)
	clear(q.items)
	q.items = q.items[:0]
	return out
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Closed reports whether a terminal event has been pushed.
func (q *EventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Dropped returns how many Progress events were evicted.
func (q *EventQueue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
