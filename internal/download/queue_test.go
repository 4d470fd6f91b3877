package download

import (
	"runtime"
	"sync"
	"testing"

	"github.com/ytget/yt-fetcher/internal/model"
)

func TestNewEventQueue_ClampsCapacity(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{-5, MinEventBuffer},
		{0, MinEventBuffer},
		{1, MinEventBuffer},
		{16, 16},
		{MaxEventBuffer + 1, MaxEventBuffer},
	}

	for _, test := range tests {
		q := NewEventQueue(test.input, nil)
		if q.capacity != test.expected {
			t.Errorf("NewEventQueue(%d) capacity = %d, expected %d", test.input, q.capacity, test.expected)
		}
	}
}

func TestEventQueue_FIFO(t *testing.T) {
	q := NewEventQueue(8, nil)

	q.Push(model.Progress{Percent: 1})
	q.Push(model.Progress{Percent: 2})
	q.Push(model.Completed{})

	for _, want := range []model.Event{model.Progress{Percent: 1}, model.Progress{Percent: 2}, model.Completed{}} {
		got, ok := q.Poll()
		if !ok {
			t.Fatalf("Expected event %v, queue was empty", want)
		}
		if got != want {
			t.Errorf("Expected %v, got %v", want, got)
		}
	}

	if _, ok := q.Poll(); ok {
		t.Error("Expected empty queue after draining")
	}
}

func TestEventQueue_DropsOldestProgressWhenFull(t *testing.T) {
	var dropped []model.Event
	q := NewEventQueue(3, func(ev model.Event) { dropped = append(dropped, ev) })

	for i := 1; i <= 5; i++ {
		q.Push(model.Progress{Percent: float64(i)})
	}

	if q.Len() != 3 {
		t.Fatalf("Expected 3 queued events, got %d", q.Len())
	}
	if q.Dropped() != 2 || len(dropped) != 2 {
		t.Fatalf("Expected 2 dropped events, got %d (callback saw %d)", q.Dropped(), len(dropped))
	}
	if dropped[0] != (model.Progress{Percent: 1}) || dropped[1] != (model.Progress{Percent: 2}) {
		t.Errorf("Expected the two oldest events to be dropped, got %v", dropped)
	}

	got := q.Drain()
	for i, want := range []float64{3, 4, 5} {
		if p := got[i].(model.Progress); p.Percent != want {
			t.Errorf("Event %d: expected percent %.0f, got %.0f", i, want, p.Percent)
		}
	}
}

func TestEventQueue_TerminalNeverDropped(t *testing.T) {
	q := NewEventQueue(2, nil)

	q.Push(model.Progress{Percent: 10})
	q.Push(model.Progress{Percent: 20})
	q.Push(model.Failed{Kind: model.ErrorKindUnknown, Message: "boom"})

	if !q.Closed() {
		t.Error("Expected queue to close after a terminal event")
	}
	if q.Push(model.Progress{Percent: 30}) {
		t.Error("Expected push after terminal to be rejected")
	}

	events := q.Drain()
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if _, ok := events[1].(model.Failed); !ok {
		t.Errorf("Expected terminal event last, got %T", events[1])
	}
}

func TestEventQueue_PollEmpty(t *testing.T) {
	q := NewEventQueue(4, nil)
	if ev, ok := q.Poll(); ok || ev != nil {
		t.Errorf("Expected nothing from empty queue, got %v", ev)
	}
	if events := q.Drain(); len(events) != 0 {
		t.Errorf("Expected empty drain, got %d events", len(events))
	}
}

func TestEventQueue_ConcurrentProducerConsumer(t *testing.T) {
	q := NewEventQueue(16, nil)
	const total = 1000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= total; i++ {
			q.Push(model.Progress{Percent: float64(i) / 10})
		}
		q.Push(model.Completed{})
	}()

	last := -1.0
	var sawTerminal bool
	for !sawTerminal {
		ev, ok := q.Poll()
		if !ok {
			runtime.Gosched()
			continue
		}
		switch e := ev.(type) {
		case model.Progress:
			if e.Percent <= last {
				t.Fatalf("Out of order event: %.1f after %.1f", e.Percent, last)
			}
			last = e.Percent
		case model.Completed:
			sawTerminal = true
		}
	}
	wg.Wait()

	if _, ok := q.Poll(); ok {
		t.Error("Expected no events after the terminal one")
	}
}
