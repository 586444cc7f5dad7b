package jobs

import (
	"fmt"
	"testing"
)

func TestEventBusAssignsSequenceAndTimestamp(t *testing.T) {
	bus := NewEventBus(10)

	first := bus.Publish(Event{Type: EventTypeJobQueued, JobID: "a"})
	second := bus.Publish(Event{Type: EventTypeJobLoading, JobID: "a"})

	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("expected sequences 1 and 2, got %d and %d", first.Seq, second.Seq)
	}
	if first.Timestamp.IsZero() || second.Timestamp.IsZero() {
		t.Fatal("expected timestamps to be assigned")
	}
}

func TestEventBusSinceFiltersBySequence(t *testing.T) {
	bus := NewEventBus(10)
	for i := 0; i < 5; i++ {
		bus.Publish(Event{Type: EventTypeJobSegment, JobID: "a"})
	}

	all := bus.Since(0)
	if len(all) != 5 {
		t.Fatalf("expected 5 events, got %d", len(all))
	}

	tail := bus.Since(3)
	if len(tail) != 2 {
		t.Fatalf("expected 2 events after seq 3, got %d", len(tail))
	}
	if tail[0].Seq != 4 || tail[1].Seq != 5 {
		t.Fatalf("unexpected sequences %d, %d", tail[0].Seq, tail[1].Seq)
	}

	if got := bus.Since(100); len(got) != 0 {
		t.Fatalf("expected no events past the buffer, got %d", len(got))
	}
}

func TestEventBusTrimsOldEvents(t *testing.T) {
	bus := NewEventBus(3)
	for i := 0; i < 6; i++ {
		bus.Publish(Event{Type: EventTypeJobSegment, JobID: fmt.Sprintf("job-%d", i)})
	}

	events := bus.Since(0)
	if len(events) != 3 {
		t.Fatalf("expected buffer capped at 3, got %d", len(events))
	}
	if events[0].Seq != 4 {
		t.Fatalf("expected oldest retained seq 4, got %d", events[0].Seq)
	}
	if events[0].JobID != "job-3" {
		t.Fatalf("unexpected oldest event %q", events[0].JobID)
	}
}

func TestEventBusEmptySince(t *testing.T) {
	bus := NewEventBus(3)
	if got := bus.Since(0); got != nil {
		t.Fatalf("expected nil for empty bus, got %v", got)
	}
}

func TestObserverFuncForwards(t *testing.T) {
	var got Event
	obs := ObserverFunc(func(event Event) { got = event })
	obs.HandleEvent(Event{Type: EventTypeQueueChanged, Seq: 7})

	if got.Type != EventTypeQueueChanged || got.Seq != 7 {
		t.Fatalf("unexpected event %+v", got)
	}
}
