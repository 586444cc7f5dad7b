package jobs

import (
	"sync"
	"time"

	"github.com/PoyBoy96/Whisper-Watch/internal/domain"
)

// EventType classifies messages emitted during job execution.
type EventType string

const (
	EventTypeJobQueued       EventType = "job_queued"
	EventTypeJobLoading      EventType = "job_loading"
	EventTypeJobTranscribing EventType = "job_transcribing"
	EventTypeJobSegment      EventType = "job_segment"
	EventTypeJobCompleted    EventType = "job_completed"
	EventTypeJobFailed       EventType = "job_failed"
	EventTypeJobCancelled    EventType = "job_cancelled"
	EventTypeQueueChanged    EventType = "queue_changed"
)

// Event is a sequenced payload delivered to subscribers. Fields beyond
// Type and JobID are populated per event type: Progress/ETA for loading,
// Segment for segment appends, OutputPath for completion, ErrorKind and
// Message for failures, Queue for whole-queue snapshots.
type Event struct {
	Seq        int64            `json:"seq"`
	Timestamp  time.Time        `json:"timestamp"`
	Type       EventType        `json:"type"`
	JobID      string           `json:"jobId,omitempty"`
	Progress   float64          `json:"progress,omitempty"`
	ETA        time.Duration    `json:"eta,omitempty"`
	Segment    *domain.Segment  `json:"segment,omitempty"`
	OutputPath string           `json:"outputPath,omitempty"`
	ErrorKind  domain.ErrorKind `json:"errorKind,omitempty"`
	Message    string           `json:"message,omitempty"`
	Queue      []domain.Job     `json:"queue,omitempty"`
}

// Observer receives every published event. Handlers run on the emitting
// goroutine and must not block; slow consumers should buffer internally.
type Observer interface {
	HandleEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// HandleEvent calls the wrapped function.
func (f ObserverFunc) HandleEvent(event Event) { f(event) }

// EventBus stores recent events and provides incremental reads for
// polling consumers that missed the live stream.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Publish appends one event and assigns sequence and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}
