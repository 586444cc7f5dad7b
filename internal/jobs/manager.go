package jobs

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/PoyBoy96/Whisper-Watch/internal/domain"
	"github.com/PoyBoy96/Whisper-Watch/internal/metrics"
	"github.com/PoyBoy96/Whisper-Watch/internal/subtitle"
	"github.com/PoyBoy96/Whisper-Watch/internal/transcribe"
)

// ErrUnknownJob is returned when an id does not match any known job.
var ErrUnknownJob = errors.New("unknown job")

// ErrJobFinished is returned when cancelling a job already in a terminal
// state. It is a soft outcome, not a job failure.
var ErrJobFinished = errors.New("job already finished")

// ErrEmptySource is returned when a submission has no media path.
var ErrEmptySource = errors.New("source path is required")

// SubmitRequest carries everything fixed at submission time. OutputDir,
// ModelPath, and Language are resolved by the caller (settings layer)
// before submission and are never looked up again.
type SubmitRequest struct {
	SourcePath string
	OutputDir  string
	ModelPath  string
	Language   string
}

// Manager owns the FIFO of pending jobs and enforces that at most one
// worker is active at any time. Submissions, cancellations, and snapshots
// are short critical sections that never wait on engine work.
type Manager struct {
	engine    transcribe.Engine
	writer    subtitle.Writer
	log       zerolog.Logger
	collector *metrics.Collector
	bus       *EventBus

	mu           sync.Mutex
	jobs         map[string]*domain.Job
	pending      []string
	activeID     string
	cancelActive context.CancelFunc
	nextSeq      int64
	closed       bool

	obsMu     sync.RWMutex
	observers []Observer

	wg sync.WaitGroup
}

// NewManager builds a queue manager around an engine and subtitle writer.
// The collector may be nil to disable instrumentation.
func NewManager(engine transcribe.Engine, writer subtitle.Writer, log zerolog.Logger, collector *metrics.Collector) *Manager {
	return &Manager{
		engine:    engine,
		writer:    writer,
		log:       log.With().Str("component", "queue").Logger(),
		collector: collector,
		bus:       NewEventBus(1000),
		jobs:      make(map[string]*domain.Job),
	}
}

// Submit appends a new job to the tail of the pending queue and starts a
// worker for it immediately when the queue is idle. It never blocks on
// engine work and returns the created job.
func (m *Manager) Submit(req SubmitRequest) (domain.Job, error) {
	if strings.TrimSpace(req.SourcePath) == "" {
		return domain.Job{}, ErrEmptySource
	}

	m.mu.Lock()
	m.nextSeq++
	job := &domain.Job{
		ID:         uuid.NewString(),
		SourcePath: req.SourcePath,
		OutputDir:  req.OutputDir,
		ModelPath:  req.ModelPath,
		Language:   req.Language,
		Status:     domain.JobStatusQueued,
		CreatedAt:  time.Now().UTC(),
		Seq:        m.nextSeq,
	}
	m.jobs[job.ID] = job
	m.pending = append(m.pending, job.ID)

	started := m.startNextLocked()
	accepted := job.Clone()
	snapshot := m.snapshotLocked()
	m.updateGaugesLocked()
	m.mu.Unlock()

	m.collector.JobSubmitted()
	m.log.Info().
		Str("job_id", accepted.ID).
		Str("source", accepted.SourcePath).
		Bool("started", started != nil).
		Msg("job submitted")

	m.publish(Event{Type: EventTypeJobQueued, JobID: accepted.ID})
	m.publish(Event{Type: EventTypeQueueChanged, Queue: snapshot})
	if started != nil {
		started.start()
	}
	return accepted, nil
}

// Cancel requests cancellation of a job by id. Pending jobs are removed
// without ever starting; the active job is signalled to stop at its next
// checkpoint. Terminal and unknown ids yield soft sentinel errors.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return ErrUnknownJob
	}

	if id == m.activeID {
		cancel := m.cancelActive
		m.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		m.log.Info().Str("job_id", id).Msg("cancellation requested for active job")
		return nil
	}

	if job.Status.IsTerminal() {
		m.mu.Unlock()
		return ErrJobFinished
	}

	m.removePendingLocked(id)
	job.Status = domain.JobStatusCancelled
	snapshot := m.snapshotLocked()
	m.updateGaugesLocked()
	m.mu.Unlock()

	m.collector.JobCancelled()
	m.log.Info().Str("job_id", id).Msg("pending job cancelled")
	m.publish(Event{Type: EventTypeJobCancelled, JobID: id})
	m.publish(Event{Type: EventTypeQueueChanged, Queue: snapshot})
	return nil
}

// Subscribe registers an observer for every subsequent event.
// Events published before subscription are not replayed.
func (m *Manager) Subscribe(obs Observer) {
	if obs == nil {
		return
	}
	m.obsMu.Lock()
	m.observers = append(m.observers, obs)
	m.obsMu.Unlock()
}

// Unsubscribe removes a previously registered observer. Observers of
// non-comparable types (such as ObserverFunc) cannot be matched and are
// left in place.
func (m *Manager) Unsubscribe(obs Observer) {
	if obs == nil || !reflect.TypeOf(obs).Comparable() {
		return
	}
	m.obsMu.Lock()
	for i, existing := range m.observers {
		if reflect.TypeOf(existing) == reflect.TypeOf(obs) && existing == obs {
			m.observers = append(m.observers[:i], m.observers[i+1:]...)
			break
		}
	}
	m.obsMu.Unlock()
}

// Snapshot returns a point-in-time copy of the active job (if any)
// followed by the pending jobs in FIFO order.
func (m *Manager) Snapshot() []domain.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Job returns a copy of the job with the given id.
func (m *Manager) Job(id string) (domain.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	return job.Clone(), true
}

// Events returns buffered events with sequence greater than sinceSeq,
// for polling consumers that missed the live stream.
func (m *Manager) Events(sinceSeq int64) []Event {
	return m.bus.Since(sinceSeq)
}

// Shutdown stops accepting work, cancels the active job, and waits for
// the worker to acknowledge, bounded by the context deadline.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	cancel := m.cancelActive
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startNextLocked promotes the head pending job to active and builds its
// worker. The caller publishes events and invokes start() after unlocking.
// Requires m.mu held.
func (m *Manager) startNextLocked() *worker {
	if m.activeID != "" || len(m.pending) == 0 || m.closed {
		return nil
	}

	id := m.pending[0]
	m.pending = m.pending[1:]
	job := m.jobs[id]

	ctx, cancel := context.WithCancel(context.Background())
	m.activeID = id
	m.cancelActive = cancel
	m.wg.Add(1)

	return &worker{
		manager: m,
		ctx:     ctx,
		jobID:   id,
		source:  job.SourcePath,
		outDir:  job.OutputDir,
		opts: transcribe.Options{
			ModelPath: job.ModelPath,
			Language:  job.Language,
		},
		engine: m.engine,
		writer: m.writer,
		log:    m.log.With().Str("job_id", id).Logger(),
	}
}

// removePendingLocked deletes one id from the pending slice.
func (m *Manager) removePendingLocked(id string) {
	for i, pendingID := range m.pending {
		if pendingID == id {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return
		}
	}
}

// snapshotLocked copies the active job plus pending jobs in FIFO order.
func (m *Manager) snapshotLocked() []domain.Job {
	out := make([]domain.Job, 0, len(m.pending)+1)
	if m.activeID != "" {
		out = append(out, m.jobs[m.activeID].Clone())
	}
	for _, id := range m.pending {
		out = append(out, m.jobs[id].Clone())
	}
	return out
}

// updateGaugesLocked refreshes queue depth metrics.
func (m *Manager) updateGaugesLocked() {
	active := 0
	if m.activeID != "" {
		active = 1
	}
	m.collector.SetQueueState(len(m.pending), active)
}

// publish stores the event in the history buffer and fans it out to all
// observers synchronously.
func (m *Manager) publish(event Event) {
	published := m.bus.Publish(event)

	m.obsMu.RLock()
	defer m.obsMu.RUnlock()
	for _, obs := range m.observers {
		obs.HandleEvent(published)
	}
}

// setStatus transitions the job and returns a copy of it.
func (m *Manager) setStatus(id string, status domain.JobStatus) {
	m.mu.Lock()
	if job, ok := m.jobs[id]; ok {
		job.Status = status
	}
	m.mu.Unlock()
}

// appendSegment assigns the next index, appends, and publishes the event.
// Only the owning worker calls this, so indices are gap-free per job.
func (m *Manager) appendSegment(id string, seg domain.Segment) {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	seg.Index = len(job.Segments)
	job.Segments = append(job.Segments, seg)
	m.mu.Unlock()

	m.collector.SegmentAppended()
	m.publish(Event{Type: EventTypeJobSegment, JobID: id, Segment: &seg})
}

// segmentsSnapshot returns a copy of a job's segments for the write step.
func (m *Manager) segmentsSnapshot(id string) []domain.Segment {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	return append([]domain.Segment(nil), job.Segments...)
}

// finish records a terminal state and advances the queue. The next worker
// is promoted before the terminal event becomes observable, so a
// subscriber reacting to it already sees the successor active; its own
// events start only after the terminal event has been delivered.
func (m *Manager) finish(id string, status domain.JobStatus, failure *domain.Failure, outputPath string) {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	job.Status = status
	job.Failure = failure
	job.OutputPath = outputPath

	if m.activeID == id {
		m.activeID = ""
		m.cancelActive = nil
	}
	next := m.startNextLocked()
	snapshot := m.snapshotLocked()
	m.updateGaugesLocked()
	m.mu.Unlock()

	switch status {
	case domain.JobStatusCompleted:
		m.publish(Event{Type: EventTypeJobCompleted, JobID: id, OutputPath: outputPath})
	case domain.JobStatusFailed:
		m.publish(Event{Type: EventTypeJobFailed, JobID: id, ErrorKind: failure.Kind, Message: failure.Message})
	case domain.JobStatusCancelled:
		m.publish(Event{Type: EventTypeJobCancelled, JobID: id})
	}
	m.publish(Event{Type: EventTypeQueueChanged, Queue: snapshot})

	if next != nil {
		next.start()
	}
}
