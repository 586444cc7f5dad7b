package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/PoyBoy96/Whisper-Watch/internal/domain"
	"github.com/PoyBoy96/Whisper-Watch/internal/subtitle"
	"github.com/PoyBoy96/Whisper-Watch/internal/transcribe"
)

// worker drives exactly one job from queued to a terminal state. It knows
// nothing about the queue; all shared state flows through the manager.
type worker struct {
	manager *Manager
	ctx     context.Context
	jobID   string
	source  string
	outDir  string
	opts    transcribe.Options
	engine  transcribe.Engine
	writer  subtitle.Writer
	log     zerolog.Logger
}

// start launches the worker on its own goroutine.
func (w *worker) start() {
	go w.run()
}

// run executes the loading, transcribing, and export steps, converting
// every outcome into exactly one terminal state. Failures never escape.
func (w *worker) run() {
	defer w.manager.wg.Done()
	startedAt := time.Now()

	w.manager.setStatus(w.jobID, domain.JobStatusLoading)
	w.manager.publish(Event{Type: EventTypeJobLoading, JobID: w.jobID})
	w.log.Debug().Msg("preparing engine model")

	err := w.engine.PrepareModel(w.ctx, w.opts, func(p transcribe.LoadProgress) {
		w.manager.publish(Event{
			Type:     EventTypeJobLoading,
			JobID:    w.jobID,
			Progress: p.Fraction,
			ETA:      p.ETA,
			Message:  p.Detail,
		})
	})
	if err != nil {
		if cancelled(w.ctx, err) {
			w.finishCancelled()
			return
		}
		w.finishFailed(startedAt, classify(err, domain.ErrorKindEngineUnavailable))
		return
	}
	if w.ctx.Err() != nil {
		w.finishCancelled()
		return
	}

	w.manager.setStatus(w.jobID, domain.JobStatusTranscribing)
	w.manager.publish(Event{Type: EventTypeJobTranscribing, JobID: w.jobID})
	w.log.Debug().Msg("transcription started")

	err = w.engine.Transcribe(w.ctx, w.source, w.opts, func(seg domain.Segment) error {
		w.manager.appendSegment(w.jobID, seg)
		// Checkpoint: stop before the next segment once cancelled.
		return w.ctx.Err()
	})
	if err != nil {
		if cancelled(w.ctx, err) {
			w.finishCancelled()
			return
		}
		w.finishFailed(startedAt, classify(err, domain.ErrorKindUnknown))
		return
	}
	if w.ctx.Err() != nil {
		w.finishCancelled()
		return
	}

	segments := w.manager.segmentsSnapshot(w.jobID)
	outputPath, err := w.writer.Write(segments, w.source, w.outDir)
	if err != nil {
		w.finishFailed(startedAt, domain.Failure{
			Kind:    domain.ErrorKindOutputWriteFailed,
			Message: err.Error(),
		})
		return
	}

	w.manager.collector.JobCompleted(time.Since(startedAt))
	w.log.Info().Str("output", outputPath).Int("segments", len(segments)).Msg("job completed")
	w.manager.finish(w.jobID, domain.JobStatusCompleted, nil, outputPath)
}

// finishFailed records a failed terminal state. Segments appended before
// the failure stay on the job.
func (w *worker) finishFailed(startedAt time.Time, failure domain.Failure) {
	w.manager.collector.JobFailed(string(failure.Kind), time.Since(startedAt))
	w.log.Warn().
		Str("kind", string(failure.Kind)).
		Str("reason", failure.Message).
		Msg("job failed")
	w.manager.finish(w.jobID, domain.JobStatusFailed, &failure, "")
}

// finishCancelled acknowledges a cooperative cancellation.
func (w *worker) finishCancelled() {
	w.manager.collector.JobCancelled()
	w.log.Info().Msg("job cancelled")
	w.manager.finish(w.jobID, domain.JobStatusCancelled, nil, "")
}

// cancelled reports whether the error stems from job cancellation.
func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}

// classify maps engine errors onto the failure taxonomy using the
// pipeline stage when available, falling back to the given default.
func classify(err error, fallback domain.ErrorKind) domain.Failure {
	var pipelineErr *transcribe.PipelineError
	if errors.As(err, &pipelineErr) {
		switch pipelineErr.Stage {
		case transcribe.StageLoading:
			return domain.Failure{Kind: domain.ErrorKindEngineUnavailable, Message: pipelineErr.Error()}
		case transcribe.StageDecode:
			return domain.Failure{Kind: domain.ErrorKindSourceUnreadable, Message: pipelineErr.Error()}
		case transcribe.StageExport:
			return domain.Failure{Kind: domain.ErrorKindOutputWriteFailed, Message: pipelineErr.Error()}
		default:
			return domain.Failure{Kind: domain.ErrorKindUnknown, Message: pipelineErr.Error()}
		}
	}

	return domain.Failure{Kind: fallback, Message: err.Error()}
}
