package transcribe

import (
	"context"
	"fmt"
	"time"

	"github.com/PoyBoy96/Whisper-Watch/internal/domain"
)

// Options selects the model and language for one engine invocation.
type Options struct {
	ModelPath string
	Language  string
}

// LoadProgress reports model-readiness progress during the loading phase.
// Fraction is in [0,1]; ETA is zero when no estimate is available.
type LoadProgress struct {
	Fraction float64
	ETA      time.Duration
	Detail   string
}

// Engine turns a media file into a stream of timed text segments.
//
// PrepareModel performs the readiness step and may emit progress updates.
// Transcribe produces segments in order through onSegment; a non-nil error
// returned by onSegment stops consumption and is returned unchanged, which
// is the engine-side cancellation checkpoint.
type Engine interface {
	PrepareModel(ctx context.Context, opts Options, onProgress func(LoadProgress)) error
	Transcribe(ctx context.Context, sourcePath string, opts Options, onSegment func(domain.Segment) error) error
}

// Pipeline stages used to classify engine failures.
const (
	StageLoading    = "loading"
	StageDecode     = "decode"
	StageTranscribe = "transcribe"
	StageExport     = "export"
)

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// PipelineError is a stage-aware error with optional command context.
type PipelineError struct {
	Stage      string     `json:"stage"`
	Message    string     `json:"message"`
	CommandLog CommandLog `json:"commandLog"`
	Err        error      `json:"-"`
}

// Error formats pipeline failures for logs and events.
func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}

	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d)",
		e.Stage,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// emitProgress forwards loading progress when callback is configured.
func emitProgress(cb func(LoadProgress), p LoadProgress) {
	if cb != nil {
		cb(p)
	}
}
