package domain

import "time"

// JobStatus tracks the lifecycle stage of a single transcription job.
type JobStatus string

const (
	JobStatusQueued       JobStatus = "queued"
	JobStatusLoading      JobStatus = "loading"
	JobStatusTranscribing JobStatus = "transcribing"
	JobStatusCompleted    JobStatus = "completed"
	JobStatusFailed       JobStatus = "failed"
	JobStatusCancelled    JobStatus = "cancelled"
)

// IsTerminal reports whether no further transitions can occur.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// ErrorKind classifies terminal job failures for subscribers.
type ErrorKind string

const (
	ErrorKindEngineUnavailable ErrorKind = "engine_unavailable"
	ErrorKindSourceUnreadable  ErrorKind = "source_unreadable"
	ErrorKindOutputWriteFailed ErrorKind = "output_write_failed"
	ErrorKindUnknown           ErrorKind = "unknown"
)

// Failure describes why a job ended in failed status.
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Segment is one timed span of transcribed text within a job.
// Indices are zero-based and gap-free; spans never overlap.
type Segment struct {
	Index int           `json:"index"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`
}

// Job stores one transcription request and its evolving result.
// SourcePath, OutputDir, ModelPath, and Language are fixed at submission.
// Segments is append-only and grows only while the job is transcribing.
type Job struct {
	ID         string    `json:"id"`
	SourcePath string    `json:"sourcePath"`
	OutputDir  string    `json:"outputDir"`
	ModelPath  string    `json:"modelPath,omitempty"`
	Language   string    `json:"language,omitempty"`
	Status     JobStatus `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	Seq        int64     `json:"seq"`
	Segments   []Segment `json:"segments,omitempty"`
	Failure    *Failure  `json:"failure,omitempty"`
	OutputPath string    `json:"outputPath,omitempty"`
}

// Clone returns a deep copy safe to hand to subscribers.
func (j Job) Clone() Job {
	out := j
	if j.Segments != nil {
		out.Segments = append([]Segment(nil), j.Segments...)
	}
	if j.Failure != nil {
		failure := *j.Failure
		out.Failure = &failure
	}
	return out
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	Engine    string `json:"engine"`
	ModelPath string `json:"modelPath"`
	OutputDir string `json:"outputDir"`
	Language  string `json:"language"`
}
