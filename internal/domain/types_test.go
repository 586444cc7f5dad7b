package domain

import (
	"testing"
	"time"
)

func TestJobStatusIsTerminal(t *testing.T) {
	terminal := []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCancelled}
	for _, status := range terminal {
		if !status.IsTerminal() {
			t.Errorf("expected %s to be terminal", status)
		}
	}

	live := []JobStatus{JobStatusQueued, JobStatusLoading, JobStatusTranscribing}
	for _, status := range live {
		if status.IsTerminal() {
			t.Errorf("expected %s to be non-terminal", status)
		}
	}
}

func TestJobCloneIsDeep(t *testing.T) {
	job := Job{
		ID:     "j1",
		Status: JobStatusFailed,
		Segments: []Segment{
			{Index: 0, Start: 0, End: time.Second, Text: "original"},
		},
		Failure: &Failure{Kind: ErrorKindUnknown, Message: "boom"},
	}

	clone := job.Clone()
	clone.Segments[0].Text = "mutated"
	clone.Failure.Message = "changed"

	if job.Segments[0].Text != "original" {
		t.Fatal("clone shares segment backing array")
	}
	if job.Failure.Message != "boom" {
		t.Fatal("clone shares failure pointer")
	}
}

func TestJobCloneHandlesNilFields(t *testing.T) {
	clone := Job{ID: "j2", Status: JobStatusQueued}.Clone()
	if clone.Segments != nil || clone.Failure != nil {
		t.Fatalf("unexpected non-nil fields: %+v", clone)
	}
}
