package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/PoyBoy96/Whisper-Watch/internal/domain"
	"github.com/PoyBoy96/Whisper-Watch/internal/jobs"
)

type fakeSubmitter struct {
	mu    sync.Mutex
	calls []jobs.SubmitRequest
}

func (s *fakeSubmitter) Submit(req jobs.SubmitRequest) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	return domain.Job{ID: "job-1", SourcePath: req.SourcePath}, nil
}

func (s *fakeSubmitter) sources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.calls))
	for _, call := range s.calls {
		out = append(out, call.SourcePath)
	}
	return out
}

func waitForSources(t *testing.T, submitter *fakeSubmitter, want int) []string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if sources := submitter.sources(); len(sources) >= want {
			return sources
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d submissions, got %v", want, submitter.sources())
	return nil
}

func TestWatcherSubmitsNewMediaFiles(t *testing.T) {
	dir := t.TempDir()
	submitter := &fakeSubmitter{}

	watcher := New(dir, submitter, jobs.SubmitRequest{OutputDir: "/exports", Language: "en"}, zerolog.Nop())
	watcher.SetSettleDelay(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = watcher.Run(ctx)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)

	mediaPath := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(mediaPath, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	sources := waitForSources(t, submitter, 1)
	if sources[0] != mediaPath {
		t.Fatalf("unexpected source %q", sources[0])
	}

	submitter.mu.Lock()
	req := submitter.calls[0]
	submitter.mu.Unlock()
	if req.OutputDir != "/exports" || req.Language != "en" {
		t.Fatalf("submission defaults not applied: %+v", req)
	}

	cancel()
	<-done
}

func TestWatcherIgnoresNonMediaFiles(t *testing.T) {
	dir := t.TempDir()
	submitter := &fakeSubmitter{}

	watcher := New(dir, submitter, jobs.SubmitRequest{}, zerolog.Nop())
	watcher.SetSettleDelay(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = watcher.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "voice.wav"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	sources := waitForSources(t, submitter, 1)
	for _, source := range sources {
		if filepath.Ext(source) == ".txt" {
			t.Fatalf("non-media file submitted: %s", source)
		}
	}
}

func TestWatcherSubmitsEachFileOnce(t *testing.T) {
	dir := t.TempDir()
	submitter := &fakeSubmitter{}

	watcher := New(dir, submitter, jobs.SubmitRequest{}, zerolog.Nop())
	watcher.SetSettleDelay(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = watcher.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)

	mediaPath := filepath.Join(dir, "clip.mkv")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(mediaPath, []byte("more data"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	waitForSources(t, submitter, 1)
	time.Sleep(100 * time.Millisecond)

	if sources := submitter.sources(); len(sources) != 1 {
		t.Fatalf("expected a single submission, got %v", sources)
	}
}

func TestWatcherMissingDirectory(t *testing.T) {
	watcher := New(filepath.Join(t.TempDir(), "nope"), &fakeSubmitter{}, jobs.SubmitRequest{}, zerolog.Nop())

	if err := watcher.Run(context.Background()); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestIsMediaFile(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"talk.mp4", true},
		{"TALK.MP4", true},
		{"/abs/path/audio.flac", true},
		{"clip.webm", true},
		{"notes.txt", false},
		{"archive.zip", false},
		{"noext", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsMediaFile(tc.path); got != tc.want {
			t.Errorf("IsMediaFile(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}
