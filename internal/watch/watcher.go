// Package watch submits media files appearing in a drop directory.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/PoyBoy96/Whisper-Watch/internal/domain"
	"github.com/PoyBoy96/Whisper-Watch/internal/jobs"
)

// mediaExtensions mirrors the file types the transcription engines accept.
var mediaExtensions = map[string]struct{}{
	".mp4": {}, ".mov": {}, ".mkv": {}, ".avi": {}, ".webm": {},
	".mp3": {}, ".wav": {}, ".m4a": {}, ".flac": {}, ".aac": {}, ".ogg": {},
}

// Submitter accepts transcription submissions; satisfied by jobs.Manager.
type Submitter interface {
	Submit(jobs.SubmitRequest) (domain.Job, error)
}

// Watcher submits every media file created in a directory to the queue.
// Files are submitted after a settle delay so partially copied files are
// picked up once writing has finished.
type Watcher struct {
	dir         string
	submitter   Submitter
	request     jobs.SubmitRequest
	settleDelay time.Duration
	log         zerolog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// New builds a watcher for dir; request supplies the submission defaults
// (output dir, model, language) copied into each job.
func New(dir string, submitter Submitter, request jobs.SubmitRequest, log zerolog.Logger) *Watcher {
	return &Watcher{
		dir:         dir,
		submitter:   submitter,
		request:     request,
		settleDelay: 2 * time.Second,
		log:         log.With().Str("component", "watch").Logger(),
		seen:        make(map[string]struct{}),
	}
}

// Run blocks watching the directory until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.log.Info().Str("dir", w.dir).Msg("watching for media files")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.maybeSubmit(ctx, event.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

// maybeSubmit schedules one submission per media file path.
func (w *Watcher) maybeSubmit(ctx context.Context, path string) {
	if !IsMediaFile(path) {
		return
	}

	w.mu.Lock()
	if _, dup := w.seen[path]; dup {
		w.mu.Unlock()
		return
	}
	w.seen[path] = struct{}{}
	w.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.settleDelay):
		}

		req := w.request
		req.SourcePath = path
		job, err := w.submitter.Submit(req)
		if err != nil {
			w.log.Warn().Err(err).Str("path", path).Msg("submit failed")
			return
		}
		w.log.Info().Str("job_id", job.ID).Str("path", path).Msg("file submitted")
	}()
}

// IsMediaFile reports whether the path has a supported media extension.
func IsMediaFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := mediaExtensions[ext]
	return ok
}

// SetSettleDelay overrides the quiescence delay, primarily for tests.
func (w *Watcher) SetSettleDelay(d time.Duration) {
	w.settleDelay = d
}
