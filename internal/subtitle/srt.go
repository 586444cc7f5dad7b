// Package subtitle serializes transcript segments into subtitle files.
package subtitle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PoyBoy96/Whisper-Watch/internal/domain"
)

// Writer persists a finished transcript next to other exports.
type Writer interface {
	Write(segments []domain.Segment, sourcePath, outputDir string) (string, error)
}

// SRTWriter writes SubRip (.srt) files named after the source media.
type SRTWriter struct {
	now func() time.Time
}

// NewSRTWriter creates the production SRT writer.
func NewSRTWriter() *SRTWriter {
	return &SRTWriter{now: time.Now}
}

// Write renders all segments as SRT cues and returns the output path.
// An existing file with the same name is never overwritten; a timestamp
// suffix is appended instead.
func (w *SRTWriter) Write(segments []domain.Segment, sourcePath, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	base := filepath.Base(sourcePath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if strings.TrimSpace(name) == "" {
		name = "transcript"
	}

	outPath := filepath.Join(outputDir, name+".srt")
	if _, err := os.Stat(outPath); err == nil {
		suffix := w.now().Format("20060102_150405")
		outPath = filepath.Join(outputDir, name+"_"+suffix+".srt")
	}

	var sb strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&sb, "%d\n", i+1)
		fmt.Fprintf(&sb, "%s --> %s\n", Timestamp(seg.Start), Timestamp(seg.End))
		fmt.Fprintf(&sb, "%s\n\n", seg.Text)
	}

	if err := os.WriteFile(outPath, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("write subtitle file: %w", err)
	}

	return outPath, nil
}

// Timestamp formats a duration as an SRT timestamp, HH:MM:SS,mmm.
func Timestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	millis := d.Milliseconds()
	hours := millis / 3_600_000
	millis -= hours * 3_600_000
	minutes := millis / 60_000
	millis -= minutes * 60_000
	seconds := millis / 1_000
	millis -= seconds * 1_000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}

// NewSRTWriterForTests creates a writer with a fixed clock.
func NewSRTWriterForTests(now func() time.Time) *SRTWriter {
	return &SRTWriter{now: now}
}
