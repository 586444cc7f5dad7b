package transcribe

import (
	"strconv"
	"strings"
	"time"

	"github.com/PoyBoy96/Whisper-Watch/internal/domain"
)

// parseTimedLine parses one whisper.cpp stdout line of the form
//
//	[00:00:00.000 --> 00:00:02.560]   Hello world.
//
// Lines that do not carry a timestamped span are ignored. The returned
// segment has no index; arrival order is the canonical index order.
func parseTimedLine(line string) (domain.Segment, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "[") {
		return domain.Segment{}, false
	}

	closing := strings.Index(trimmed, "]")
	if closing < 0 {
		return domain.Segment{}, false
	}

	span := trimmed[1:closing]
	parts := strings.Split(span, "-->")
	if len(parts) != 2 {
		return domain.Segment{}, false
	}

	start, ok := parseClock(parts[0])
	if !ok {
		return domain.Segment{}, false
	}
	end, ok := parseClock(parts[1])
	if !ok || end <= start {
		return domain.Segment{}, false
	}

	text := strings.TrimSpace(trimmed[closing+1:])
	if text == "" {
		return domain.Segment{}, false
	}

	return domain.Segment{Start: start, End: end, Text: text}, true
}

// parseClock parses "HH:MM:SS.mmm" (or comma millis) into a duration.
func parseClock(raw string) (time.Duration, bool) {
	clock := strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	fields := strings.Split(clock, ":")
	if len(fields) != 3 {
		return 0, false
	}

	hours, err := strconv.Atoi(fields[0])
	if err != nil || hours < 0 {
		return 0, false
	}
	minutes, err := strconv.Atoi(fields[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(fields[2], 64)
	if err != nil || seconds < 0 || seconds >= 60 {
		return 0, false
	}

	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
	return total, true
}
