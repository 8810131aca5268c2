package ffmpeg

import (
	"strconv"
	"strings"
)

// Progress is one snapshot from ffmpeg's -progress stream. OutTimeSeconds is
// media time within the current run, so a resumed segment starts again at
// zero; the worker adds its resume offset before computing overall percent.
type Progress struct {
	Frame          int64
	FPS            float64
	Bitrate        string
	TotalSizeBytes int64
	OutTimeSeconds float64
	Speed          float64
	Done           bool
}

// progressParser accumulates the key=value lines ffmpeg writes to
// -progress pipe:1. Each block ends with a progress= line, at which point a
// complete snapshot is emitted.
type progressParser struct {
	current Progress
}

// Feed consumes one line. The returned bool reports whether a full snapshot
// is ready.
func (p *progressParser) Feed(line string) (Progress, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return Progress{}, false
	}
	value = strings.TrimSpace(value)
	switch key {
	case "frame":
		if frame, err := strconv.ParseInt(value, 10, 64); err == nil {
			p.current.Frame = frame
		}
	case "fps":
		if fps, err := strconv.ParseFloat(value, 64); err == nil {
			p.current.FPS = fps
		}
	case "bitrate":
		if value != "" && value != "N/A" {
			p.current.Bitrate = value
		}
	case "total_size":
		if size, err := strconv.ParseInt(value, 10, 64); err == nil {
			p.current.TotalSizeBytes = size
		}
	case "out_time_us", "out_time_ms":
		// out_time_ms is microseconds despite the name; ffmpeg keeps the
		// key for compatibility and emits both with identical values.
		if micros, err := strconv.ParseInt(value, 10, 64); err == nil {
			p.current.OutTimeSeconds = float64(micros) / 1e6
		}
	case "speed":
		trimmed := strings.TrimSuffix(value, "x")
		if trimmed != "" && trimmed != "N/A" {
			if speed, err := strconv.ParseFloat(trimmed, 64); err == nil {
				p.current.Speed = speed
			}
		}
	case "progress":
		snapshot := p.current
		snapshot.Done = value == "end"
		return snapshot, true
	}
	return Progress{}, false
}
