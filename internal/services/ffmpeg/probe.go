package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"ffui/internal/queue"
)

// ProbeResult represents the parsed output from an ffprobe inspection.
type ProbeResult struct {
	Streams []ProbeStream `json:"streams"`
	Format  ProbeFormat   `json:"format"`
}

// ProbeStream describes a single stream in the media container.
type ProbeStream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Duration     string `json:"duration"`
	BitRate      string `json:"bit_rate"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	SampleRate   string `json:"sample_rate"`
	Channels     int    `json:"channels"`
}

// ProbeFormat captures container-level metadata extracted by ffprobe.
type ProbeFormat struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON
// response.
func (c *CLI) Inspect(ctx context.Context, path string) (ProbeResult, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return ProbeResult{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := commandContext(ctx, c.ffprobeBinary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}

	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// DurationSeconds returns the container duration in seconds, or 0 when
// unavailable.
func (r ProbeResult) DurationSeconds() float64 {
	d := parseProbeFloat(r.Format.Duration)
	if math.IsNaN(d) || d < 0 {
		return 0
	}
	return d
}

// SizeBytes returns the reported container size in bytes, or 0 when
// unavailable.
func (r ProbeResult) SizeBytes() int64 {
	size := parseProbeFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

// VideoStream returns the first video stream, if any.
func (r ProbeResult) VideoStream() (ProbeStream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
	}
	return ProbeStream{}, false
}

// AudioStream returns the first audio stream, if any.
func (r ProbeResult) AudioStream() (ProbeStream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			return stream, true
		}
	}
	return ProbeStream{}, false
}

// MediaInfo converts the probe result into the job metadata the queue
// persists and the console displays.
func (r ProbeResult) MediaInfo() *queue.MediaInfo {
	info := &queue.MediaInfo{}
	if d := r.DurationSeconds(); d > 0 {
		info.DurationSeconds = &d
	}
	if size := r.SizeBytes(); size > 0 {
		mb := float64(size) / (1024 * 1024)
		info.SizeMB = &mb
	}
	if video, ok := r.VideoStream(); ok {
		info.VideoCodec = video.CodecName
		if video.Width > 0 {
			width := video.Width
			info.Width = &width
		}
		if video.Height > 0 {
			height := video.Height
			info.Height = &height
		}
		if rate := parseFrameRate(video.AvgFrameRate); rate > 0 {
			info.FrameRate = &rate
		}
	}
	if audio, ok := r.AudioStream(); ok {
		info.AudioCodec = audio.CodecName
	}
	return info
}

// parseFrameRate handles ffprobe's fractional rates like "30000/1001".
func parseFrameRate(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" || value == "0/0" {
		return 0
	}
	num, den, ok := strings.Cut(value, "/")
	if !ok {
		rate := parseProbeFloat(value)
		if math.IsNaN(rate) || rate < 0 {
			return 0
		}
		return rate
	}
	n := parseProbeFloat(num)
	d := parseProbeFloat(den)
	if math.IsNaN(n) || math.IsNaN(d) || d == 0 {
		return 0
	}
	return n / d
}

func parseProbeFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
