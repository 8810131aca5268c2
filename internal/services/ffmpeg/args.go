package ffmpeg

import (
	"fmt"
	"strconv"

	"ffui/internal/queue"
)

// EncodeRequest describes one encoder run. For resumed video jobs,
// StartOffsetSeconds seeks past the media already covered by earlier
// segments and OutputPath points at the next segment file in the tmp dir.
type EncodeRequest struct {
	InputPath          string
	OutputPath         string
	JobType            queue.JobType
	StartOffsetSeconds float64
	VideoCodec         string
	Preset             string
	CRF                int
}

// ScreenshotRequest describes a single-frame preview grab.
type ScreenshotRequest struct {
	InputPath  string
	OutputPath string
	AtSeconds  float64
	MaxWidth   int
}

// EncodeArgs returns the ffmpeg argument list for the request, exposed so the
// daemon can surface the planned command line on job records.
func EncodeArgs(req EncodeRequest) []string {
	args := []string{"-y", "-hide_banner", "-nostdin", "-loglevel", "warning", "-progress", "pipe:1", "-nostats"}
	if req.StartOffsetSeconds > 0 {
		args = append(args, "-ss", formatSeconds(req.StartOffsetSeconds))
	}
	args = append(args, "-i", req.InputPath)

	switch req.JobType {
	case queue.JobTypeAudio:
		args = append(args, "-vn", "-c:a", "libopus", "-b:a", "128k")
	case queue.JobTypeImage:
		args = append(args, "-frames:v", "1", "-q:v", strconv.Itoa(imageQuality(req.CRF)))
	default:
		args = append(args, "-map", "0:v:0", "-map", "0:a?", "-map_metadata", "0")
		codec := req.VideoCodec
		if codec == "" {
			codec = "libsvtav1"
		}
		args = append(args, "-c:v", codec)
		if req.Preset != "" {
			args = append(args, "-preset", req.Preset)
		}
		args = append(args, "-crf", strconv.Itoa(req.CRF), "-c:a", "copy")
	}

	return append(args, req.OutputPath)
}

func buildScreenshotArgs(req ScreenshotRequest) []string {
	args := []string{"-y", "-hide_banner", "-nostdin", "-loglevel", "error"}
	if req.AtSeconds > 0 {
		args = append(args, "-ss", formatSeconds(req.AtSeconds))
	}
	args = append(args, "-i", req.InputPath, "-frames:v", "1")
	if req.MaxWidth > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=min(%d\\,iw):-2", req.MaxWidth))
	}
	return append(args, req.OutputPath)
}

func buildConcatArgs(listPath, outputPath string) []string {
	return []string{"-y", "-hide_banner", "-nostdin", "-loglevel", "error", "-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", outputPath}
}

// imageQuality maps the configured CRF onto ffmpeg's 2-31 q scale.
func imageQuality(crf int) int {
	q := crf / 2
	if q < 2 {
		q = 2
	}
	if q > 31 {
		q = 31
	}
	return q
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}
