package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ffui/internal/queue"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatSizeMB(mb float64) string {
	if mb <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(mb * 1000 * 1000))
}

func formatOutputSize(job *queue.Job) string {
	if job.OutputSizeMB == nil {
		return "-"
	}
	return formatSizeMB(*job.OutputSizeMB)
}

func formatProgress(job *queue.Job) string {
	switch job.Status {
	case queue.StatusCompleted:
		return "100%"
	case queue.StatusQueued:
		return "-"
	}
	return fmt.Sprintf("%.1f%%", job.Progress)
}

// formatClockMs renders accumulated milliseconds as H:MM:SS (or M:SS under an
// hour).
func formatClockMs(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

func formatElapsed(job *queue.Job) string {
	if job.ElapsedMs == nil {
		return "-"
	}
	return formatClockMs(*job.ElapsedMs)
}

func formatDurationSeconds(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return formatClockMs(int64(seconds * 1000))
}

func formatTimestampMs(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}

// formatRelativeMs renders a timestamp with a human-friendly distance, e.g.
// "2026-08-23 10:14:02 (5 minutes ago)".
func formatRelativeMs(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	t := time.UnixMilli(ms)
	return fmt.Sprintf("%s (%s)", t.Local().Format("2006-01-02 15:04:05"), humanize.Time(t))
}

// shortJobID truncates a uuid to its first group for table display.
func shortJobID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
