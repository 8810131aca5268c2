package queue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status represents the lifecycle of a transcode job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusPaused,
	StatusCompleted,
	StatusFailed,
	StatusSkipped,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
	StatusSkipped:   {},
	StatusCancelled: {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status. Older snapshots and
// scripts used "waiting" for the queued state; that alias is still accepted.
func ParseStatus(value string) (Status, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "waiting" {
		normalized = string(StatusQueued)
	}
	if normalized == "" {
		return "", false
	}
	status := Status(normalized)
	_, ok := statusSet[status]
	return status, ok
}

// IsTerminal reports whether the status is a final state that the scheduler
// will never leave on its own. Restart is the only way out of a terminal state.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// IsActive reports whether an encoder is (or should be) running for the status.
func (s Status) IsActive() bool {
	return s == StatusProcessing
}

// IsSchedulable reports whether the job occupies a slot in the scheduling queue.
func (s Status) IsSchedulable() bool {
	return s == StatusQueued || s == StatusPaused
}

// UnmarshalJSON accepts any known status value, including the legacy
// "waiting" alias for queued.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, ok := ParseStatus(raw)
	if !ok {
		return fmt.Errorf("unknown job status %q", raw)
	}
	*s = parsed
	return nil
}

// JobType categorizes the input media handed to the encoder.
type JobType string

const (
	JobTypeVideo JobType = "video"
	JobTypeImage JobType = "image"
	JobTypeAudio JobType = "audio"
)

// ParseJobType converts a string into a known JobType.
func ParseJobType(value string) (JobType, bool) {
	normalized := JobType(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case JobTypeVideo, JobTypeImage, JobTypeAudio:
		return normalized, true
	default:
		return "", false
	}
}

// JobSource records how a job entered the queue.
type JobSource string

const (
	// SourceManual marks jobs submitted explicitly via the CLI or console.
	SourceManual JobSource = "manual"
	// SourceScan marks jobs discovered by the directory scanner.
	SourceScan JobSource = "scan"
)

// ParseJobSource converts a string into a known JobSource.
func ParseJobSource(value string) (JobSource, bool) {
	normalized := JobSource(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case SourceManual, SourceScan:
		return normalized, true
	default:
		return "", false
	}
}
