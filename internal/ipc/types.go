package ipc

import (
	"ffui/internal/engine"
	"ffui/internal/queue"
)

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse reports daemon run state and queue counts.
type StatusResponse struct {
	Running          bool           `json:"running"`
	PID              int            `json:"pid"`
	Version          string         `json:"version"`
	StartedAtMs      int64          `json:"startedAtMs"`
	QueueStats       map[string]int `json:"queueStats"`
	ActiveIDs        []string       `json:"activeIds,omitempty"`
	QueueDepth       int            `json:"queueDepth"`
	SnapshotRevision uint64         `json:"snapshotRevision"`
	QueueDBPath      string         `json:"queueDbPath"`
	SocketPath       string         `json:"socketPath"`
	LockPath         string         `json:"lockPath"`
	LogPath          string         `json:"logPath"`
}

// QueueStateRequest fetches a full queue snapshot.
type QueueStateRequest struct{}

// QueueStateResponse carries the snapshot.
type QueueStateResponse struct {
	State queue.State `json:"state"`
}

// QueueEventsRequest long-polls for queue changes after a cursor.
type QueueEventsRequest struct {
	AfterSnapshotRevision uint64 `json:"afterSnapshotRevision"`
	AfterDeltaRevision    uint64 `json:"afterDeltaRevision"`
	WaitMillis            int64  `json:"waitMillis"`
}

// QueueEventsResponse carries either a snapshot to re-base on or deltas that
// layer onto the caller's current snapshot. Snapshot and Deltas are mutually
// exclusive; both empty means the wait window closed with nothing new.
type QueueEventsResponse struct {
	Snapshot    *queue.State  `json:"snapshot,omitempty"`
	DeltaCursor uint64        `json:"deltaCursor,omitempty"`
	Deltas      []queue.Delta `json:"deltas,omitempty"`
}

// SubmitRequest enqueues new input paths as manual jobs.
type SubmitRequest struct {
	Paths  []string `json:"paths"`
	Preset string   `json:"preset,omitempty"`
}

// SubmitResponse lists accepted jobs and skipped paths with reasons.
type SubmitResponse struct {
	Accepted []*queue.Job         `json:"accepted"`
	Skipped  []engine.SkippedPath `json:"skipped,omitempty"`
}

// JobRequest addresses a single job.
type JobRequest struct {
	ID string `json:"id"`
}

// AckResponse reports whether a control operation took effect.
type AckResponse struct {
	OK bool `json:"ok"`
}

// BulkRequest addresses several jobs at once.
type BulkRequest struct {
	IDs []string `json:"ids"`
}

// BulkResponse reports per-id outcomes in request order.
type BulkResponse struct {
	OK []bool `json:"ok"`
}

// RemoveRequest deletes terminal jobs from the queue.
type RemoveRequest struct {
	IDs []string `json:"ids"`
}

// RemoveResponse lists removed ids and refused ids.
type RemoveResponse struct {
	Removed []string `json:"removed,omitempty"`
	Skipped []string `json:"skipped,omitempty"`
}

// ClearTerminalRequest removes every finished job.
type ClearTerminalRequest struct{}

// ClearTerminalResponse reports how many jobs were removed.
type ClearTerminalResponse struct {
	Removed int `json:"removed"`
}

// ReorderRequest rewrites the waiting-queue order. Ids missing from the
// current waiting set are ignored; waiting jobs missing from the list keep
// their relative order behind the listed ones.
type ReorderRequest struct {
	OrderedIDs []string `json:"orderedIds"`
}

// LogTailRequest reads daemon log lines from a byte offset. A negative
// offset returns the last Limit lines.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int64 `json:"waitMillis"`
}

// LogTailResponse carries log lines and the offset to resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines,omitempty"`
	Offset int64    `json:"offset"`
}

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse acknowledges that shutdown has begun.
type StopResponse struct {
	Stopping bool `json:"stopping"`
}
