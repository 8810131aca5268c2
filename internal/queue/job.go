package queue

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Job is a transcode job tracked by the daemon. The JSON field names match
// the queue snapshot wire format consumed by clients.
type Job struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	Type     JobType   `json:"type"`
	Source   JobSource `json:"source"`

	// QueueOrder is the job's position in the scheduling queue at snapshot
	// time. Lower values are scheduled earlier. Nil for jobs that no longer
	// occupy a queue slot (processing or terminal).
	QueueOrder *uint64 `json:"queueOrder,omitempty"`

	Status   Status  `json:"status"`
	Progress float64 `json:"progress"`

	InputPath  string `json:"inputPath,omitempty"`
	OutputPath string `json:"outputPath,omitempty"`

	OriginalSizeMB float64  `json:"originalSizeMB"`
	OutputSizeMB   *float64 `json:"outputSizeMB,omitempty"`

	// Preset names the encoder preset the job was submitted with; empty means
	// the configured default.
	Preset string `json:"presetId,omitempty"`

	// CreatedAtMs is the enqueue wall-clock time in milliseconds since epoch.
	CreatedAtMs int64 `json:"createdAtMs"`
	// CreatedTimeMs is the input file's best-effort creation (birth) time in
	// milliseconds since epoch; nil when the filesystem does not expose it.
	CreatedTimeMs *int64 `json:"createdTimeMs,omitempty"`
	// ModifiedTimeMs is the input file's modification time in milliseconds
	// since epoch.
	ModifiedTimeMs *int64 `json:"modifiedTimeMs,omitempty"`
	// StartTimeMs is set when the job first enters processing.
	StartTimeMs *int64 `json:"startTime,omitempty"`
	// EndTimeMs is set when the job reaches a terminal state.
	EndTimeMs *int64 `json:"endTime,omitempty"`
	// ProcessingStartedMs is the start of the current (or last) encoder run,
	// used to compute pure processing time excluding queue wait.
	ProcessingStartedMs *int64 `json:"processingStartedMs,omitempty"`
	// ElapsedMs accumulates wall-clock transcode time across runs.
	ElapsedMs *int64 `json:"elapsedMs,omitempty"`

	// EstimatedSeconds is the media duration estimate used for weighting
	// aggregate progress; nil when probing failed or has not happened yet.
	EstimatedSeconds *float64 `json:"estimatedSeconds,omitempty"`

	// Command is the planned or last-launched encoder command line,
	// quoted for copy and paste.
	Command string `json:"ffmpegCommand,omitempty"`

	Media *MediaInfo `json:"mediaInfo,omitempty"`

	PreviewPath string `json:"previewPath,omitempty"`
	// PreviewRevision bumps whenever the preview file is regenerated so
	// clients can bust stale image caches. Zero means no preview yet.
	PreviewRevision uint64 `json:"previewRevision,omitempty"`

	FailureReason string `json:"failureReason,omitempty"`
	SkipReason    string `json:"skipReason,omitempty"`

	// LogHead holds the first lines of encoder output, persisted so context
	// (tool version, input streams) survives a daemon restart.
	LogHead []string `json:"logHead,omitempty"`
	// LogTail is a pre-truncated tail of encoder output for quick inspection.
	LogTail string `json:"logTail,omitempty"`

	Warnings []JobWarning `json:"warnings,omitempty"`

	// BatchID groups jobs that entered the queue from the same scan batch.
	BatchID string `json:"batchId,omitempty"`

	// WaitMetadata captures resume state when a job is paused mid-encode or
	// restored after a crash.
	WaitMetadata *WaitMetadata `json:"waitMetadata,omitempty"`
}

// JobWarning is a structured warning that stays visible on the job card.
type JobWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MediaInfo is compact media metadata derived from probing the input.
type MediaInfo struct {
	DurationSeconds *float64 `json:"durationSeconds,omitempty"`
	Width           *int     `json:"width,omitempty"`
	Height          *int     `json:"height,omitempty"`
	FrameRate       *float64 `json:"frameRate,omitempty"`
	VideoCodec      string   `json:"videoCodec,omitempty"`
	AudioCodec      string   `json:"audioCodec,omitempty"`
	SizeMB          *float64 `json:"sizeMB,omitempty"`
}

// WaitMetadata captures everything needed to resume a paused encode from its
// last completed segment, and doubles as the carrier for live progress
// telemetry while a job is processing.
type WaitMetadata struct {
	// LastProgressPercent is the overall progress (0-100) at pause time.
	LastProgressPercent *float64 `json:"lastProgressPercent,omitempty"`
	// ProcessedWallMillis accumulates wall-clock encode time across all
	// completed segments before the current pause.
	ProcessedWallMillis *int64 `json:"processedWallMillis,omitempty"`
	// ProcessedSeconds is the media time already encoded when paused.
	ProcessedSeconds *float64 `json:"processedSeconds,omitempty"`
	TargetSeconds    *float64 `json:"targetSeconds,omitempty"`
	// ProgressEpoch increments when the encoder must rewind and re-encode
	// earlier media (overlap resume, crash recovery). Clients drop progress
	// telemetry stamped with an older epoch.
	ProgressEpoch *uint64 `json:"progressEpoch,omitempty"`
	// Best-effort last samples from the encoder progress stream; persisted
	// frequently so crash recovery does not depend on container duration
	// guesses.
	LastProgressOutTimeSeconds *float64 `json:"lastProgressOutTimeSeconds,omitempty"`
	LastProgressSpeed          *float64 `json:"lastProgressSpeed,omitempty"`
	LastProgressUpdatedAtMs    *int64   `json:"lastProgressUpdatedAtMs,omitempty"`
	LastProgressFrame          *uint64  `json:"lastProgressFrame,omitempty"`
	// TmpOutputPath is the in-flight partial output for the current segment.
	TmpOutputPath string `json:"tmpOutputPath,omitempty"`
	// Segments lists completed partial outputs in encode order; the finalize
	// step concatenates them. Single-segment pauses may only set
	// TmpOutputPath, so readers fall back to it when Segments is empty.
	Segments []string `json:"segments,omitempty"`
	// SegmentEndTargets records the media time (seconds) each completed
	// segment ends at, aligned with Segments.
	SegmentEndTargets []float64 `json:"segmentEndTargets,omitempty"`
}

// NewJob constructs a queued job for the given input path.
func NewJob(inputPath string, jobType JobType, source JobSource) *Job {
	return &Job{
		ID:          uuid.NewString(),
		Filename:    filepath.Base(inputPath),
		InputPath:   inputPath,
		Type:        jobType,
		Source:      source,
		Status:      StatusQueued,
		CreatedAtMs: time.Now().UnixMilli(),
	}
}

// Clone returns a deep copy of the job. Snapshots hand clones to clients so
// later mutations of live state never alias published data.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	cp.QueueOrder = cloneScalar(j.QueueOrder)
	cp.OutputSizeMB = cloneScalar(j.OutputSizeMB)
	cp.CreatedTimeMs = cloneScalar(j.CreatedTimeMs)
	cp.ModifiedTimeMs = cloneScalar(j.ModifiedTimeMs)
	cp.StartTimeMs = cloneScalar(j.StartTimeMs)
	cp.EndTimeMs = cloneScalar(j.EndTimeMs)
	cp.ProcessingStartedMs = cloneScalar(j.ProcessingStartedMs)
	cp.ElapsedMs = cloneScalar(j.ElapsedMs)
	cp.EstimatedSeconds = cloneScalar(j.EstimatedSeconds)
	cp.Media = j.Media.Clone()
	cp.WaitMetadata = j.WaitMetadata.Clone()
	if j.LogHead != nil {
		cp.LogHead = append([]string(nil), j.LogHead...)
	}
	if j.Warnings != nil {
		cp.Warnings = append([]JobWarning(nil), j.Warnings...)
	}
	return &cp
}

// Clone returns a deep copy of the media info.
func (m *MediaInfo) Clone() *MediaInfo {
	if m == nil {
		return nil
	}
	cp := *m
	cp.DurationSeconds = cloneScalar(m.DurationSeconds)
	cp.Width = cloneScalar(m.Width)
	cp.Height = cloneScalar(m.Height)
	cp.FrameRate = cloneScalar(m.FrameRate)
	cp.SizeMB = cloneScalar(m.SizeMB)
	return &cp
}

// Clone returns a deep copy of the wait metadata.
func (w *WaitMetadata) Clone() *WaitMetadata {
	if w == nil {
		return nil
	}
	cp := *w
	cp.LastProgressPercent = cloneScalar(w.LastProgressPercent)
	cp.ProcessedWallMillis = cloneScalar(w.ProcessedWallMillis)
	cp.ProcessedSeconds = cloneScalar(w.ProcessedSeconds)
	cp.TargetSeconds = cloneScalar(w.TargetSeconds)
	cp.ProgressEpoch = cloneScalar(w.ProgressEpoch)
	cp.LastProgressOutTimeSeconds = cloneScalar(w.LastProgressOutTimeSeconds)
	cp.LastProgressSpeed = cloneScalar(w.LastProgressSpeed)
	cp.LastProgressUpdatedAtMs = cloneScalar(w.LastProgressUpdatedAtMs)
	cp.LastProgressFrame = cloneScalar(w.LastProgressFrame)
	if w.Segments != nil {
		cp.Segments = append([]string(nil), w.Segments...)
	}
	if w.SegmentEndTargets != nil {
		cp.SegmentEndTargets = append([]float64(nil), w.SegmentEndTargets...)
	}
	return &cp
}

func cloneScalar[T any](v *T) *T {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

// Epoch returns the job's current progress epoch, or zero when none recorded.
func (j *Job) Epoch() uint64 {
	if j == nil || j.WaitMetadata == nil || j.WaitMetadata.ProgressEpoch == nil {
		return 0
	}
	return *j.WaitMetadata.ProgressEpoch
}

// ResumeOffsetSeconds returns the media time a resumed encode should start
// from, preferring explicit segment end targets over the processed estimate.
func (w *WaitMetadata) ResumeOffsetSeconds() float64 {
	if w == nil {
		return 0
	}
	if n := len(w.SegmentEndTargets); n > 0 {
		return w.SegmentEndTargets[n-1]
	}
	if w.ProcessedSeconds != nil {
		return *w.ProcessedSeconds
	}
	return 0
}

// SegmentPaths returns the completed segment outputs in encode order, falling
// back to the single tmp output for older snapshots.
func (w *WaitMetadata) SegmentPaths() []string {
	if w == nil {
		return nil
	}
	if len(w.Segments) > 0 {
		return append([]string(nil), w.Segments...)
	}
	if w.TmpOutputPath != "" {
		return []string{w.TmpOutputPath}
	}
	return nil
}
