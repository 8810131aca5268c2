package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"ffui/internal/logging"
	"ffui/internal/queue"
)

const bytesPerMB = 1024 * 1024

// SubmitOptions qualifies a batch of submitted paths.
type SubmitOptions struct {
	Source  queue.JobSource
	Preset  string
	BatchID string
}

// SkippedPath explains why a submitted path produced no job.
type SkippedPath struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// SubmitResult partitions a submission into accepted jobs and skipped paths.
type SubmitResult struct {
	Accepted []*queue.Job  `json:"accepted"`
	Skipped  []SkippedPath `json:"skipped"`
}

// Submit enqueues one job per acceptable input path. Paths that do not
// resolve to a supported regular file, or that match the input of a job
// already in the model, are reported in Skipped. Accepted jobs land at the
// tail of the waiting order in argument order.
func (e *Engine) Submit(paths []string, opts SubmitOptions) SubmitResult {
	if opts.Source == "" {
		opts.Source = queue.SourceManual
	}

	type candidate struct {
		path    string
		jobType queue.JobType
		info    os.FileInfo
	}

	var res SubmitResult
	candidates := make([]candidate, 0, len(paths))
	for _, raw := range paths {
		abs, err := filepath.Abs(raw)
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedPath{Path: raw, Reason: "invalid path"})
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedPath{Path: raw, Reason: "not found"})
			continue
		}
		if info.IsDir() {
			res.Skipped = append(res.Skipped, SkippedPath{Path: raw, Reason: "is a directory"})
			continue
		}
		jobType, ok := queue.ClassifyPath(abs)
		if !ok {
			res.Skipped = append(res.Skipped, SkippedPath{Path: raw, Reason: "unsupported file type"})
			continue
		}
		candidates = append(candidates, candidate{path: abs, jobType: jobType, info: info})
	}
	if len(candidates) == 0 {
		return res
	}

	e.mu.Lock()
	accepted := make([]*queue.Job, 0, len(candidates))
	for _, c := range candidates {
		if owner, dup := e.inputIndex[c.path]; dup {
			res.Skipped = append(res.Skipped, SkippedPath{
				Path:   c.path,
				Reason: fmt.Sprintf("already in queue (%s)", shortID(owner)),
			})
			continue
		}

		job := queue.NewJob(c.path, c.jobType, opts.Source)
		job.Preset = opts.Preset
		job.BatchID = opts.BatchID
		job.OriginalSizeMB = float64(c.info.Size()) / bytesPerMB
		job.CreatedTimeMs, job.ModifiedTimeMs = queue.FileTimes(c.info)

		e.jobs[job.ID] = job
		e.inputIndex[c.path] = job.ID
		e.enqueueTailLocked(job.ID)
		accepted = append(accepted, job)
	}
	if len(accepted) > 0 {
		e.reindexLocked()
		e.persistLocked(accepted...)
		e.publishStructuralLocked()
		for _, job := range accepted {
			res.Accepted = append(res.Accepted, job.Clone())
		}
	}
	e.mu.Unlock()

	if len(accepted) > 0 {
		e.kick()
		attrs := []logging.Attr{
			logging.Int("accepted", len(accepted)),
			logging.Int("skipped", len(res.Skipped)),
			logging.String("source", string(opts.Source)),
			logging.String(logging.FieldEventType, "jobs_submitted"),
		}
		if opts.BatchID != "" {
			attrs = append(attrs, logging.String(logging.FieldBatchID, opts.BatchID))
		}
		e.logger.Info("jobs submitted", logging.Args(attrs...)...)
	}
	return res
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
