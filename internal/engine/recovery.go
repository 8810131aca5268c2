package engine

import (
	"context"

	"ffui/internal/logging"
	"ffui/internal/queue"
)

// restore rebuilds in-memory state from the store at construction time. Jobs
// that were processing when the previous daemon died keep their resume state
// and move to the head of the waiting order: re-queued when resume_on_start
// is set, paused otherwise so the user decides.
func (e *Engine) restore(ctx context.Context) error {
	jobs, err := e.store.LoadAll(ctx)
	if err != nil {
		return err
	}

	var changed []*queue.Job
	var interrupted []string
	for _, job := range jobs {
		e.jobs[job.ID] = job
		if job.InputPath != "" {
			if _, taken := e.inputIndex[job.InputPath]; !taken {
				e.inputIndex[job.InputPath] = job.ID
			}
		}
		switch job.Status {
		case queue.StatusProcessing:
			if e.cfg.Worker.ResumeOnStart {
				job.Status = queue.StatusQueued
			} else {
				job.Status = queue.StatusPaused
			}
			interrupted = append(interrupted, job.ID)
			changed = append(changed, job)
		case queue.StatusQueued, queue.StatusPaused:
			e.waiting = append(e.waiting, job.ID)
		}
	}
	// Interrupted jobs jump the queue, keeping their stored relative order.
	for i := len(interrupted) - 1; i >= 0; i-- {
		e.waiting = append([]string{interrupted[i]}, e.waiting...)
	}

	e.repairWaitingLocked()
	e.reindexLocked()

	if len(changed) > 0 {
		if err := e.store.UpsertAll(ctx, changed); err != nil {
			return err
		}
	}
	if len(jobs) > 0 {
		e.logger.Info("queue restored", logging.Args(
			logging.Int("jobs", len(jobs)),
			logging.Int("interrupted", len(interrupted)),
			logging.String(logging.FieldEventType, "queue_restored"),
		)...)
	}
	return nil
}
