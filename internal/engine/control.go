package engine

import (
	"sort"
	"time"

	"ffui/internal/logging"
	"ffui/internal/queue"
)

// controlEffects accumulates the side effects of locked control operations so
// bulk forms commit them once.
type controlEffects struct {
	structural bool
	persist    []*queue.Job
	deleted    []string
	kick       bool
}

func (eff *controlEffects) merge(other controlEffects) {
	eff.structural = eff.structural || other.structural
	eff.persist = append(eff.persist, other.persist...)
	eff.deleted = append(eff.deleted, other.deleted...)
	eff.kick = eff.kick || other.kick
}

func (e *Engine) commitLocked(eff *controlEffects) {
	if eff.structural || len(eff.persist) > 0 {
		e.reindexLocked()
	}
	if len(eff.persist) > 0 {
		e.persistLocked(eff.persist...)
	}
	if len(eff.deleted) > 0 {
		e.deleteRows(eff.deleted...)
	}
	if eff.structural {
		e.publishStructuralLocked()
	}
}

// runBulk applies a locked per-id operation to every id under one lock hold,
// so a bulk command observes a single consistent queue state. This closes the
// race where pausing one running job frees a slot that dispatches the next
// job before its own pause arrives.
func (e *Engine) runBulk(ids []string, op func(id string) (bool, controlEffects)) []bool {
	results := make([]bool, len(ids))
	e.mu.Lock()
	var all controlEffects
	for i, id := range ids {
		ok, eff := op(id)
		results[i] = ok
		all.merge(eff)
	}
	e.commitLocked(&all)
	e.mu.Unlock()
	if all.kick {
		e.kick()
	}
	return results
}

// Wait pauses a job. A processing job pauses cooperatively at its next
// progress checkpoint; a queued job pauses in place, keeping its slot in the
// waiting order. Returns false for unknown or terminal jobs.
func (e *Engine) Wait(id string) bool {
	return e.runBulk([]string{id}, e.waitLocked)[0]
}

// WaitAll is the single-lock bulk form of Wait.
func (e *Engine) WaitAll(ids []string) []bool {
	return e.runBulk(ids, e.waitLocked)
}

func (e *Engine) waitLocked(id string) (bool, controlEffects) {
	var eff controlEffects
	job, exists := e.jobs[id]
	if !exists {
		return false, eff
	}
	switch job.Status {
	case queue.StatusProcessing:
		e.waitRequests[id] = struct{}{}
		return true, eff
	case queue.StatusQueued:
		job.Status = queue.StatusPaused
		eff.structural = true
		eff.persist = append(eff.persist, job)
		return true, eff
	case queue.StatusPaused:
		return true, eff
	default:
		return false, eff
	}
}

// Resume returns a paused job to the queued state, keeping its slot in the
// waiting order. For a processing job it succeeds only by cancelling a
// still-pending wait request; true there means "the job keeps running".
func (e *Engine) Resume(id string) bool {
	return e.runBulk([]string{id}, e.resumeLocked)[0]
}

// ResumeAll is the single-lock bulk form of Resume.
func (e *Engine) ResumeAll(ids []string) []bool {
	return e.runBulk(ids, e.resumeLocked)
}

func (e *Engine) resumeLocked(id string) (bool, controlEffects) {
	var eff controlEffects
	job, exists := e.jobs[id]
	if !exists {
		return false, eff
	}
	switch job.Status {
	case queue.StatusQueued:
		if !e.inWaitingLocked(id) {
			e.enqueueTailLocked(id)
			eff.structural = true
			eff.persist = append(eff.persist, job)
		}
		eff.kick = true
		return true, eff
	case queue.StatusPaused:
		job.Status = queue.StatusQueued
		e.enqueueTailLocked(id)
		eff.structural = true
		eff.persist = append(eff.persist, job)
		eff.kick = true
		return true, eff
	case queue.StatusProcessing:
		if _, pending := e.waitRequests[id]; pending {
			delete(e.waitRequests, id)
			return true, eff
		}
		return false, eff
	default:
		return false, eff
	}
}

// Cancel abandons a job. Queued and paused jobs cancel immediately; a
// processing job is interrupted and settles cancelled once its worker stops.
// A cancel supersedes any pending wait request.
func (e *Engine) Cancel(id string) bool {
	return e.runBulk([]string{id}, e.cancelLocked)[0]
}

// CancelAll is the single-lock bulk form of Cancel.
func (e *Engine) CancelAll(ids []string) []bool {
	return e.runBulk(ids, e.cancelLocked)
}

func (e *Engine) cancelLocked(id string) (bool, controlEffects) {
	var eff controlEffects
	job, exists := e.jobs[id]
	if !exists {
		return false, eff
	}
	switch job.Status {
	case queue.StatusQueued, queue.StatusPaused:
		e.waiting = removeString(e.waiting, id)
		delete(e.waitRequests, id)
		job.Status = queue.StatusCancelled
		job.Progress = 0
		job.EndTimeMs = int64Ptr(time.Now().UnixMilli())
		job.WaitMetadata = nil
		job.OutputSizeMB = nil
		e.cleanupTmp(id)
		eff.structural = true
		eff.persist = append(eff.persist, job)
		return true, eff
	case queue.StatusProcessing:
		delete(e.waitRequests, id)
		e.cancelRequests[id] = struct{}{}
		if cancelRun, running := e.active[id]; running {
			cancelRun()
		}
		return true, eff
	default:
		return false, eff
	}
}

// Restart re-runs a job from scratch. Completed and skipped jobs refuse; a
// processing job is interrupted and re-enqueued by its worker; every other
// state resets to queued immediately.
func (e *Engine) Restart(id string) bool {
	return e.runBulk([]string{id}, e.restartLocked)[0]
}

// RestartAll is the single-lock bulk form of Restart.
func (e *Engine) RestartAll(ids []string) []bool {
	return e.runBulk(ids, e.restartLocked)
}

func (e *Engine) restartLocked(id string) (bool, controlEffects) {
	var eff controlEffects
	job, exists := e.jobs[id]
	if !exists {
		return false, eff
	}
	switch job.Status {
	case queue.StatusCompleted, queue.StatusSkipped:
		return false, eff
	case queue.StatusProcessing:
		delete(e.waitRequests, id)
		e.restartRequests[id] = struct{}{}
		e.cancelRequests[id] = struct{}{}
		if cancelRun, running := e.active[id]; running {
			cancelRun()
		}
		return true, eff
	default:
		e.resetJobLocked(job)
		e.enqueueTailLocked(id)
		eff.structural = true
		eff.persist = append(eff.persist, job)
		eff.kick = true
		return true, eff
	}
}

// resetJobLocked returns a job to a fresh queued state, discarding run
// artifacts and any pending request flags.
func (e *Engine) resetJobLocked(job *queue.Job) {
	job.Status = queue.StatusQueued
	job.Progress = 0
	job.OutputPath = ""
	job.OutputSizeMB = nil
	job.StartTimeMs = nil
	job.EndTimeMs = nil
	job.ProcessingStartedMs = nil
	job.ElapsedMs = nil
	job.Command = ""
	job.FailureReason = ""
	job.SkipReason = ""
	job.LogHead = nil
	job.LogTail = ""
	job.Warnings = nil
	job.WaitMetadata = nil
	delete(e.waitRequests, job.ID)
	delete(e.cancelRequests, job.ID)
	delete(e.restartRequests, job.ID)
	e.cleanupTmp(job.ID)
	if _, taken := e.inputIndex[job.InputPath]; !taken {
		e.inputIndex[job.InputPath] = job.ID
	}
}

// Remove deletes terminal jobs from the model and the store, best-effort per
// id: non-terminal, still-active, and unknown ids are skipped, not errors.
func (e *Engine) Remove(ids []string) (removed, skipped []string) {
	e.mu.Lock()
	var eff controlEffects
	for _, id := range ids {
		job, exists := e.jobs[id]
		if !exists || !job.Status.IsTerminal() {
			skipped = append(skipped, id)
			continue
		}
		if _, running := e.active[id]; running {
			skipped = append(skipped, id)
			continue
		}
		delete(e.jobs, id)
		e.waiting = removeString(e.waiting, id)
		e.dropInputLocked(job)
		delete(e.waitRequests, id)
		delete(e.cancelRequests, id)
		delete(e.restartRequests, id)
		e.cleanupTmp(id)
		e.preview.Remove(id)
		removed = append(removed, id)
	}
	if len(removed) > 0 {
		eff.structural = true
		eff.deleted = removed
	}
	e.commitLocked(&eff)
	e.mu.Unlock()

	if len(removed) > 0 {
		e.logger.Info("jobs removed", logging.Args(
			logging.Int("removed", len(removed)),
			logging.Int("skipped", len(skipped)),
			logging.String(logging.FieldEventType, "jobs_removed"),
		)...)
	}
	return removed, skipped
}

// ClearTerminal removes every finished job and reports how many went away.
func (e *Engine) ClearTerminal() int {
	e.mu.Lock()
	var ids []string
	for id, job := range e.jobs {
		if !job.Status.IsTerminal() {
			continue
		}
		if _, running := e.active[id]; running {
			continue
		}
		ids = append(ids, id)
	}
	e.mu.Unlock()
	if len(ids) == 0 {
		return 0
	}
	sort.Strings(ids)
	removed, _ := e.Remove(ids)
	return len(removed)
}

// Reorder rebuilds the waiting order from the payload. Listed ids keep the
// given sequence; waiting jobs not listed follow at the tail in their current
// relative order; unknown and non-waiting ids are dropped. Always publishes a
// fresh snapshot, even when the resulting order is unchanged.
func (e *Engine) Reorder(orderedIDs []string) bool {
	e.mu.Lock()
	current := make(map[string]struct{}, len(e.waiting))
	for _, id := range e.waiting {
		current[id] = struct{}{}
	}
	next := make([]string, 0, len(e.waiting))
	taken := make(map[string]struct{}, len(e.waiting))
	for _, id := range orderedIDs {
		if _, ok := current[id]; !ok {
			continue
		}
		if _, dup := taken[id]; dup {
			continue
		}
		taken[id] = struct{}{}
		next = append(next, id)
	}
	for _, id := range e.waiting {
		if _, ok := taken[id]; ok {
			continue
		}
		next = append(next, id)
	}
	e.waiting = next
	e.reindexLocked()

	jobs := make([]*queue.Job, 0, len(next))
	for _, id := range next {
		if job, ok := e.jobs[id]; ok {
			jobs = append(jobs, job)
		}
	}
	e.persistLocked(jobs...)
	e.publishStructuralLocked()
	e.mu.Unlock()

	e.kick()
	return true
}
