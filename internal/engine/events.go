package engine

import (
	"context"
	"sort"
	"time"

	"ffui/internal/queue"
)

// deltaRingSize bounds how many flushed deltas stay replayable. A client
// whose cursor falls off the ring re-bases from a full snapshot.
const deltaRingSize = 256

// maxEventsWait caps a single long-poll block.
const maxEventsWait = 30 * time.Second

// EventsResult is one long-poll response. Exactly one of Snapshot or Deltas
// is populated when data is available; both empty means the wait elapsed with
// nothing new.
type EventsResult struct {
	// Snapshot re-bases the client. DeltaCursor is the delta revision the
	// snapshot already reflects; the client passes it back as afterDelta.
	Snapshot    *queue.State
	DeltaCursor uint64
	// Deltas are the patches newer than the client's cursor, oldest first.
	Deltas []queue.Delta
}

// State returns a full queue snapshot.
func (e *Engine) State() queue.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

// Events answers the client's incremental-update long poll. When the client's
// snapshot revision is stale, or its delta cursor is no longer covered by the
// ring, the response carries a fresh snapshot; otherwise it carries the
// deltas past the cursor. With nothing new it blocks up to wait (capped),
// returning empty on timeout.
func (e *Engine) Events(ctx context.Context, afterSnapshot, afterDelta uint64, wait time.Duration) EventsResult {
	if wait < 0 {
		wait = 0
	}
	if wait > maxEventsWait {
		wait = maxEventsWait
	}
	deadline := time.Now().Add(wait)

	for {
		e.mu.Lock()
		res, ready := e.eventsLocked(afterSnapshot, afterDelta)
		notify := e.notify
		e.mu.Unlock()
		if ready {
			return res
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return EventsResult{}
		}
		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return EventsResult{}
		case <-notify:
			timer.Stop()
		case <-timer.C:
			return EventsResult{}
		}
	}
}

func (e *Engine) eventsLocked(afterSnapshot, afterDelta uint64) (EventsResult, bool) {
	e.flushPendingLocked()

	if afterSnapshot != e.snapshotRevision || afterDelta > e.deltaRevision {
		st := e.stateLocked()
		return EventsResult{Snapshot: &st, DeltaCursor: e.deltaRevision}, true
	}
	if afterDelta == e.deltaRevision {
		return EventsResult{}, false
	}

	// Deltas in the ring cover (deltaRevision-len, deltaRevision]. A cursor
	// older than that window cannot be caught up patch-by-patch.
	oldest := e.deltaRevision - uint64(len(e.deltas)) + 1
	if afterDelta+1 < oldest {
		st := e.stateLocked()
		return EventsResult{Snapshot: &st, DeltaCursor: e.deltaRevision}, true
	}

	out := make([]queue.Delta, 0, e.deltaRevision-afterDelta)
	for _, d := range e.deltas {
		if d.DeltaRevision <= afterDelta {
			continue
		}
		cp := d
		cp.Patches = make([]queue.JobPatch, len(d.Patches))
		for i, p := range d.Patches {
			cp.Patches[i] = p.Clone()
		}
		out = append(out, cp)
	}
	return EventsResult{Deltas: out}, true
}

// stateLocked builds the snapshot: invariants repaired, queueOrder derived
// from the waiting index, jobs sorted by (queueOrder asc, nil last, id).
func (e *Engine) stateLocked() queue.State {
	e.repairWaitingLocked()
	e.reindexLocked()

	jobs := make([]*queue.Job, 0, len(e.jobs))
	for _, job := range e.jobs {
		jobs = append(jobs, job.Clone())
	}
	sort.Slice(jobs, func(i, k int) bool {
		a, b := jobs[i], jobs[k]
		switch {
		case a.QueueOrder != nil && b.QueueOrder != nil:
			if *a.QueueOrder != *b.QueueOrder {
				return *a.QueueOrder < *b.QueueOrder
			}
		case a.QueueOrder != nil:
			return true
		case b.QueueOrder != nil:
			return false
		}
		return a.ID < b.ID
	})
	return queue.State{SnapshotRevision: e.snapshotRevision, Jobs: jobs}
}

// publishStructuralLocked records a structural change: the snapshot revision
// advances, pending patches and the delta ring reset, and pollers wake.
func (e *Engine) publishStructuralLocked() {
	e.snapshotRevision++
	e.deltaRevision = 0
	e.pending = make(map[string]*queue.JobPatch)
	e.pendingOrder = e.pendingOrder[:0]
	e.deltas = e.deltas[:0]
	e.notifyLocked()
}

// publishPatchLocked merges a field patch into the pending buffer and wakes
// pollers. The buffer coalesces per job id: newer fields win, untouched
// fields survive, so one flushed delta carries the freshest value of
// everything that changed since the last flush.
func (e *Engine) publishPatchLocked(patch queue.JobPatch) {
	if patch.ID == "" || patch.IsEmpty() {
		return
	}
	if existing, ok := e.pending[patch.ID]; ok {
		existing.Merge(patch)
	} else {
		cp := patch.Clone()
		e.pending[patch.ID] = &cp
		e.pendingOrder = append(e.pendingOrder, patch.ID)
	}
	e.notifyLocked()
}

// flushPendingLocked turns the pending buffer into one delta on the ring.
// Flushing happens on read, so coalescing is paced by the fastest poller.
func (e *Engine) flushPendingLocked() {
	if len(e.pendingOrder) == 0 {
		return
	}
	patches := make([]queue.JobPatch, 0, len(e.pendingOrder))
	for _, id := range e.pendingOrder {
		if p := e.pending[id]; p != nil && !p.IsEmpty() {
			patches = append(patches, *p)
		}
	}
	e.pending = make(map[string]*queue.JobPatch)
	e.pendingOrder = e.pendingOrder[:0]
	if len(patches) == 0 {
		return
	}

	e.deltaRevision++
	e.deltas = append(e.deltas, queue.Delta{
		BaseSnapshotRevision: e.snapshotRevision,
		DeltaRevision:        e.deltaRevision,
		Patches:              patches,
	})
	if len(e.deltas) > deltaRingSize {
		e.deltas = e.deltas[len(e.deltas)-deltaRingSize:]
	}
}

// notifyLocked wakes every blocked poller by closing the broadcast channel
// and arming a fresh one.
func (e *Engine) notifyLocked() {
	close(e.notify)
	e.notify = make(chan struct{})
}
