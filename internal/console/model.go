// Package console implements the client-side state engine behind the
// interactive queue console. A Model mirrors the daemon's queue from
// snapshots and deltas; View, Session, and Menu layer ordering, selection,
// and guarded commands on top without ever mutating job state locally.
// The daemon stays the single source of truth: every command round-trips
// and the next snapshot or delta confirms (or corrects) what the console
// shows.
package console

import (
	"errors"
	"math"

	"ffui/internal/queue"
)

// ErrStaleDelta reports a delta that does not apply to the model's current
// snapshot base. The caller should request a fresh snapshot.
var ErrStaleDelta = errors.New("stale queue delta")

// Model is the canonical local copy of the daemon's queue. Jobs keep the
// server's snapshot order; ordering for display is derived per render by
// View and never stored back. Model is not safe for concurrent use; Session
// serializes access for callers that need it.
type Model struct {
	jobs  []*queue.Job
	index map[string]*queue.Job

	snapshotRevision uint64
	deltaCursor      uint64

	dirty    map[string]struct{}
	relayout bool
}

// NewModel returns an empty model awaiting its first snapshot.
func NewModel() *Model {
	return &Model{
		index: make(map[string]*queue.Job),
		dirty: make(map[string]struct{}),
	}
}

// ApplySnapshot replaces the model wholesale with a full queue snapshot.
// deltaCursor is the delta revision the snapshot already reflects; later
// deltas must advance past it.
func (m *Model) ApplySnapshot(state queue.State, deltaCursor uint64) {
	m.jobs = state.Jobs
	m.index = make(map[string]*queue.Job, len(state.Jobs))
	for _, job := range state.Jobs {
		m.index[job.ID] = job
	}
	m.snapshotRevision = state.SnapshotRevision
	m.deltaCursor = deltaCursor
	m.dirty = make(map[string]struct{})
	m.relayout = true
}

// ApplyDelta layers a patch batch onto the model. Deltas based on a
// different snapshot revision, or whose delta revision does not advance the
// cursor, return ErrStaleDelta and leave the model untouched. Patches for
// unknown job ids are dropped.
func (m *Model) ApplyDelta(d queue.Delta) error {
	if d.BaseSnapshotRevision != m.snapshotRevision || d.DeltaRevision <= m.deltaCursor {
		return ErrStaleDelta
	}
	for _, patch := range d.Patches {
		job, ok := m.index[patch.ID]
		if !ok {
			continue
		}
		m.applyPatch(job, patch)
	}
	m.deltaCursor = d.DeltaRevision
	return nil
}

// applyPatch writes one patch onto a job, field by field. Each guard drops
// only its own field, so a patch mixing good and bad values still applies
// the good ones. Applying the same patch twice is a no-op the second time.
func (m *Model) applyPatch(job *queue.Job, p queue.JobPatch) {
	// Progress and telemetry carry the job's progress epoch; an older epoch
	// means the encoder rewound and these samples describe media already
	// thrown away. Status, elapsed, preview, and size updates are not
	// epoch-scoped and still apply.
	staleEpoch := p.Telemetry != nil && p.Telemetry.ProgressEpoch != nil &&
		*p.Telemetry.ProgressEpoch < job.Epoch()

	if p.Status != nil && *p.Status != job.Status {
		job.Status = *p.Status
		m.relayout = true
	}
	if p.Progress != nil && !staleEpoch {
		if v := *p.Progress; !math.IsNaN(v) && !math.IsInf(v, 0) {
			clamped := math.Min(100, math.Max(0, v))
			if clamped != job.Progress {
				job.Progress = clamped
				m.markDirty(job.ID)
			}
		}
	}
	if p.ElapsedMs != nil && *p.ElapsedMs >= 0 {
		if job.ElapsedMs == nil || *job.ElapsedMs != *p.ElapsedMs {
			v := *p.ElapsedMs
			job.ElapsedMs = &v
			m.markDirty(job.ID)
		}
	}
	if p.Telemetry != nil && !staleEpoch {
		m.applyTelemetry(job, p.Telemetry)
	}
	if p.Preview != nil {
		m.applyPreview(job, p.Preview)
	}
	if p.OutputSizeMB != nil {
		if v := *p.OutputSizeMB; v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0) {
			if job.OutputSizeMB == nil || *job.OutputSizeMB != v {
				size := v
				job.OutputSizeMB = &size
				m.markDirty(job.ID)
			}
		}
	}
}

// applyTelemetry writes present telemetry fields onto the job's wait
// metadata, creating it on first use. Absent fields keep their values.
func (m *Model) applyTelemetry(job *queue.Job, t *queue.TelemetryPatch) {
	if job.WaitMetadata == nil {
		job.WaitMetadata = &queue.WaitMetadata{}
	}
	md := job.WaitMetadata
	changed := false
	if t.ProgressEpoch != nil && (md.ProgressEpoch == nil || *md.ProgressEpoch != *t.ProgressEpoch) {
		v := *t.ProgressEpoch
		md.ProgressEpoch = &v
		changed = true
	}
	if t.LastProgressOutTimeSeconds != nil && (md.LastProgressOutTimeSeconds == nil || *md.LastProgressOutTimeSeconds != *t.LastProgressOutTimeSeconds) {
		v := *t.LastProgressOutTimeSeconds
		md.LastProgressOutTimeSeconds = &v
		changed = true
	}
	if t.LastProgressSpeed != nil && (md.LastProgressSpeed == nil || *md.LastProgressSpeed != *t.LastProgressSpeed) {
		v := *t.LastProgressSpeed
		md.LastProgressSpeed = &v
		changed = true
	}
	if t.LastProgressUpdatedAtMs != nil && (md.LastProgressUpdatedAtMs == nil || *md.LastProgressUpdatedAtMs != *t.LastProgressUpdatedAtMs) {
		v := *t.LastProgressUpdatedAtMs
		md.LastProgressUpdatedAtMs = &v
		changed = true
	}
	if t.LastProgressFrame != nil && (md.LastProgressFrame == nil || *md.LastProgressFrame != *t.LastProgressFrame) {
		v := *t.LastProgressFrame
		md.LastProgressFrame = &v
		changed = true
	}
	if changed {
		m.markDirty(job.ID)
	}
}

// applyPreview applies a preview update. PreviewRevision only moves forward;
// a revision at or below the stored one marks the whole group stale, which
// keeps delayed preview notifications from resurrecting an old thumbnail.
func (m *Model) applyPreview(job *queue.Job, p *queue.PreviewPatch) {
	if p.PreviewRevision != nil {
		if *p.PreviewRevision <= job.PreviewRevision {
			return
		}
		job.PreviewRevision = *p.PreviewRevision
	}
	if p.PreviewPath != nil {
		job.PreviewPath = *p.PreviewPath
	}
	m.markDirty(job.ID)
}

// RemoveJobs drops the given jobs from the model. The daemon's next snapshot
// is authoritative; local removal just keeps the console responsive after a
// confirmed delete.
func (m *Model) RemoveJobs(ids []string) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := m.index[id]; ok {
			drop[id] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return
	}
	kept := m.jobs[:0]
	for _, job := range m.jobs {
		if _, gone := drop[job.ID]; gone {
			delete(m.index, job.ID)
			delete(m.dirty, job.ID)
			continue
		}
		kept = append(kept, job)
	}
	m.jobs = kept
	m.relayout = true
}

func (m *Model) markDirty(id string) {
	m.dirty[id] = struct{}{}
}

// ConsumeDirty drains the set of jobs whose volatile fields changed since
// the last call and reports whether anything structural (status change,
// snapshot re-base, removal) requires a full relayout. Volatile-only changes
// let the renderer repaint rows in place.
func (m *Model) ConsumeDirty() (ids []string, relayout bool) {
	if len(m.dirty) > 0 {
		ids = make([]string, 0, len(m.dirty))
		for id := range m.dirty {
			ids = append(ids, id)
		}
		m.dirty = make(map[string]struct{})
	}
	relayout = m.relayout
	m.relayout = false
	return ids, relayout
}

// Jobs returns the canonical job list in server snapshot order. Callers
// must not mutate the returned jobs.
func (m *Model) Jobs() []*queue.Job {
	return m.jobs
}

// Job returns the job with the given id, or nil when unknown.
func (m *Model) Job(id string) *queue.Job {
	return m.index[id]
}

// Has reports whether the model currently tracks the given id.
func (m *Model) Has(id string) bool {
	_, ok := m.index[id]
	return ok
}

// Len returns the number of tracked jobs.
func (m *Model) Len() int {
	return len(m.jobs)
}

// SnapshotRevision returns the snapshot revision the model is based on.
func (m *Model) SnapshotRevision() uint64 {
	return m.snapshotRevision
}

// DeltaCursor returns the last delta revision applied onto the snapshot.
func (m *Model) DeltaCursor() uint64 {
	return m.deltaCursor
}
