package queue

// State is a full queue snapshot delivered to clients.
type State struct {
	// SnapshotRevision orders snapshots within a daemon session so clients
	// can discard stale, out-of-order deliveries. It tracks the structural
	// version of the queue (add, remove, reorder, status transitions);
	// high-frequency progress flows through Delta instead.
	SnapshotRevision uint64 `json:"snapshotRevision"`
	Jobs             []*Job `json:"jobs"`
}

// Delta carries per-job field patches layered on top of a snapshot, so
// progress and telemetry updates avoid the cost of a full State per tick.
type Delta struct {
	// BaseSnapshotRevision is the State.SnapshotRevision this delta applies to.
	BaseSnapshotRevision uint64 `json:"baseSnapshotRevision"`
	// DeltaRevision orders deltas sharing the same base revision.
	DeltaRevision uint64     `json:"deltaRevision"`
	Patches       []JobPatch `json:"patches"`
}

// JobPatch updates a subset of one job's fields. Absent fields leave the
// corresponding job fields untouched, so patches compose in any grouping.
type JobPatch struct {
	ID        string          `json:"id"`
	Status    *Status         `json:"status,omitempty"`
	Progress  *float64        `json:"progress,omitempty"`
	Telemetry *TelemetryPatch `json:"telemetry,omitempty"`
	ElapsedMs *int64          `json:"elapsedMs,omitempty"`
	Preview   *PreviewPatch   `json:"preview,omitempty"`
	// OutputSizeMB surfaces the growing output file size while encoding.
	OutputSizeMB *float64 `json:"outputSizeMB,omitempty"`
}

// TelemetryPatch is a grouped progress telemetry update applied onto a job's
// wait metadata.
type TelemetryPatch struct {
	ProgressEpoch              *uint64  `json:"progressEpoch,omitempty"`
	LastProgressOutTimeSeconds *float64 `json:"lastProgressOutTimeSeconds,omitempty"`
	LastProgressSpeed          *float64 `json:"lastProgressSpeed,omitempty"`
	LastProgressUpdatedAtMs    *int64   `json:"lastProgressUpdatedAtMs,omitempty"`
	LastProgressFrame          *uint64  `json:"lastProgressFrame,omitempty"`
}

// PreviewPatch is a grouped preview update applied onto a job's preview path
// and revision.
type PreviewPatch struct {
	PreviewPath     *string `json:"previewPath,omitempty"`
	PreviewRevision *uint64 `json:"previewRevision,omitempty"`
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	jobs := make([]*Job, len(s.Jobs))
	for i, job := range s.Jobs {
		jobs[i] = job.Clone()
	}
	return State{SnapshotRevision: s.SnapshotRevision, Jobs: jobs}
}

// Clone returns a deep copy of the patch.
func (p JobPatch) Clone() JobPatch {
	cp := p
	cp.Status = cloneScalar(p.Status)
	cp.Progress = cloneScalar(p.Progress)
	cp.ElapsedMs = cloneScalar(p.ElapsedMs)
	cp.OutputSizeMB = cloneScalar(p.OutputSizeMB)
	if p.Telemetry != nil {
		t := *p.Telemetry
		t.ProgressEpoch = cloneScalar(p.Telemetry.ProgressEpoch)
		t.LastProgressOutTimeSeconds = cloneScalar(p.Telemetry.LastProgressOutTimeSeconds)
		t.LastProgressSpeed = cloneScalar(p.Telemetry.LastProgressSpeed)
		t.LastProgressUpdatedAtMs = cloneScalar(p.Telemetry.LastProgressUpdatedAtMs)
		t.LastProgressFrame = cloneScalar(p.Telemetry.LastProgressFrame)
		cp.Telemetry = &t
	}
	if p.Preview != nil {
		pv := *p.Preview
		pv.PreviewPath = cloneScalar(p.Preview.PreviewPath)
		pv.PreviewRevision = cloneScalar(p.Preview.PreviewRevision)
		cp.Preview = &pv
	}
	return cp
}

// Merge folds a newer patch for the same job into p, field by field. Fields
// present in next win; fields absent in next keep p's values. Telemetry and
// preview groups merge at the inner field level.
func (p *JobPatch) Merge(next JobPatch) {
	if next.Status != nil {
		p.Status = cloneScalar(next.Status)
	}
	if next.Progress != nil {
		p.Progress = cloneScalar(next.Progress)
	}
	if next.ElapsedMs != nil {
		p.ElapsedMs = cloneScalar(next.ElapsedMs)
	}
	if next.OutputSizeMB != nil {
		p.OutputSizeMB = cloneScalar(next.OutputSizeMB)
	}
	if next.Telemetry != nil {
		if p.Telemetry == nil {
			p.Telemetry = &TelemetryPatch{}
		}
		if next.Telemetry.ProgressEpoch != nil {
			p.Telemetry.ProgressEpoch = cloneScalar(next.Telemetry.ProgressEpoch)
		}
		if next.Telemetry.LastProgressOutTimeSeconds != nil {
			p.Telemetry.LastProgressOutTimeSeconds = cloneScalar(next.Telemetry.LastProgressOutTimeSeconds)
		}
		if next.Telemetry.LastProgressSpeed != nil {
			p.Telemetry.LastProgressSpeed = cloneScalar(next.Telemetry.LastProgressSpeed)
		}
		if next.Telemetry.LastProgressUpdatedAtMs != nil {
			p.Telemetry.LastProgressUpdatedAtMs = cloneScalar(next.Telemetry.LastProgressUpdatedAtMs)
		}
		if next.Telemetry.LastProgressFrame != nil {
			p.Telemetry.LastProgressFrame = cloneScalar(next.Telemetry.LastProgressFrame)
		}
	}
	if next.Preview != nil {
		if p.Preview == nil {
			p.Preview = &PreviewPatch{}
		}
		if next.Preview.PreviewPath != nil {
			p.Preview.PreviewPath = cloneScalar(next.Preview.PreviewPath)
		}
		if next.Preview.PreviewRevision != nil {
			p.Preview.PreviewRevision = cloneScalar(next.Preview.PreviewRevision)
		}
	}
}

// IsEmpty reports whether the patch carries no field updates.
func (p JobPatch) IsEmpty() bool {
	return p.Status == nil && p.Progress == nil && p.Telemetry == nil &&
		p.ElapsedMs == nil && p.Preview == nil && p.OutputSizeMB == nil
}
