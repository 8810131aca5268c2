package console

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"ffui/internal/queue"
)

const (
	// cancelSettleTimeout bounds how long cancel-and-delete waits for
	// cancelled jobs to reach a terminal state before deleting what settled.
	cancelSettleTimeout = 3 * time.Second
	cancelSettlePoll    = 25 * time.Millisecond
)

// DeleteState is the position of the delete confirmation machine.
type DeleteState int

const (
	DeleteIdle DeleteState = iota
	DeleteConfirming
)

// Session owns the console's interactive state: the model, the selection,
// local wait-request tracking, and the delete confirmation machine. Command
// methods round-trip to the backend without holding the lock, so incoming
// deltas keep applying while a command is in flight. Job state is never
// changed optimistically; the daemon's answer and its follow-up events are
// what move the display.
type Session struct {
	mu      sync.Mutex
	model   *Model
	backend Backend

	selection    map[string]struct{}
	pendingWaits map[string]struct{}
	bulkActive   bool

	// confirm holds the selection captured when deletion was requested;
	// nil while idle. The terminal/active split is recomputed live so jobs
	// finishing mid-prompt land on the right side.
	confirm []string
}

// NewSession wires a model to a backend.
func NewSession(model *Model, backend Backend) *Session {
	return &Session{
		model:        model,
		backend:      backend,
		selection:    make(map[string]struct{}),
		pendingWaits: make(map[string]struct{}),
	}
}

// ApplySnapshot re-bases the model on a full snapshot, prunes the selection
// to jobs that still exist, and drops wait requests the snapshot resolved.
func (s *Session) ApplySnapshot(state queue.State, deltaCursor uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model.ApplySnapshot(state, deltaCursor)
	s.pruneSelectionLocked()
	s.prunePendingWaitsLocked()
}

// ApplyDelta applies a delta and clears local wait requests for jobs the
// delta shows paused or finished.
func (s *Session) ApplyDelta(d queue.Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.model.ApplyDelta(d); err != nil {
		return err
	}
	for _, patch := range d.Patches {
		if patch.Status == nil {
			continue
		}
		if patch.Status.IsTerminal() || *patch.Status == queue.StatusPaused {
			delete(s.pendingWaits, patch.ID)
		}
	}
	return nil
}

// Model returns the underlying model. Callers must serialize access with
// the session's own methods.
func (s *Session) Model() *Model {
	return s.model
}

// VisibleJobs filters and orders the canonical list through the view under
// the session lock, so a delete settling on another goroutine cannot mutate
// the model mid-render.
func (s *Session) VisibleJobs(view *View) []*queue.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view.Visible(s.model.Jobs())
}

// Cursors returns the snapshot revision and delta cursor the next events
// poll should resume from.
func (s *Session) Cursors() (snapshot, delta uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.SnapshotRevision(), s.model.DeltaCursor()
}

// JobCount returns the number of jobs the model tracks before filtering.
func (s *Session) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Len()
}

func (s *Session) pruneSelectionLocked() {
	for id := range s.selection {
		if !s.model.Has(id) {
			delete(s.selection, id)
		}
	}
}

func (s *Session) prunePendingWaitsLocked() {
	for id := range s.pendingWaits {
		job := s.model.Job(id)
		if job == nil || job.Status.IsTerminal() || job.Status == queue.StatusPaused {
			delete(s.pendingWaits, id)
		}
	}
}

// ToggleSelect flips one job in or out of the selection. Unknown ids are
// ignored.
func (s *Session) ToggleSelect(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.model.Has(id) {
		return
	}
	if _, ok := s.selection[id]; ok {
		delete(s.selection, id)
		return
	}
	s.selection[id] = struct{}{}
}

// SetSelection replaces the selection with the given ids, dropping any the
// model does not track.
func (s *Session) SetSelection(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setSelectionLocked(ids)
}

func (s *Session) setSelectionLocked(ids []string) {
	s.selection = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if s.model.Has(id) {
			s.selection[id] = struct{}{}
		}
	}
}

// ClearSelection empties the selection.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = make(map[string]struct{})
}

// IsSelected reports whether the job is selected.
func (s *Session) IsSelected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.selection[id]
	return ok
}

// SelectionCount returns the number of selected jobs.
func (s *Session) SelectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.selection)
}

// Selected returns the selected ids in the model's canonical order.
func (s *Session) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedIDsLocked()
}

func (s *Session) selectedIDsLocked() []string {
	return s.selectedWhereLocked(func(*queue.Job) bool { return true })
}

func (s *Session) selectedWhereLocked(keep func(*queue.Job) bool) []string {
	ids := make([]string, 0, len(s.selection))
	for _, job := range s.model.Jobs() {
		if _, ok := s.selection[job.ID]; !ok {
			continue
		}
		if keep(job) {
			ids = append(ids, job.ID)
		}
	}
	return ids
}

// CanWait reports whether a wait request makes sense for the job right now.
// Only running jobs can be asked to pause; everything else either already
// sits still or is done.
func (s *Session) CanWait(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.model.Job(id)
	return job != nil && job.Status.IsActive()
}

// CanResume reports whether resume applies: the job is paused, or it is
// still running with an unacknowledged local wait request that resume
// would withdraw.
func (s *Session) CanResume(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.model.Job(id)
	if job == nil {
		return false
	}
	if job.Status == queue.StatusPaused {
		return true
	}
	_, pending := s.pendingWaits[id]
	return pending && job.Status.IsActive()
}

// CanRestart reports whether the job is in a terminal state.
func (s *Session) CanRestart(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.model.Job(id)
	return job != nil && job.Status.IsTerminal()
}

// CanCancel reports whether the job can still be cancelled.
func (s *Session) CanCancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.model.Job(id)
	return job != nil && !job.Status.IsTerminal()
}

// HasPendingWait reports whether a wait request for the job was
// acknowledged but not yet reflected in a pause.
func (s *Session) HasPendingWait(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pendingWaits[id]
	return ok
}

// Wait asks the daemon to pause the job at its next safe point. The job's
// status is not touched locally: the request is tracked until a delta
// shows the pause happened. Unknown or non-running jobs are ignored.
func (s *Session) Wait(id string) error {
	s.mu.Lock()
	job := s.model.Job(id)
	if job == nil || !job.Status.IsActive() {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	ok, err := s.backend.Wait(id)
	if err != nil {
		return fmt.Errorf("wait %s: %w", shortID(id), err)
	}
	if !ok {
		return fmt.Errorf("wait rejected for job %s", shortID(id))
	}
	s.mu.Lock()
	s.pendingWaits[id] = struct{}{}
	s.mu.Unlock()
	return nil
}

// Resume asks the daemon to resume the job. The request is issued without
// a local status gate: a pending wait on a still-running job is withdrawn
// by the same call, and the daemon is the judge of everything else. A
// rejected resume is the one command rejection surfaced as an error.
func (s *Session) Resume(id string) error {
	s.mu.Lock()
	known := s.model.Has(id)
	s.mu.Unlock()
	if !known {
		return nil
	}
	ok, err := s.backend.Resume(id)
	if err != nil {
		return fmt.Errorf("resume %s: %w", shortID(id), err)
	}
	if !ok {
		return fmt.Errorf("resume rejected for job %s", shortID(id))
	}
	s.mu.Lock()
	delete(s.pendingWaits, id)
	s.mu.Unlock()
	return nil
}

// Cancel asks the daemon to cancel the job. A rejected cancel means the
// job reached a terminal state first, which the next delta will show, so
// the rejection is absorbed rather than surfaced.
func (s *Session) Cancel(id string) error {
	s.mu.Lock()
	job := s.model.Job(id)
	if job == nil || job.Status.IsTerminal() {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	ok, err := s.backend.Cancel(id)
	if err != nil {
		return fmt.Errorf("cancel %s: %w", shortID(id), err)
	}
	if ok {
		s.mu.Lock()
		delete(s.pendingWaits, id)
		s.mu.Unlock()
	}
	return nil
}

// Restart asks the daemon to re-queue a finished job. Non-terminal jobs
// are ignored.
func (s *Session) Restart(id string) error {
	s.mu.Lock()
	job := s.model.Job(id)
	if job == nil || !job.Status.IsTerminal() {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	ok, err := s.backend.Restart(id)
	if err != nil {
		return fmt.Errorf("restart %s: %w", shortID(id), err)
	}
	if !ok {
		return fmt.Errorf("restart rejected for job %s", shortID(id))
	}
	return nil
}

// beginBulk claims the exclusive bulk slot. A false return means another
// bulk operation is still in flight and the caller must no-op silently.
func (s *Session) beginBulk() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bulkActive {
		return false
	}
	s.bulkActive = true
	return true
}

func (s *Session) endBulk() {
	s.mu.Lock()
	s.bulkActive = false
	s.mu.Unlock()
}

// BulkActive reports whether a guarded bulk operation is in flight.
func (s *Session) BulkActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bulkActive
}

// BulkWait issues a wait for every selected running job and tracks the
// acknowledged requests. Silently no-ops while another bulk operation runs.
func (s *Session) BulkWait() error {
	if !s.beginBulk() {
		return nil
	}
	defer s.endBulk()
	s.mu.Lock()
	ids := s.selectedWhereLocked(func(j *queue.Job) bool { return j.Status.IsActive() })
	s.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}
	acks, err := s.backend.WaitBulk(ids)
	if err != nil {
		return fmt.Errorf("bulk wait: %w", err)
	}
	s.mu.Lock()
	for i, ok := range acks {
		if ok && i < len(ids) {
			s.pendingWaits[ids[i]] = struct{}{}
		}
	}
	s.mu.Unlock()
	return nil
}

// BulkResume issues a resume for every selected job. Per-job rejections
// are skipped; only transport failures surface.
func (s *Session) BulkResume() error {
	if !s.beginBulk() {
		return nil
	}
	defer s.endBulk()
	s.mu.Lock()
	ids := s.selectedIDsLocked()
	s.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}
	acks, err := s.backend.ResumeBulk(ids)
	if err != nil {
		return fmt.Errorf("bulk resume: %w", err)
	}
	s.mu.Lock()
	for i, ok := range acks {
		if ok && i < len(ids) {
			delete(s.pendingWaits, ids[i])
		}
	}
	s.mu.Unlock()
	return nil
}

// BulkCancel cancels every selected job that has not already finished.
func (s *Session) BulkCancel() error {
	if !s.beginBulk() {
		return nil
	}
	defer s.endBulk()
	s.mu.Lock()
	ids := s.selectedWhereLocked(func(j *queue.Job) bool { return !j.Status.IsTerminal() })
	s.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}
	acks, err := s.backend.CancelBulk(ids)
	if err != nil {
		return fmt.Errorf("bulk cancel: %w", err)
	}
	s.mu.Lock()
	for i, ok := range acks {
		if ok && i < len(ids) {
			delete(s.pendingWaits, ids[i])
		}
	}
	s.mu.Unlock()
	return nil
}

// BulkRestart re-queues every selected finished job.
func (s *Session) BulkRestart() error {
	if !s.beginBulk() {
		return nil
	}
	defer s.endBulk()
	s.mu.Lock()
	ids := s.selectedWhereLocked(func(j *queue.Job) bool { return j.Status.IsTerminal() })
	s.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.backend.RestartBulk(ids); err != nil {
		return fmt.Errorf("bulk restart: %w", err)
	}
	return nil
}

// MoveToTop reorders the waiting queue so the given jobs come first,
// keeping their current relative order. The complete waiting order is
// computed locally and sent as a single reorder.
func (s *Session) MoveToTop(ids []string) error {
	return s.move(ids, true)
}

// MoveToBottom reorders the waiting queue so the given jobs come last.
func (s *Session) MoveToBottom(ids []string) error {
	return s.move(ids, false)
}

// BulkMoveToTop moves the selected waiting jobs to the front of the queue.
func (s *Session) BulkMoveToTop() error {
	if !s.beginBulk() {
		return nil
	}
	defer s.endBulk()
	s.mu.Lock()
	ids := s.selectedIDsLocked()
	s.mu.Unlock()
	return s.move(ids, true)
}

// BulkMoveToBottom moves the selected waiting jobs to the back of the queue.
func (s *Session) BulkMoveToBottom() error {
	if !s.beginBulk() {
		return nil
	}
	defer s.endBulk()
	s.mu.Lock()
	ids := s.selectedIDsLocked()
	s.mu.Unlock()
	return s.move(ids, false)
}

func (s *Session) move(ids []string, top bool) error {
	s.mu.Lock()
	waiting := s.waitingOrderLocked()
	s.mu.Unlock()
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	targets := make([]string, 0, len(ids))
	remaining := make([]string, 0, len(waiting))
	for _, id := range waiting {
		if _, ok := wanted[id]; ok {
			targets = append(targets, id)
		} else {
			remaining = append(remaining, id)
		}
	}
	if len(targets) == 0 {
		return nil
	}
	var payload []string
	if top {
		payload = append(targets, remaining...)
	} else {
		payload = append(remaining, targets...)
	}
	ok, err := s.backend.Reorder(payload)
	if err != nil {
		return fmt.Errorf("reorder: %w", err)
	}
	if !ok {
		return fmt.Errorf("reorder rejected")
	}
	return nil
}

// waitingOrderLocked returns the ids of jobs occupying queue slots, in
// scheduler order.
func (s *Session) waitingOrderLocked() []string {
	type slot struct {
		id    string
		order *uint64
	}
	slots := make([]slot, 0, s.model.Len())
	for _, job := range s.model.Jobs() {
		if job.Status.IsSchedulable() {
			slots = append(slots, slot{id: job.ID, order: job.QueueOrder})
		}
	}
	sort.SliceStable(slots, func(i, j int) bool {
		oi, oj := slots[i].order, slots[j].order
		switch {
		case oi != nil && oj != nil:
			return *oi < *oj
		case oi != nil:
			return true
		default:
			return false
		}
	})
	ids := make([]string, len(slots))
	for i, sl := range slots {
		ids[i] = sl.id
	}
	return ids
}

// DeleteState returns the delete machine's current position.
func (s *Session) DeleteState() DeleteState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirm != nil {
		return DeleteConfirming
	}
	return DeleteIdle
}

// PendingDelete splits the armed delete selection into jobs that already
// finished and jobs still live, against current state. Jobs that finished
// while the prompt was open land on the terminal side.
func (s *Session) PendingDelete() (terminal, active []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirm == nil {
		return nil, nil
	}
	return s.partitionLocked(s.confirm)
}

func (s *Session) partitionLocked(ids []string) (terminal, active []string) {
	for _, id := range ids {
		job := s.model.Job(id)
		if job == nil {
			continue
		}
		if job.Status.IsTerminal() {
			terminal = append(terminal, id)
		} else {
			active = append(active, id)
		}
	}
	return terminal, active
}

// RequestDelete arms deletion for the current selection. When every
// selected job already finished, the jobs are deleted immediately and no
// prompt is needed; otherwise the selection is captured for confirmation
// and prompted is true.
func (s *Session) RequestDelete() (prompted bool, err error) {
	s.mu.Lock()
	ids := s.selectedIDsLocked()
	if len(ids) == 0 {
		s.mu.Unlock()
		return false, nil
	}
	_, active := s.partitionLocked(ids)
	if len(active) > 0 {
		s.confirm = ids
		s.mu.Unlock()
		return true, nil
	}
	s.mu.Unlock()
	return false, s.deleteNow(ids)
}

// CancelDelete disarms a pending delete confirmation.
func (s *Session) CancelDelete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirm = nil
}

// ConfirmDeleteTerminal deletes only the finished jobs from the armed
// selection and restores the selection to the jobs still running or
// queued, so a follow-up action can target them.
func (s *Session) ConfirmDeleteTerminal() error {
	if !s.beginBulk() {
		return nil
	}
	defer s.endBulk()
	s.mu.Lock()
	if s.confirm == nil {
		s.mu.Unlock()
		return nil
	}
	terminal, active := s.partitionLocked(s.confirm)
	s.confirm = nil
	s.mu.Unlock()
	if len(terminal) > 0 {
		if err := s.deleteNow(terminal); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.setSelectionLocked(active)
	s.mu.Unlock()
	return nil
}

// ConfirmCancelAndDelete cancels every job in the armed selection, waits
// for the cancellations to settle in the model, then deletes whatever
// reached a terminal state. Jobs that did not settle in time survive and
// stay selected.
func (s *Session) ConfirmCancelAndDelete() error {
	if !s.beginBulk() {
		return nil
	}
	defer s.endBulk()
	s.mu.Lock()
	if s.confirm == nil {
		s.mu.Unlock()
		return nil
	}
	pending := make([]string, 0, len(s.confirm))
	for _, id := range s.confirm {
		if s.model.Has(id) {
			pending = append(pending, id)
		}
	}
	s.confirm = nil
	s.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}
	if _, err := s.backend.CancelBulk(pending); err != nil {
		return fmt.Errorf("cancel before delete: %w", err)
	}
	s.awaitTerminal(pending)
	s.mu.Lock()
	terminal, active := s.partitionLocked(pending)
	for _, id := range pending {
		delete(s.pendingWaits, id)
	}
	s.mu.Unlock()
	if len(terminal) > 0 {
		if err := s.deleteNow(terminal); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.setSelectionLocked(active)
	s.mu.Unlock()
	return nil
}

// awaitTerminal polls the model until every listed job is terminal or
// gone, or the settle window closes. Deltas keep applying concurrently
// because command methods do not hold the lock across round-trips.
func (s *Session) awaitTerminal(ids []string) {
	deadline := time.Now().Add(cancelSettleTimeout)
	for {
		s.mu.Lock()
		settled := true
		for _, id := range ids {
			if job := s.model.Job(id); job != nil && !job.Status.IsTerminal() {
				settled = false
				break
			}
		}
		s.mu.Unlock()
		if settled || time.Now().After(deadline) {
			return
		}
		time.Sleep(cancelSettlePoll)
	}
}

// deleteNow removes jobs from the daemon and mirrors the removal locally
// so the rows disappear in the same update that prunes the selection.
func (s *Session) deleteNow(ids []string) error {
	removed, err := s.backend.Remove(ids)
	if err != nil {
		return fmt.Errorf("remove jobs: %w", err)
	}
	s.mu.Lock()
	s.model.RemoveJobs(removed)
	s.pruneSelectionLocked()
	s.prunePendingWaitsLocked()
	s.mu.Unlock()
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
