package main

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"ffui/internal/console"
	"ffui/internal/ipc"
	"ffui/internal/queue"
)

func consoleTestJob(id, filename string, status queue.Status) *queue.Job {
	return &queue.Job{
		ID:          id,
		Filename:    filename,
		Type:        queue.JobTypeVideo,
		Source:      queue.SourceManual,
		Status:      status,
		InputPath:   "/media/" + filename,
		CreatedAtMs: time.Now().UnixMilli(),
	}
}

// seedConsoleModel builds a model with no daemon behind it. Tests must not
// invoke commands returned from Init or applyEvents, which would dereference
// the nil events client.
func seedConsoleModel(t *testing.T, jobs ...*queue.Job) consoleModel {
	t.Helper()
	m := newConsoleModel(nil, nil, nil)
	m.session.ApplySnapshot(queue.State{SnapshotRevision: 1, Jobs: jobs}, 0)
	m.refreshRows()
	return m
}

func updateModel(t *testing.T, m consoleModel, msg tea.Msg) (consoleModel, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	next, ok := updated.(consoleModel)
	if !ok {
		t.Fatalf("Update returned unexpected model type %T", updated)
	}
	return next, cmd
}

func pressKey(t *testing.T, m consoleModel, key string) consoleModel {
	t.Helper()
	next, _ := updateModel(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
	return next
}

func TestConsoleModelNavigationAndSelection(t *testing.T) {
	m := seedConsoleModel(t,
		consoleTestJob("aaaa1111", "alpha.mkv", queue.StatusQueued),
		consoleTestJob("bbbb2222", "beta.mkv", queue.StatusQueued),
		consoleTestJob("cccc3333", "gamma.mkv", queue.StatusQueued),
	)
	if len(m.rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(m.rows))
	}
	if m.cursor != 0 {
		t.Fatalf("expected cursor at 0, got %d", m.cursor)
	}

	m = pressKey(t, m, "j")
	if m.cursor != 1 {
		t.Fatalf("expected cursor at 1 after j, got %d", m.cursor)
	}
	m = pressKey(t, m, "k")
	if m.cursor != 0 {
		t.Fatalf("expected cursor at 0 after k, got %d", m.cursor)
	}
	m = pressKey(t, m, "k")
	if m.cursor != 0 {
		t.Fatalf("cursor should clamp at the top, got %d", m.cursor)
	}

	m = pressKey(t, m, "j")
	m = pressKey(t, m, " ")
	if !m.session.IsSelected(m.rows[1].ID) {
		t.Fatal("space should select the cursor job")
	}
	if m.session.SelectionCount() != 1 {
		t.Fatalf("expected 1 selected, got %d", m.session.SelectionCount())
	}

	m = pressKey(t, m, "a")
	if m.session.SelectionCount() != 3 {
		t.Fatalf("expected select-all to select 3, got %d", m.session.SelectionCount())
	}
	m = pressKey(t, m, "a")
	if m.session.SelectionCount() != 0 {
		t.Fatalf("expected select-all toggle to clear, got %d", m.session.SelectionCount())
	}

	m = pressKey(t, m, " ")
	next, _ := updateModel(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if next.session.SelectionCount() != 0 {
		t.Fatal("esc should clear the selection")
	}
}

func TestConsoleModelFilterMode(t *testing.T) {
	m := seedConsoleModel(t,
		consoleTestJob("aaaa1111", "movie.mkv", queue.StatusQueued),
		consoleTestJob("bbbb2222", "song.mp3", queue.StatusQueued),
	)

	m = pressKey(t, m, "/")
	if m.uiMode != consoleModeFilter {
		t.Fatalf("expected filter mode, got %d", m.uiMode)
	}

	m, _ = updateModel(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("movie")})
	if got := m.view.TextFilter(); got != "movie" {
		t.Fatalf("expected text filter %q, got %q", "movie", got)
	}
	if len(m.rows) != 1 || m.rows[0].Filename != "movie.mkv" {
		t.Fatalf("expected the filter to narrow to movie.mkv, got %d rows", len(m.rows))
	}

	m, _ = updateModel(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.uiMode != consoleModeBrowse {
		t.Fatal("enter should return to browse mode")
	}
	if m.view.TextFilter() != "movie" {
		t.Fatal("enter should keep the filter")
	}

	m = pressKey(t, m, "/")
	m, _ = updateModel(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.view.TextFilter() != "" {
		t.Fatal("esc should clear the filter")
	}
	if len(m.rows) != 2 {
		t.Fatalf("expected both rows back after clearing, got %d", len(m.rows))
	}
}

func TestConsoleModelDeleteConfirmFlow(t *testing.T) {
	m := seedConsoleModel(t,
		consoleTestJob("aaaa1111", "active.mkv", queue.StatusProcessing),
	)

	next, cmd := updateModel(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	if cmd == nil {
		t.Fatal("d should produce a delete command")
	}
	msg, ok := cmd().(deleteArmedMsg)
	if !ok {
		t.Fatalf("expected deleteArmedMsg, got %T", cmd())
	}
	if msg.err != nil {
		t.Fatalf("RequestDelete failed: %v", msg.err)
	}
	if !msg.prompted {
		t.Fatal("deleting an active job should prompt for confirmation")
	}

	next, _ = updateModel(t, next, msg)
	if next.uiMode != consoleModeConfirmDelete {
		t.Fatalf("expected confirm-delete mode, got %d", next.uiMode)
	}

	next = pressKey(t, next, "n")
	if next.uiMode != consoleModeBrowse {
		t.Fatal("n should return to browse mode")
	}
	if next.session.DeleteState() != console.DeleteIdle {
		t.Fatal("n should cancel the pending delete")
	}
	if next.statusMessage != "delete cancelled" {
		t.Fatalf("unexpected status message %q", next.statusMessage)
	}
}

func TestConsoleModelMenuFlow(t *testing.T) {
	m := seedConsoleModel(t,
		consoleTestJob("aaaa1111", "movie.mkv", queue.StatusQueued),
	)

	m, _ = updateModel(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.uiMode != consoleModeMenu {
		t.Fatalf("enter should open the menu, got mode %d", m.uiMode)
	}
	if m.menu == nil {
		t.Fatal("menu should be set")
	}
	if m.menuIndex != 0 {
		t.Fatalf("menu cursor should start at 0, got %d", m.menuIndex)
	}

	m = pressKey(t, m, "j")
	if m.menuIndex != 1 {
		t.Fatalf("expected menu cursor 1 after j, got %d", m.menuIndex)
	}
	m = pressKey(t, m, "k")
	m = pressKey(t, m, "k")
	if m.menuIndex != 0 {
		t.Fatalf("menu cursor should clamp at 0, got %d", m.menuIndex)
	}

	// First action is wait, which a queued job cannot do.
	m, cmd := updateModel(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatal("disabled action should not produce a command")
	}
	if m.statusMessage != "action not applicable" {
		t.Fatalf("unexpected status message %q", m.statusMessage)
	}

	m, _ = updateModel(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.uiMode != consoleModeBrowse {
		t.Fatal("esc should close the menu")
	}
}

func TestConsoleModelAppliesQueueEvents(t *testing.T) {
	m := newConsoleModel(nil, nil, nil)

	resp := &ipc.QueueEventsResponse{
		Snapshot: &queue.State{
			SnapshotRevision: 3,
			Jobs: []*queue.Job{
				consoleTestJob("aaaa1111", "one.mkv", queue.StatusQueued),
				consoleTestJob("bbbb2222", "two.mkv", queue.StatusQueued),
			},
		},
		DeltaCursor: 0,
	}
	next, cmd := updateModel(t, m, queueEventsMsg{resp: resp})
	if cmd == nil {
		t.Fatal("applyEvents should schedule the next poll")
	}
	if len(next.rows) != 2 {
		t.Fatalf("expected 2 rows after snapshot, got %d", len(next.rows))
	}
	if snap, _ := next.session.Cursors(); snap != 3 {
		t.Fatalf("expected snapshot cursor 3, got %d", snap)
	}

	// A delta for a revision the model never saw forces a fresh snapshot.
	stale := &ipc.QueueEventsResponse{
		Deltas: []queue.Delta{{BaseSnapshotRevision: 99, DeltaRevision: 1}},
	}
	next, _ = updateModel(t, next, queueEventsMsg{resp: stale})
	if !next.forceSnapshot {
		t.Fatal("stale delta should flag a forced snapshot")
	}
}

func TestConsoleModelPollErrorRetries(t *testing.T) {
	m := newConsoleModel(nil, nil, nil)

	next, cmd := updateModel(t, m, queueEventsMsg{err: errors.New("connection refused")})
	if next.pollErr == nil {
		t.Fatal("poll error should be recorded")
	}
	if cmd == nil {
		t.Fatal("poll error should schedule a retry")
	}

	next, _ = updateModel(t, next, queueEventsMsg{resp: &ipc.QueueEventsResponse{}})
	if next.pollErr != nil {
		t.Fatal("successful poll should clear the error")
	}
}

func TestConsoleModelTickAndResize(t *testing.T) {
	m := seedConsoleModel(t, consoleTestJob("aaaa1111", "movie.mkv", queue.StatusProcessing))

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	m, _ = updateModel(t, m, tickMsg{now: now})
	if !m.now.Equal(now) {
		t.Fatalf("tick should update the clock, got %v", m.now)
	}

	m, _ = updateModel(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	if m.width != 120 || m.height != 40 {
		t.Fatalf("unexpected size %dx%d", m.width, m.height)
	}
}

func TestConsoleModelSortCycling(t *testing.T) {
	m := seedConsoleModel(t,
		consoleTestJob("aaaa1111", "zebra.mkv", queue.StatusQueued),
		consoleTestJob("bbbb2222", "apple.mkv", queue.StatusQueued),
	)
	if m.view.Primary.Field != console.SortAddedTime {
		t.Fatalf("expected default sort field, got %v", m.view.Primary.Field)
	}

	start := m.view.Primary.Field
	m = pressKey(t, m, "s")
	if m.view.Primary.Field == start {
		t.Fatal("s should advance the sort field")
	}

	m = pressKey(t, m, "S")
	if m.view.Primary.Direction != console.Descending {
		t.Fatal("S should flip the sort direction")
	}

	m = pressKey(t, m, "m")
	if m.view.Mode != console.ModeQueue {
		t.Fatal("m should switch to queue mode")
	}
	m = pressKey(t, m, "m")
	if m.view.Mode != console.ModeDisplay {
		t.Fatal("m should switch back to display mode")
	}
}
