package console_test

import (
	"testing"

	"ffui/internal/console"
	"ffui/internal/queue"
)

func TestOpenMenuCollapsesSelection(t *testing.T) {
	b := &stubBackend{}
	s := newSession(t, b,
		testJob("a", queue.StatusQueued),
		testJob("b", queue.StatusQueued),
	)
	s.ToggleSelect("a")
	s.ToggleSelect("b")

	m := console.OpenMenu(s, "a")
	if m.Mode() != console.MenuSingle {
		t.Fatal("expected single mode")
	}
	if s.SelectionCount() != 1 || !s.IsSelected("a") {
		t.Fatal("single menu should collapse the selection to its target")
	}
	targets := m.Targets()
	if len(targets) != 1 || targets[0] != "a" {
		t.Fatalf("unexpected targets: %v", targets)
	}
}

func TestOpenBulkMenuPreservesSelection(t *testing.T) {
	b := &stubBackend{}
	s := newSession(t, b,
		testJob("a", queue.StatusQueued),
		testJob("b", queue.StatusQueued),
	)
	s.ToggleSelect("b")
	s.ToggleSelect("a")

	m := console.OpenBulkMenu(s)
	if m.Mode() != console.MenuBulk {
		t.Fatal("expected bulk mode")
	}
	if s.SelectionCount() != 2 {
		t.Fatal("bulk menu must not touch the selection")
	}
	assertOrder(t, m.Targets(), []string{"a", "b"})
}

func TestMenuEnablementFollowsJobState(t *testing.T) {
	b := &stubBackend{}
	s := newSession(t, b,
		testJob("running", queue.StatusProcessing),
		testJob("done", queue.StatusCompleted),
		queuedJob("waiting", 0),
	)

	m := console.OpenMenu(s, "running")
	if !m.Enabled(console.ActionWait) || !m.Enabled(console.ActionCancel) {
		t.Fatal("running job should allow wait and cancel")
	}
	if m.Enabled(console.ActionRestart) || m.Enabled(console.ActionResume) {
		t.Fatal("running job without pending wait should not allow restart or resume")
	}
	if m.Enabled(console.ActionMoveTop) {
		t.Fatal("running job holds no queue slot to move")
	}

	m = console.OpenMenu(s, "done")
	if !m.Enabled(console.ActionRestart) || !m.Enabled(console.ActionDelete) {
		t.Fatal("finished job should allow restart and delete")
	}
	if m.Enabled(console.ActionWait) || m.Enabled(console.ActionCancel) {
		t.Fatal("finished job should not allow wait or cancel")
	}

	m = console.OpenMenu(s, "waiting")
	if !m.Enabled(console.ActionMoveTop) || !m.Enabled(console.ActionMoveBottom) {
		t.Fatal("waiting job should be movable")
	}
}

func TestMenuTargetsVanishWithJob(t *testing.T) {
	b := &stubBackend{}
	s := newSession(t, b, testJob("a", queue.StatusQueued))

	m := console.OpenMenu(s, "a")
	s.ApplySnapshot(queue.State{SnapshotRevision: 2}, 0)

	if len(m.Targets()) != 0 {
		t.Fatalf("vanished job still targeted: %v", m.Targets())
	}
	if m.Enabled(console.ActionDelete) {
		t.Fatal("menu for a vanished job should disable everything")
	}
}

func TestRevealUsesPathFallbacks(t *testing.T) {
	var revealed []string
	restore := console.SetRevealForTest(func(path string) error {
		revealed = append(revealed, path)
		return nil
	})
	defer restore()

	pausedMid := testJob("pausedMid", queue.StatusPaused)
	pausedMid.WaitMetadata = &queue.WaitMetadata{TmpOutputPath: "/tmp/pausedMid.partial.mkv"}
	bare := testJob("bare", queue.StatusQueued)
	bare.InputPath = ""

	b := &stubBackend{}
	s := newSession(t, b, pausedMid, bare)

	m := console.OpenMenu(s, "pausedMid")
	if !m.Enabled(console.ActionRevealOutput) {
		t.Fatal("partial output should make reveal available")
	}
	if err := m.Invoke(console.ActionRevealOutput); err != nil {
		t.Fatalf("reveal output: %v", err)
	}
	if len(revealed) != 1 || revealed[0] != "/tmp/pausedMid.partial.mkv" {
		t.Fatalf("unexpected reveal target: %v", revealed)
	}

	// Input falls back to the bare filename when no path is recorded.
	m = console.OpenMenu(s, "bare")
	if !m.Enabled(console.ActionRevealInput) {
		t.Fatal("filename fallback should make reveal available")
	}
	if err := m.Invoke(console.ActionRevealInput); err != nil {
		t.Fatalf("reveal input: %v", err)
	}
	if revealed[1] != "bare.mkv" {
		t.Fatalf("expected filename fallback, got %q", revealed[1])
	}

	if m.Enabled(console.ActionRevealOutput) {
		t.Fatal("job without any output should disable reveal")
	}
	if err := m.Invoke(console.ActionRevealOutput); err == nil {
		t.Fatal("forcing a disabled reveal should error, not no-op")
	}
}

func TestCopyJoinsResolvablePaths(t *testing.T) {
	var copied []string
	restore := console.SetClipboardForTest(func(text string) error {
		copied = append(copied, text)
		return nil
	})
	defer restore()

	a := testJob("a", queue.StatusQueued)
	a.InputPath = "/in/a.mkv"
	fallback := testJob("fallback", queue.StatusQueued)
	fallback.InputPath = ""

	b := &stubBackend{}
	s := newSession(t, b, a, fallback)
	s.ToggleSelect("a")
	s.ToggleSelect("fallback")

	m := console.OpenBulkMenu(s)
	if err := m.Invoke(console.ActionCopyInputPath); err != nil {
		t.Fatalf("copy input paths: %v", err)
	}
	if len(copied) != 1 || copied[0] != "/in/a.mkv\nfallback.mkv" {
		t.Fatalf("unexpected clipboard payload: %q", copied)
	}

	// With nothing resolvable the clipboard is left untouched.
	if err := m.Invoke(console.ActionCopyOutputPath); err != nil {
		t.Fatalf("copy with no paths: %v", err)
	}
	if len(copied) != 1 {
		t.Fatalf("empty copy should not write, got %q", copied)
	}
}

func TestMenuRoutesByFixedMode(t *testing.T) {
	b := &stubBackend{}
	s := newSession(t, b,
		testJob("p1", queue.StatusProcessing),
		testJob("p2", queue.StatusProcessing),
	)

	m := console.OpenMenu(s, "p1")
	if err := m.Invoke(console.ActionWait); err != nil {
		t.Fatalf("single wait: %v", err)
	}
	if len(b.waits) != 1 || b.waits[0] != "p1" {
		t.Fatalf("single menu should use the single command, got %v", b.waits)
	}

	s.SetSelection([]string{"p1", "p2"})
	bulk := console.OpenBulkMenu(s)
	if err := bulk.Invoke(console.ActionWait); err != nil {
		t.Fatalf("bulk wait: %v", err)
	}
	if len(b.waitBulks) != 1 || len(b.waitBulks[0]) != 2 {
		t.Fatalf("bulk menu should use the bulk command, got %v", b.waitBulks)
	}
}

func TestMenuDeleteArmsConfirmation(t *testing.T) {
	b := &stubBackend{}
	s := newSession(t, b, testJob("live", queue.StatusProcessing))

	m := console.OpenMenu(s, "live")
	if err := m.Invoke(console.ActionDelete); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.DeleteState() != console.DeleteConfirming {
		t.Fatal("delete on a live job should arm the confirmation")
	}
}

func TestMenuActionLabels(t *testing.T) {
	actions := console.MenuActions()
	if len(actions) != 11 {
		t.Fatalf("expected 11 menu actions, got %d", len(actions))
	}
	for _, action := range actions {
		if action.Label() == string(action) {
			t.Fatalf("action %q has no display label", action)
		}
	}
}
