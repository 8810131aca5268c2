package console

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"

	"ffui/internal/queue"
)

// MenuMode fixes how a menu routes its actions for its whole lifetime.
type MenuMode int

const (
	// MenuSingle targets one job; opening it collapses the selection to
	// that job.
	MenuSingle MenuMode = iota
	// MenuBulk targets the multi-selection as it was when the menu opened.
	MenuBulk
)

// MenuAction names a context menu entry.
type MenuAction string

const (
	ActionWait           MenuAction = "wait"
	ActionResume         MenuAction = "resume"
	ActionRestart        MenuAction = "restart"
	ActionCancel         MenuAction = "cancel"
	ActionMoveTop        MenuAction = "moveTop"
	ActionMoveBottom     MenuAction = "moveBottom"
	ActionDelete         MenuAction = "delete"
	ActionRevealInput    MenuAction = "revealInput"
	ActionRevealOutput   MenuAction = "revealOutput"
	ActionCopyInputPath  MenuAction = "copyInputPath"
	ActionCopyOutputPath MenuAction = "copyOutputPath"
)

var menuActions = []MenuAction{
	ActionWait,
	ActionResume,
	ActionRestart,
	ActionCancel,
	ActionMoveTop,
	ActionMoveBottom,
	ActionDelete,
	ActionRevealInput,
	ActionRevealOutput,
	ActionCopyInputPath,
	ActionCopyOutputPath,
}

// MenuActions returns the menu entries in display order.
func MenuActions() []MenuAction {
	cp := make([]MenuAction, len(menuActions))
	copy(cp, menuActions)
	return cp
}

// Label returns the human-readable menu entry text.
func (a MenuAction) Label() string {
	switch a {
	case ActionWait:
		return "Wait"
	case ActionResume:
		return "Resume"
	case ActionRestart:
		return "Restart"
	case ActionCancel:
		return "Cancel"
	case ActionMoveTop:
		return "Move to top"
	case ActionMoveBottom:
		return "Move to bottom"
	case ActionDelete:
		return "Delete"
	case ActionRevealInput:
		return "Reveal input file"
	case ActionRevealOutput:
		return "Reveal output file"
	case ActionCopyInputPath:
		return "Copy input path"
	case ActionCopyOutputPath:
		return "Copy output path"
	}
	return string(a)
}

// Hooks for the platform integrations, swapped out by tests.
var (
	revealInFileManager = revealPath
	writeClipboard      = clipboard.WriteAll
)

// Menu is one opened context menu. Its mode is fixed at open time, so a
// selection change underneath cannot silently turn a single action into a
// bulk one.
type Menu struct {
	session *Session
	mode    MenuMode
	target  string
}

// OpenMenu opens a single-job menu and collapses the selection to that
// job, matching what the user sees highlighted.
func OpenMenu(session *Session, jobID string) *Menu {
	session.SetSelection([]string{jobID})
	return &Menu{session: session, mode: MenuSingle, target: jobID}
}

// OpenBulkMenu opens a menu over the current multi-selection, which is
// left untouched.
func OpenBulkMenu(session *Session) *Menu {
	return &Menu{session: session, mode: MenuBulk}
}

// Mode returns the mode the menu was opened with.
func (m *Menu) Mode() MenuMode {
	return m.mode
}

// Targets returns the job ids the menu acts on right now. A single menu
// whose job disappeared returns nothing.
func (m *Menu) Targets() []string {
	if m.mode == MenuSingle {
		if m.session.Model().Has(m.target) {
			return []string{m.target}
		}
		return nil
	}
	return m.session.Selected()
}

// Enabled reports whether an action applies to at least one target. A
// disabled entry renders greyed out rather than silently doing nothing.
func (m *Menu) Enabled(action MenuAction) bool {
	targets := m.Targets()
	if len(targets) == 0 {
		return false
	}
	switch action {
	case ActionWait:
		return m.anyTarget(targets, m.session.CanWait)
	case ActionResume:
		return m.anyTarget(targets, m.session.CanResume)
	case ActionRestart:
		return m.anyTarget(targets, m.session.CanRestart)
	case ActionCancel:
		return m.anyTarget(targets, m.session.CanCancel)
	case ActionMoveTop, ActionMoveBottom:
		return m.anyTarget(targets, m.session.CanReorder)
	case ActionDelete:
		return true
	case ActionRevealInput, ActionCopyInputPath:
		return len(m.resolvePaths(targets, true)) > 0
	case ActionRevealOutput, ActionCopyOutputPath:
		return len(m.resolvePaths(targets, false)) > 0
	}
	return false
}

func (m *Menu) anyTarget(targets []string, pred func(string) bool) bool {
	for _, id := range targets {
		if pred(id) {
			return true
		}
	}
	return false
}

// Invoke runs the action through the session, routed by the menu's fixed
// mode.
func (m *Menu) Invoke(action MenuAction) error {
	if m.mode == MenuSingle {
		return m.invokeSingle(action)
	}
	return m.invokeBulk(action)
}

func (m *Menu) invokeSingle(action MenuAction) error {
	id := m.target
	switch action {
	case ActionWait:
		return m.session.Wait(id)
	case ActionResume:
		return m.session.Resume(id)
	case ActionRestart:
		return m.session.Restart(id)
	case ActionCancel:
		return m.session.Cancel(id)
	case ActionMoveTop:
		return m.session.MoveToTop([]string{id})
	case ActionMoveBottom:
		return m.session.MoveToBottom([]string{id})
	case ActionDelete:
		_, err := m.session.RequestDelete()
		return err
	case ActionRevealInput:
		return m.reveal(true)
	case ActionRevealOutput:
		return m.reveal(false)
	case ActionCopyInputPath:
		return m.copyPaths(true)
	case ActionCopyOutputPath:
		return m.copyPaths(false)
	}
	return fmt.Errorf("unknown menu action %q", action)
}

func (m *Menu) invokeBulk(action MenuAction) error {
	switch action {
	case ActionWait:
		return m.session.BulkWait()
	case ActionResume:
		return m.session.BulkResume()
	case ActionRestart:
		return m.session.BulkRestart()
	case ActionCancel:
		return m.session.BulkCancel()
	case ActionMoveTop:
		return m.session.BulkMoveToTop()
	case ActionMoveBottom:
		return m.session.BulkMoveToBottom()
	case ActionDelete:
		_, err := m.session.RequestDelete()
		return err
	case ActionRevealInput:
		return m.reveal(true)
	case ActionRevealOutput:
		return m.reveal(false)
	case ActionCopyInputPath:
		return m.copyPaths(true)
	case ActionCopyOutputPath:
		return m.copyPaths(false)
	}
	return fmt.Errorf("unknown menu action %q", action)
}

// reveal opens the file manager at the first target with a resolvable
// path.
func (m *Menu) reveal(input bool) error {
	paths := m.resolvePaths(m.Targets(), input)
	if len(paths) == 0 {
		return fmt.Errorf("no path to reveal")
	}
	return revealInFileManager(paths[0])
}

// copyPaths joins the resolvable target paths with newlines and writes
// them to the clipboard. With nothing resolvable the clipboard is left
// alone.
func (m *Menu) copyPaths(input bool) error {
	paths := m.resolvePaths(m.Targets(), input)
	if len(paths) == 0 {
		return nil
	}
	if err := writeClipboard(strings.Join(paths, "\n")); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}

func (m *Menu) resolvePaths(targets []string, input bool) []string {
	paths := make([]string, 0, len(targets))
	for _, id := range targets {
		in, out := m.session.JobPaths(id)
		path := out
		if input {
			path = in
		}
		if path != "" {
			paths = append(paths, path)
		}
	}
	return paths
}

// CanReorder reports whether the job occupies a queue slot and can move.
func (s *Session) CanReorder(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.model.Job(id)
	return job != nil && job.Status.IsSchedulable()
}

// JobPaths resolves the job's input and output paths for reveal and copy.
// The input falls back to the bare filename, the output to the in-flight
// partial output of a paused encode; either may still come back empty.
func (s *Session) JobPaths(id string) (input, output string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.model.Job(id)
	if job == nil {
		return "", ""
	}
	return inputPathOf(job), outputPathOf(job)
}

func inputPathOf(job *queue.Job) string {
	if job.InputPath != "" {
		return job.InputPath
	}
	return job.Filename
}

func outputPathOf(job *queue.Job) string {
	if job.OutputPath != "" {
		return job.OutputPath
	}
	if job.WaitMetadata != nil {
		return job.WaitMetadata.TmpOutputPath
	}
	return ""
}

// revealPath opens the platform file manager with the path selected where
// the platform supports it, or at the containing directory otherwise.
func revealPath(path string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", "-R", path).Start()
	case "windows":
		return exec.Command("explorer", "/select,"+path).Start()
	default:
		return exec.Command("xdg-open", filepath.Dir(path)).Start()
	}
}
