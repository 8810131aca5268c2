package main

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"ffui/internal/config"
	"ffui/internal/console"
	"ffui/internal/ipc"
	"ffui/internal/queue"
)

const (
	eventsWaitMillis = 25000
	eventsRetryDelay = 2 * time.Second
)

type consoleUIMode int

const (
	consoleModeBrowse consoleUIMode = iota
	consoleModeFilter
	consoleModeMenu
	consoleModeConfirmDelete
)

type queueEventsMsg struct {
	resp *ipc.QueueEventsResponse
	err  error
}

type pollRetryMsg struct{}

type tickMsg struct{ now time.Time }

type actionDoneMsg struct {
	message string
	err     error
}

type deleteArmedMsg struct {
	prompted bool
	err      error
}

type consoleModel struct {
	session *console.Session
	view    *console.View
	events  *ipc.Client

	rows     []*queue.Job
	cursor   int
	cursorID string

	uiMode      consoleUIMode
	filterInput textinput.Model
	menu        *console.Menu
	menuIndex   int

	ticker  *console.Ticker
	ticking bool
	now     time.Time

	statusMessage string
	pollErr       error
	forceSnapshot bool
	width, height int
	fatalErr      error
}

func newConsoleModel(cfg *config.Config, commands, events *ipc.Client) consoleModel {
	mode := console.ModeDisplay
	field := console.SortAddedTime
	direction := console.Ascending
	var secondary *console.SortSpec
	if cfg != nil {
		if parsed, ok := console.ParseViewMode(cfg.Console.ViewMode); ok {
			mode = parsed
		}
		if parsed, ok := console.ParseSortField(cfg.Console.SortField); ok {
			field = parsed
		}
		if parsed, ok := console.ParseDirection(cfg.Console.SortDirection); ok {
			direction = parsed
		}
		if parsed, ok := console.ParseSortField(cfg.Console.SecondarySortField); ok {
			dir := console.Ascending
			if d, ok := console.ParseDirection(cfg.Console.SecondarySortDirection); ok {
				dir = d
			}
			secondary = &console.SortSpec{Field: parsed, Direction: dir}
		}
	}

	view := console.NewView(mode, console.SortSpec{Field: field, Direction: direction})
	view.Secondary = secondary

	input := textinput.New()
	input.Prompt = "/"
	input.CharLimit = 256

	return consoleModel{
		session:     console.NewSession(console.NewModel(), console.NewIPCBackend(commands)),
		view:        view,
		events:      events,
		filterInput: input,
	}
}

func (m consoleModel) Init() tea.Cmd {
	return m.pollEvents()
}

// pollEvents long-polls the dedicated events connection from the model's
// current cursors, captured now so the closure cannot race later updates.
func (m consoleModel) pollEvents() tea.Cmd {
	client := m.events
	var afterSnapshot, afterDelta uint64
	if !m.forceSnapshot {
		afterSnapshot, afterDelta = m.session.Cursors()
	}
	return func() tea.Msg {
		resp, err := client.QueueEvents(afterSnapshot, afterDelta, eventsWaitMillis)
		return queueEventsMsg{resp: resp, err: err}
	}
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filterInput.Width = maxInt(msg.Width-8, 20)
		return m, nil
	case queueEventsMsg:
		return m.applyEvents(msg)
	case pollRetryMsg:
		return m, m.pollEvents()
	case tickMsg:
		m.now = msg.now
		return m, nil
	case actionDoneMsg:
		if msg.err != nil {
			m.statusMessage = "error: " + msg.err.Error()
		} else if msg.message != "" {
			m.statusMessage = msg.message
		}
		if m.session.DeleteState() == console.DeleteConfirming {
			m.uiMode = consoleModeConfirmDelete
		}
		m.refreshRows()
		return m, nil
	case deleteArmedMsg:
		if msg.err != nil {
			m.statusMessage = "error: " + msg.err.Error()
			return m, nil
		}
		if msg.prompted {
			m.uiMode = consoleModeConfirmDelete
			return m, nil
		}
		m.statusMessage = "deleted finished jobs"
		m.refreshRows()
		return m, nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch m.uiMode {
	case consoleModeFilter:
		return m.updateFilter(keyMsg)
	case consoleModeMenu:
		return m.updateMenu(keyMsg)
	case consoleModeConfirmDelete:
		return m.updateConfirmDelete(keyMsg)
	default:
		return m.updateBrowse(keyMsg)
	}
}

func (m consoleModel) applyEvents(msg queueEventsMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.pollErr = msg.err
		return m, tea.Tick(eventsRetryDelay, func(time.Time) tea.Msg { return pollRetryMsg{} })
	}
	m.pollErr = nil
	m.forceSnapshot = false
	if msg.resp != nil {
		if msg.resp.Snapshot != nil {
			m.session.ApplySnapshot(*msg.resp.Snapshot, msg.resp.DeltaCursor)
		}
		for _, delta := range msg.resp.Deltas {
			if err := m.session.ApplyDelta(delta); err != nil {
				// Fell out of the delta window; ask for a snapshot next poll.
				m.forceSnapshot = true
				break
			}
		}
	}
	m.refreshRows()
	m.syncTicker()
	return m, m.pollEvents()
}

func (m consoleModel) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.stopTicking()
		return m, tea.Quit
	case "up", "k":
		m.moveCursor(-1)
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		return m, nil
	case " ", "space":
		if job := m.cursorJob(); job != nil {
			m.session.ToggleSelect(job.ID)
		}
		return m, nil
	case "a":
		m.toggleSelectAll()
		return m, nil
	case "esc":
		if m.session.SelectionCount() > 0 {
			m.session.ClearSelection()
		} else if m.view.FiltersActive() {
			m.view.ClearFilters()
			m.filterInput.SetValue("")
			m.refreshRows()
		}
		return m, nil
	case "/":
		m.uiMode = consoleModeFilter
		m.filterInput.SetValue(m.view.TextFilter())
		m.filterInput.CursorEnd()
		m.filterInput.Focus()
		return m, nil
	case "ctrl+r":
		m.view.SetRegexMode(!m.view.RegexMode())
		m.refreshRows()
		return m, nil
	case "s":
		m.cycleSortField()
		return m, nil
	case "S":
		m.flipSortDirection()
		return m, nil
	case "m":
		if m.view.Mode == console.ModeDisplay {
			m.view.Mode = console.ModeQueue
		} else {
			m.view.Mode = console.ModeDisplay
		}
		m.refreshRows()
		return m, nil
	case "w":
		return m.runJobOp("wait requested", m.session.Wait, m.session.BulkWait)
	case "r":
		return m.runJobOp("resume requested", m.session.Resume, m.session.BulkResume)
	case "c":
		return m.runJobOp("cancel requested", m.session.Cancel, m.session.BulkCancel)
	case "R":
		return m.runJobOp("restart requested", m.session.Restart, m.session.BulkRestart)
	case "t":
		return m.runMove(true)
	case "b":
		return m.runMove(false)
	case "d":
		if m.session.SelectionCount() == 0 {
			job := m.cursorJob()
			if job == nil {
				return m, nil
			}
			m.session.SetSelection([]string{job.ID})
		}
		session := m.session
		return m, func() tea.Msg {
			prompted, err := session.RequestDelete()
			return deleteArmedMsg{prompted: prompted, err: err}
		}
	case "enter":
		if m.session.SelectionCount() > 1 {
			m.menu = console.OpenBulkMenu(m.session)
		} else if job := m.cursorJob(); job != nil {
			m.menu = console.OpenMenu(m.session, job.ID)
		} else {
			return m, nil
		}
		m.menuIndex = 0
		m.uiMode = consoleModeMenu
		return m, nil
	}
	return m, nil
}

func (m consoleModel) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.uiMode = consoleModeBrowse
		m.filterInput.Blur()
		return m, nil
	case "esc":
		m.uiMode = consoleModeBrowse
		m.filterInput.Blur()
		m.filterInput.SetValue("")
		m.view.SetTextFilter("")
		m.refreshRows()
		return m, nil
	case "ctrl+r":
		m.view.SetRegexMode(!m.view.RegexMode())
		m.refreshRows()
		return m, nil
	}
	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	m.view.SetTextFilter(m.filterInput.Value())
	m.refreshRows()
	return m, cmd
}

func (m consoleModel) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	actions := console.MenuActions()
	switch msg.String() {
	case "esc", "q":
		m.closeMenu()
		return m, nil
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
		return m, nil
	case "down", "j":
		if m.menuIndex < len(actions)-1 {
			m.menuIndex++
		}
		return m, nil
	case "enter":
		action := actions[m.menuIndex]
		menu := m.menu
		if menu == nil || !menu.Enabled(action) {
			m.statusMessage = "action not applicable"
			return m, nil
		}
		m.closeMenu()
		message := strings.ToLower(action.Label())
		return m, func() tea.Msg {
			return actionDoneMsg{message: message, err: menu.Invoke(action)}
		}
	}
	return m, nil
}

func (m *consoleModel) closeMenu() {
	m.menu = nil
	m.uiMode = consoleModeBrowse
}

func (m consoleModel) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	session := m.session
	switch msg.String() {
	case "y", "enter":
		m.uiMode = consoleModeBrowse
		return m, func() tea.Msg {
			return actionDoneMsg{message: "cancelled and deleted", err: session.ConfirmCancelAndDelete()}
		}
	case "t":
		m.uiMode = consoleModeBrowse
		return m, func() tea.Msg {
			return actionDoneMsg{message: "deleted finished jobs", err: session.ConfirmDeleteTerminal()}
		}
	case "n", "esc":
		session.CancelDelete()
		m.uiMode = consoleModeBrowse
		m.statusMessage = "delete cancelled"
		return m, nil
	}
	return m, nil
}

// runJobOp routes a command key to the bulk form when a selection exists and
// to the cursor job otherwise. The round-trip runs off the update loop.
func (m consoleModel) runJobOp(message string, single func(string) error, bulk func() error) (tea.Model, tea.Cmd) {
	if m.session.SelectionCount() > 0 {
		return m, func() tea.Msg {
			return actionDoneMsg{message: message, err: bulk()}
		}
	}
	job := m.cursorJob()
	if job == nil {
		return m, nil
	}
	id := job.ID
	return m, func() tea.Msg {
		return actionDoneMsg{message: message, err: single(id)}
	}
}

func (m consoleModel) runMove(top bool) (tea.Model, tea.Cmd) {
	session := m.session
	if session.SelectionCount() > 0 {
		return m, func() tea.Msg {
			if top {
				return actionDoneMsg{message: "queue order updated", err: session.BulkMoveToTop()}
			}
			return actionDoneMsg{message: "queue order updated", err: session.BulkMoveToBottom()}
		}
	}
	job := m.cursorJob()
	if job == nil {
		return m, nil
	}
	ids := []string{job.ID}
	return m, func() tea.Msg {
		if top {
			return actionDoneMsg{message: "queue order updated", err: session.MoveToTop(ids)}
		}
		return actionDoneMsg{message: "queue order updated", err: session.MoveToBottom(ids)}
	}
}

// refreshRows recomputes the visible list and keeps the cursor glued to the
// same job across reorders, falling back to clamping when it vanished.
func (m *consoleModel) refreshRows() {
	m.rows = m.session.VisibleJobs(m.view)
	if len(m.rows) == 0 {
		m.cursor = 0
		m.cursorID = ""
		return
	}
	if m.cursorID != "" {
		for i, job := range m.rows {
			if job.ID == m.cursorID {
				m.cursor = i
				return
			}
		}
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.cursorID = m.rows[m.cursor].ID
}

// syncTicker holds a ticker subscription exactly while a displayed job is
// running, so an idle console burns no timer.
func (m *consoleModel) syncTicker() {
	if m.ticker == nil {
		return
	}
	active := false
	for _, job := range m.rows {
		if job.Status.IsActive() {
			active = true
			break
		}
	}
	switch {
	case active && !m.ticking:
		m.ticker.Subscribe()
		m.ticking = true
	case !active && m.ticking:
		m.ticker.Unsubscribe()
		m.ticking = false
	}
}

func (m *consoleModel) stopTicking() {
	if m.ticking {
		m.ticker.Unsubscribe()
		m.ticking = false
	}
}

func (m *consoleModel) moveCursor(direction int) {
	if len(m.rows) == 0 {
		return
	}
	m.cursor += direction
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	m.cursorID = m.rows[m.cursor].ID
}

func (m consoleModel) cursorJob() *queue.Job {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.cursor]
}

func (m *consoleModel) toggleSelectAll() {
	if len(m.rows) == 0 {
		return
	}
	allSelected := true
	ids := make([]string, len(m.rows))
	for i, job := range m.rows {
		ids[i] = job.ID
		if !m.session.IsSelected(job.ID) {
			allSelected = false
		}
	}
	if allSelected {
		m.session.ClearSelection()
		return
	}
	m.session.SetSelection(ids)
}

func (m *consoleModel) cycleSortField() {
	fields := console.SortFields()
	next := 0
	for i, field := range fields {
		if field == m.view.Primary.Field {
			next = (i + 1) % len(fields)
			break
		}
	}
	m.view.Primary.Field = fields[next]
	m.refreshRows()
}

func (m *consoleModel) flipSortDirection() {
	if m.view.Primary.Direction == console.Ascending {
		m.view.Primary.Direction = console.Descending
	} else {
		m.view.Primary.Direction = console.Ascending
	}
	m.refreshRows()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
