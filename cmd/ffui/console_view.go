package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"ffui/internal/console"
	"ffui/internal/queue"
)

var (
	consoleTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	consoleMutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	consoleErrorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	consoleOKStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	consoleDoneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	consoleWarnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	consoleHeaderStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	consoleCursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
	consoleDisabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	consolePanelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	consolePlainStyle    = lipgloss.NewStyle()
)

const (
	consoleIDWidth       = 8
	consoleStatusWidth   = 11
	consoleProgressWidth = 7
	consoleElapsedWidth  = 8
	consoleSizeWidth     = 9
)

func (m consoleModel) View() string {
	if m.fatalErr != nil {
		return consoleErrorStyle.Render("fatal: " + m.fatalErr.Error())
	}
	width := m.width
	if width <= 0 {
		width = 100
	}
	height := m.height
	if height <= 0 {
		height = 30
	}

	switch m.uiMode {
	case consoleModeMenu:
		return m.viewMenu(width, height)
	case consoleModeConfirmDelete:
		return m.viewConfirmDelete(width, height)
	default:
		return m.viewBrowse(width, height)
	}
}

func (m consoleModel) viewBrowse(width, height int) string {
	header := consoleTitleStyle.Render("ffui console")
	if m.pollErr != nil {
		header += "  " + consoleErrorStyle.Render("daemon unreachable")
	}
	hints := consoleMutedStyle.Render(truncateRunes(
		"up/down: move | space: select | a: all | enter: menu | w/r/c/R: wait/resume/cancel/restart | t/b: top/bottom | d: delete | /: filter | s/S: sort | m: mode | q: quit",
		width,
	))

	table := m.renderJobTable(width, height-7)
	summary := m.renderSummaryLine(width)
	status := m.renderStatusMessage(width)

	lines := []string{header, hints, table, summary, status}
	if m.uiMode == consoleModeFilter {
		lines = append(lines, m.renderFilterLine(width))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m consoleModel) renderJobTable(width, maxRows int) string {
	if maxRows < 3 {
		maxRows = 3
	}
	fixed := 5 + consoleIDWidth + consoleStatusWidth + consoleProgressWidth + consoleElapsedWidth + consoleSizeWidth + 6
	nameWidth := maxInt(width-fixed, 16)

	if len(m.rows) == 0 {
		empty := "Queue is empty. Add media with `ffui add <path>`."
		if m.view.FiltersActive() {
			empty = "No jobs match the active filters."
		}
		return "\n" + consoleMutedStyle.Render("  "+empty) + "\n"
	}

	lines := make([]string, 0, maxRows+3)
	headerCells := []string{
		"     ",
		padCell("ID", consoleIDWidth, false),
		padCell("FILE", nameWidth, false),
		padCell("STATUS", consoleStatusWidth, false),
		padCell("PROG", consoleProgressWidth, true),
		padCell("ELAPSED", consoleElapsedWidth, true),
		padCell("SIZE", consoleSizeWidth, true),
	}
	lines = append(lines, consoleHeaderStyle.Render(strings.Join(headerCells, " ")))

	start, end := rowWindow(len(m.rows), m.cursor, maxRows)
	if start > 0 {
		lines = append(lines, consoleMutedStyle.Render("  ..."))
	}
	for i := start; i < end; i++ {
		lines = append(lines, m.renderJobRow(i, nameWidth))
	}
	if end < len(m.rows) {
		lines = append(lines, consoleMutedStyle.Render("  ..."))
	}
	return strings.Join(lines, "\n")
}

func (m consoleModel) renderJobRow(index, nameWidth int) string {
	job := m.rows[index]
	cursorMark := "  "
	if index == m.cursor {
		cursorMark = "> "
	}
	selMark := "[ ]"
	if m.session.IsSelected(job.ID) {
		selMark = "[x]"
	}
	statusText := string(job.Status)
	if m.session.HasPendingWait(job.ID) {
		statusText += "*"
	}
	cells := []string{
		cursorMark + selMark,
		padCell(shortJobID(job.ID), consoleIDWidth, false),
		padCell(job.Filename, nameWidth, false),
		padCell(statusText, consoleStatusWidth, false),
		padCell(formatProgress(job), consoleProgressWidth, true),
		padCell(elapsedDisplay(job, m.now), consoleElapsedWidth, true),
		padCell(formatSizeMB(job.OriginalSizeMB), consoleSizeWidth, true),
	}
	if index == m.cursor {
		return consoleCursorStyle.Render(strings.Join(cells, " "))
	}
	cells[3] = statusStyleFor(job.Status).Render(cells[3])
	return strings.Join(cells, " ")
}

func (m consoleModel) renderSummaryLine(width int) string {
	parts := make([]string, 0, 5)
	total := m.session.JobCount()
	if shown := len(m.rows); shown != total {
		parts = append(parts, fmt.Sprintf("%d of %d jobs", shown, total))
	} else {
		parts = append(parts, fmt.Sprintf("%d jobs", total))
	}
	if count := m.session.SelectionCount(); count > 0 {
		parts = append(parts, fmt.Sprintf("%d selected", count))
	}
	sortDesc := fmt.Sprintf("sort %s %s", m.view.Primary.Field, m.view.Primary.Direction)
	if m.view.PrimaryTies(m.rows) {
		sortDesc += " (ties)"
	}
	parts = append(parts, sortDesc, fmt.Sprintf("mode %s", m.view.Mode))
	if text := m.view.TextFilter(); text != "" {
		filterDesc := fmt.Sprintf("filter %q", text)
		if m.view.RegexMode() {
			filterDesc += " (regex)"
		}
		parts = append(parts, filterDesc)
	}
	return consoleMutedStyle.Render(truncateRunes(strings.Join(parts, " | "), width))
}

func (m consoleModel) renderStatusMessage(width int) string {
	if m.pollErr != nil {
		return consoleErrorStyle.Render(truncateRunes("daemon unreachable: "+m.pollErr.Error()+" (retrying)", width))
	}
	msg := strings.TrimSpace(m.statusMessage)
	if msg == "" {
		return ""
	}
	style := consoleOKStyle
	if strings.HasPrefix(msg, "error:") {
		style = consoleErrorStyle
	}
	return style.Render(truncateRunes(msg, width))
}

func (m consoleModel) renderFilterLine(width int) string {
	mode := "text"
	if m.view.RegexMode() {
		mode = "regex"
	}
	line := m.filterInput.View() + consoleMutedStyle.Render("  ["+mode+"]  enter: keep | esc: clear | ctrl+r: regex")
	if err := m.view.RegexError(); err != nil {
		line += "\n" + consoleErrorStyle.Render(truncateRunes("invalid regex: "+err.Error(), width))
	}
	return line
}

func (m consoleModel) viewMenu(width, height int) string {
	if m.menu == nil {
		return m.viewBrowse(width, height)
	}
	targets := m.menu.Targets()
	title := "Job actions"
	if m.menu.Mode() == console.MenuBulk {
		title = fmt.Sprintf("Bulk actions (%d jobs)", len(targets))
	} else if len(targets) == 1 {
		for _, job := range m.rows {
			if job.ID == targets[0] {
				title = truncateRunes(job.Filename, 40)
				break
			}
		}
	}

	actions := console.MenuActions()
	lines := make([]string, 0, len(actions)+4)
	lines = append(lines, consoleTitleStyle.Render(title), "")
	for i, action := range actions {
		label := action.Label()
		enabled := m.menu.Enabled(action)
		if !enabled {
			label += "  (n/a)"
		}
		prefix := "  "
		if i == m.menuIndex {
			prefix = "> "
		}
		line := prefix + label
		switch {
		case i == m.menuIndex:
			line = consoleCursorStyle.Render(line)
		case !enabled:
			line = consoleDisabledStyle.Render(line)
		}
		lines = append(lines, line)
	}
	lines = append(lines, "", consoleMutedStyle.Render("enter: run | esc: close"))
	panel := consolePanelStyle.Render(strings.Join(lines, "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, panel)
}

func (m consoleModel) viewConfirmDelete(width, height int) string {
	terminal, active := m.session.PendingDelete()
	text := fmt.Sprintf(
		"Delete %d job(s)?\n\n%d of them still running or queued.\nConfirming cancels those first, waits for them to settle,\nthen deletes whatever finished.\n\ny/enter: cancel and delete | t: delete finished only | n/esc: keep",
		len(terminal)+len(active), len(active),
	)
	panel := consolePanelStyle.Render(text)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, panel)
}

func statusStyleFor(status queue.Status) lipgloss.Style {
	switch status {
	case queue.StatusProcessing:
		return consoleOKStyle
	case queue.StatusPaused:
		return consoleWarnStyle
	case queue.StatusFailed:
		return consoleErrorStyle
	case queue.StatusCompleted:
		return consoleDoneStyle
	case queue.StatusQueued:
		return consolePlainStyle
	default:
		return consoleMutedStyle
	}
}

// elapsedDisplay prefers the daemon-reported elapsed and extrapolates from
// the current run start between telemetry flushes, so the clock keeps moving
// while an encoder is quiet.
func elapsedDisplay(job *queue.Job, now time.Time) string {
	if job.Status.IsActive() && job.ProcessingStartedMs != nil && !now.IsZero() {
		var base int64
		if job.WaitMetadata != nil && job.WaitMetadata.ProcessedWallMillis != nil {
			base = *job.WaitMetadata.ProcessedWallMillis
		}
		live := base + now.UnixMilli() - *job.ProcessingStartedMs
		if job.ElapsedMs != nil && *job.ElapsedMs > live {
			live = *job.ElapsedMs
		}
		if live < 0 {
			live = 0
		}
		return formatClockMs(live)
	}
	return formatElapsed(job)
}

// rowWindow centers a window of up to max rows around the cursor.
func rowWindow(total, cursor, max int) (start, end int) {
	if total <= max {
		return 0, total
	}
	start = cursor - max/2
	if start < 0 {
		start = 0
	}
	end = start + max
	if end > total {
		end = total
		start = end - max
	}
	return start, end
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}

// padCell pads or truncates to an exact rune width so styled cells line up.
func padCell(s string, width int, right bool) string {
	s = truncateRunes(s, width)
	gap := width - len([]rune(s))
	if gap <= 0 {
		return s
	}
	spaces := strings.Repeat(" ", gap)
	if right {
		return spaces + s
	}
	return s + spaces
}
