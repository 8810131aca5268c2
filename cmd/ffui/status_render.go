package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// statusKind selects badge text and color for one status line.
type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusIndent     = "  "
	statusLabelWidth = 16
)

var statusBadges = map[statusKind]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

// formatStatusLine lays out one aligned "Label:  [BADGE] message" line.
func formatStatusLine(label string, kind statusKind, message string, colorize bool) string {
	badge, ok := statusBadges[kind]
	if !ok {
		badge = statusBadges[statusInfo]
	}

	var b strings.Builder
	b.WriteString(statusIndent)
	fmt.Fprintf(&b, "%-*s", statusLabelWidth, label+":")
	b.WriteString(" [")
	b.WriteString(badge.label)
	b.WriteByte(']')
	if message != "" {
		b.WriteByte(' ')
		b.WriteString(message)
	}
	if colorize && badge.color != "" {
		return badge.color + b.String() + ansiReset
	}
	return b.String()
}

// formatSectionHeader returns the section title and an underline of equal
// width.
func formatSectionHeader(title string, colorize bool) []string {
	head := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", len(head))
	if colorize {
		head = ansiBlue + head + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{head, rule}
}

// shouldColorize enables ANSI colors only when writing straight to a terminal.
func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
