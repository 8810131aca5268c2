// Package logging assembles structured slog loggers and formatting helpers
// used across FFUI.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so daemon code can tag log
// lines with job, batch, and request IDs without threading them by hand.
// The package also provides a no-op logger for tests and wiring code that
// cannot fail.
package logging
