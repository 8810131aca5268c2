// Package logs reads the daemon log file incrementally for the CLI and the
// console's log pane.
//
// Tail supports "last N lines" reads via a negative offset, plain forward
// reads from a byte offset, and a bounded follow mode that polls for new
// lines until the wait window expires. Offsets returned by one call feed the
// next, which is what `ffui logs --follow` loops on.
package logs
