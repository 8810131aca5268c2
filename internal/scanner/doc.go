// Package scanner sweeps watched directories for media files and feeds them
// into the queue as scan-sourced jobs.
//
// Each sweep walks the configured directories, filters by extension and
// minimum size, and submits new paths as one batch sharing a batch id. The
// engine's own input-path dedupe makes resubmission harmless, but the scanner
// also remembers what it already offered for the lifetime of the daemon so a
// file removed from the queue by the user is not silently re-added on the
// next sweep.
package scanner
