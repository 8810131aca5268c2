// Package services defines shared utilities consumed by the transcode worker
// and the external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, worker stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent queue statuses (failed vs skipped).
//   - Thin abstractions that make command execution and progress streaming from
//     external tools testable.
//
// Use these helpers when wiring new worker logic so operational behaviour
// (error handling, observability, retries) stays uniform across the daemon.
package services
