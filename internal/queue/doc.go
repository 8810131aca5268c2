// Package queue defines the transcode job model shared by the daemon and its
// clients, plus the SQLite store that keeps jobs durable across restarts.
//
// Jobs carry their full lifecycle state: status, scheduling order, progress,
// telemetry captured while an encoder runs, and the wait metadata needed to
// resume a paused encode from its last completed segment. The wire types in
// wire.go (State, Delta, JobPatch) are the snapshot and patch shapes exchanged
// over IPC; their JSON field names are part of the protocol and must stay
// stable.
//
// The database is transient storage for in-flight and recently finished jobs,
// not a long-term archive. Schema changes bump schemaVersion; users clear the
// database to adopt a new schema.
package queue
