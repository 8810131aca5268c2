// Package engine owns the daemon-side authoritative transcode queue: job
// records, the waiting order, worker scheduling, and the snapshot/delta
// revision stream consumed by clients.
//
// All state lives behind one mutex. Workers run encodes through the
// services clients and communicate pause/cancel/restart intent through
// request flags observed at progress checkpoints, so an encoder is always
// stopped by its own worker and every status transition happens in exactly
// one place. Structural changes (add, remove, reorder, status) bump the
// snapshot revision and invalidate pending deltas; high-frequency progress
// flows through coalesced delta patches layered on the current snapshot.
package engine
