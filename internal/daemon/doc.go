// Package daemon composes the queue engine, directory scanner, and store
// into the single background process behind the ffuid socket, and enforces
// one running instance per configuration via a lock file.
package daemon
