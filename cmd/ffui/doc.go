// Package main hosts the ffui CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC calls
// against the ffuid daemon: submitting files, inspecting and reordering the
// queue, pausing and resuming encodes, tailing logs, and daemon lifecycle
// control. `ffui console` starts the full-screen interactive console built on
// internal/console. Configuration resolution and socket discovery are
// centralized here so subcommands can focus on user experience instead of
// wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
