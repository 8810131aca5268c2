package main

import (
	"testing"
)

func TestDaemonStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"daemon", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("daemon status failed: %v", err)
	}
	requireContains(t, stdout, "not running")
}

func TestDaemonStopCommandNotRunning(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"daemon", "stop"}, env.socketPath+".gone", env.configPath)
	if err != nil {
		t.Fatalf("daemon stop against dead socket failed: %v", err)
	}
	requireContains(t, stdout, "Daemon is not running")
}
