package main

import (
	"strings"
	"testing"
)

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	requireContains(t, stdout, "== Daemon ==")
	requireContains(t, stdout, "not running")
	requireContains(t, stdout, "== Paths ==")
	requireContains(t, stdout, "Socket")
	requireContains(t, stdout, "== Queue ==")
	requireContains(t, stdout, "Queue is empty")

	movie := writeMediaFile(t, t.TempDir(), "movie.mkv")
	if _, _, err := runCLI(t, []string{"add", movie}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	stdout, _, err = runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	requireContains(t, stdout, "queued")
	if strings.Contains(stdout, "Queue is empty") {
		t.Fatalf("queue should not report empty with a job present:\n%s", stdout)
	}
}

func TestStatusCommandJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"status", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status --json failed: %v", err)
	}
	requireContains(t, stdout, `"running": false`)
	requireContains(t, stdout, `"socketPath"`)
}

func TestStatusCommandUnreachableDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	// Point at a socket nothing listens on. The snapshot falls back to a
	// local report instead of failing.
	stdout, _, err := runCLI(t, []string{"status"}, env.socketPath+".gone", env.configPath)
	if err != nil {
		t.Fatalf("status against dead socket failed: %v", err)
	}
	requireContains(t, stdout, "not running")
}

func TestBuildQueueStatusRows(t *testing.T) {
	if rows := buildQueueStatusRows(nil); rows != nil {
		t.Fatalf("expected nil rows for empty stats, got %v", rows)
	}

	rows := buildQueueStatusRows(map[string]int{
		"completed":  2,
		"processing": 1,
		"queued":     3,
		"zombie":     1,
		"failed":     0,
	})
	got := make([]string, len(rows))
	for i, row := range rows {
		got[i] = row[0]
	}
	want := []string{"processing", "queued", "completed", "zombie"}
	if len(got) != len(want) {
		t.Fatalf("row statuses = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row %d = %q, want %q (all: %v)", i, got[i], want[i], got)
		}
	}
	if rows[1][1] != "3" {
		t.Fatalf("queued count = %q, want 3", rows[1][1])
	}
}
