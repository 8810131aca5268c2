package logging_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ffui/internal/logging"
)

func writeAgedFile(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("log data\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("age %s: %v", name, err)
	}
	return path
}

func TestPruneOldLogsRemovesExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	oldPath := writeAgedFile(t, dir, "old.log", 10*24*time.Hour)
	freshPath := writeAgedFile(t, dir, "fresh.log", time.Hour)

	logging.PruneOldLogs(logging.NewNop(), 7, logging.RetentionTarget{Dir: dir})

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("expired file still present: %v", err)
	}
	if _, err := os.Stat(freshPath); err != nil {
		t.Fatalf("fresh file removed: %v", err)
	}
}

func TestPruneOldLogsKeepsExcludedFiles(t *testing.T) {
	dir := t.TempDir()
	keepPath := writeAgedFile(t, dir, "active.log", 30*24*time.Hour)

	logging.PruneOldLogs(logging.NewNop(), 7, logging.RetentionTarget{
		Dir:     dir,
		Exclude: []string{keepPath},
	})

	if _, err := os.Stat(keepPath); err != nil {
		t.Fatalf("excluded file removed: %v", err)
	}
}

func TestPruneOldLogsZeroRetentionDisabled(t *testing.T) {
	dir := t.TempDir()
	oldPath := writeAgedFile(t, dir, "ancient.log", 365*24*time.Hour)

	logging.PruneOldLogs(logging.NewNop(), 0, logging.RetentionTarget{Dir: dir})

	if _, err := os.Stat(oldPath); err != nil {
		t.Fatalf("file removed despite disabled retention: %v", err)
	}
}

func TestPruneOldLogsIgnoresNonMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	dbPath := writeAgedFile(t, dir, "queue.db", 30*24*time.Hour)

	logging.PruneOldLogs(logging.NewNop(), 7, logging.RetentionTarget{Dir: dir, Pattern: "*.log"})

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("non-matching file removed: %v", err)
	}
}
