package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// RetentionTarget describes one directory of log files subject to pruning.
type RetentionTarget struct {
	Dir     string
	Pattern string // glob matched against file names, "*.log" when empty
	Exclude []string
}

// PruneOldLogs removes files older than retentionDays from each target.
// Zero or negative retention disables pruning. Files named in a target's
// Exclude list survive regardless of age.
func PruneOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) {
	if retentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, target := range targets {
		if target.Dir != "" {
			pruneTarget(logger, cutoff, target)
		}
	}
}

func pruneTarget(logger *slog.Logger, cutoff time.Time, target RetentionTarget) {
	entries, err := os.ReadDir(target.Dir)
	if err != nil {
		return
	}
	pattern := target.Pattern
	if pattern == "" {
		pattern = "*.log"
	}
	keep := absSet(target.Exclude)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ok, err := filepath.Match(pattern, entry.Name()); err != nil || !ok {
			continue
		}
		path := filepath.Join(target.Dir, entry.Name())
		if abs, err := filepath.Abs(path); err == nil && keep[abs] {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "log retention removal failed", "log_retention_failed",
				String("path", path),
				Error(err))
			continue
		}
		if logger != nil {
			logger.Info("pruned old log file",
				String(FieldEventType, "log_retention_pruned"),
				String("path", path))
		}
	}
}

func absSet(paths []string) map[string]bool {
	set := make(map[string]bool, len(paths))
	for _, path := range paths {
		if abs, err := filepath.Abs(path); err == nil {
			set[abs] = true
		}
	}
	return set
}
