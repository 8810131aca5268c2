package scanner

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ffui/internal/config"
	"ffui/internal/engine"
	"ffui/internal/logging"
	"ffui/internal/queue"
	"ffui/internal/services"
)

// Submitter is the slice of the queue engine the scanner needs.
type Submitter interface {
	Submit(paths []string, opts engine.SubmitOptions) engine.SubmitResult
}

// Scanner polls watched directories and submits eligible files.
type Scanner struct {
	cfg    *config.Config
	queue  Submitter
	logger *slog.Logger

	interval time.Duration
	minBytes int64
	exts     map[string]struct{}

	mu      sync.Mutex
	seen    map[string]struct{}
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a scanner over the configured watch directories.
func New(cfg *config.Config, submitter Submitter, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := time.Duration(cfg.Scan.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	exts := make(map[string]struct{}, len(cfg.Scan.Extensions))
	for _, ext := range cfg.Scan.Extensions {
		exts[strings.ToLower(ext)] = struct{}{}
	}
	return &Scanner{
		cfg:      cfg,
		queue:    submitter,
		logger:   logging.NewComponentLogger(logger, "scanner"),
		interval: interval,
		minBytes: int64(cfg.Scan.MinSizeMB) * 1024 * 1024,
		exts:     exts,
		seen:     make(map[string]struct{}),
	}
}

// Start launches the sweep loop. It is a no-op when scanning is disabled or
// no directories are configured.
func (s *Scanner) Start(ctx context.Context) {
	if !s.cfg.Scan.Enabled || len(s.cfg.Scan.Dirs) == 0 {
		s.logger.Debug("directory scanning disabled")
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.logger.Info("scanner started", logging.Args(
		logging.Int("dir_count", len(s.cfg.Scan.Dirs)),
		logging.Duration("interval", s.interval),
	)...)

	s.wg.Add(1)
	go s.run(runCtx)
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (s *Scanner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Scanner) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep walks the watch directories once and submits anything new. It returns
// the number of jobs accepted by the queue.
func (s *Scanner) Sweep(ctx context.Context) int {
	var candidates []string
	for _, dir := range s.cfg.Scan.Dirs {
		s.collect(ctx, dir, &candidates)
	}
	if len(candidates) == 0 {
		return 0
	}
	sort.Strings(candidates)

	batchID := uuid.NewString()
	ctx = services.WithBatchID(ctx, batchID)
	result := s.queue.Submit(candidates, engine.SubmitOptions{
		Source:  queue.SourceScan,
		BatchID: batchID,
	})

	// Remember every offered path, accepted or not: a skip verdict
	// (duplicate, unsupported) will not change until the daemon restarts.
	s.mu.Lock()
	for _, path := range candidates {
		s.seen[path] = struct{}{}
	}
	s.mu.Unlock()

	if len(result.Accepted) > 0 {
		logging.WithContext(ctx, s.logger).Info("scan batch submitted", logging.Args(
			logging.Int("accepted", len(result.Accepted)),
			logging.Int("skipped", len(result.Skipped)),
		)...)
	}
	return len(result.Accepted)
}

func (s *Scanner) collect(ctx context.Context, dir string, out *[]string) {
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return filepath.SkipAll
		}
		if err != nil {
			return err
		}
		name := entry.Name()
		if entry.IsDir() {
			if strings.HasPrefix(name, ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
		if _, ok := s.exts[ext]; !ok {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		if info.Size() < s.minBytes {
			return nil
		}
		s.mu.Lock()
		_, known := s.seen[path]
		s.mu.Unlock()
		if known {
			return nil
		}
		*out = append(*out, path)
		return nil
	})
	if err != nil && !os.IsNotExist(err) && ctx.Err() == nil {
		logging.WarnWithContext(s.logger, "scan directory walk failed", "scan_walk_failed",
			logging.String("dir", dir),
			logging.Error(err))
	}
}
