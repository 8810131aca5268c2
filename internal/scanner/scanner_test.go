package scanner_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ffui/internal/engine"
	"ffui/internal/logging"
	"ffui/internal/queue"
	"ffui/internal/scanner"
	"ffui/internal/testsupport"
)

type stubQueue struct {
	mu     sync.Mutex
	calls  [][]string
	opts   []engine.SubmitOptions
	reject map[string]string
}

func (q *stubQueue) Submit(paths []string, opts engine.SubmitOptions) engine.SubmitResult {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls = append(q.calls, append([]string(nil), paths...))
	q.opts = append(q.opts, opts)

	var result engine.SubmitResult
	for _, path := range paths {
		if reason, ok := q.reject[path]; ok {
			result.Skipped = append(result.Skipped, engine.SkippedPath{Path: path, Reason: reason})
			continue
		}
		job := queue.NewJob(path, queue.JobTypeVideo, opts.Source)
		job.BatchID = opts.BatchID
		result.Accepted = append(result.Accepted, job)
	}
	return result
}

func (q *stubQueue) callCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.calls)
}

func (q *stubQueue) lastCall() ([]string, engine.SubmitOptions) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.calls) == 0 {
		return nil, engine.SubmitOptions{}
	}
	return q.calls[len(q.calls)-1], q.opts[len(q.opts)-1]
}

func TestSweepSubmitsEligibleFiles(t *testing.T) {
	watch := t.TempDir()
	cfg := testsupport.NewConfig(t)
	cfg.Scan.Enabled = true
	cfg.Scan.Dirs = []string{watch}
	cfg.Scan.MinSizeMB = 1

	const mb = 1024 * 1024
	testsupport.WriteFile(t, filepath.Join(watch, "movie.mkv"), 2*mb)
	testsupport.WriteFile(t, filepath.Join(watch, "LOUD.MKV"), 2*mb)
	testsupport.WriteFile(t, filepath.Join(watch, "sub", "nested.mp4"), 2*mb)
	testsupport.WriteFile(t, filepath.Join(watch, "tiny.mkv"), 1024)
	testsupport.WriteFile(t, filepath.Join(watch, "notes.txt"), 2*mb)
	testsupport.WriteFile(t, filepath.Join(watch, ".hidden.mkv"), 2*mb)
	testsupport.WriteFile(t, filepath.Join(watch, ".staging", "partial.mkv"), 2*mb)

	q := &stubQueue{}
	s := scanner.New(cfg, q, logging.NewNop())

	accepted := s.Sweep(context.Background())
	if accepted != 3 {
		t.Fatalf("expected 3 accepted files, got %d", accepted)
	}
	paths, opts := q.lastCall()
	want := []string{
		filepath.Join(watch, "LOUD.MKV"),
		filepath.Join(watch, "movie.mkv"),
		filepath.Join(watch, "sub", "nested.mp4"),
	}
	if len(paths) != len(want) {
		t.Fatalf("expected %d candidates, got %v", len(want), paths)
	}
	for i, path := range want {
		if paths[i] != path {
			t.Fatalf("candidate %d: expected %s, got %s", i, path, paths[i])
		}
	}
	if opts.Source != queue.SourceScan {
		t.Fatalf("expected scan source, got %s", opts.Source)
	}
	if opts.BatchID == "" {
		t.Fatal("expected a batch id")
	}
}

func TestSweepOffersEachPathOnce(t *testing.T) {
	watch := t.TempDir()
	cfg := testsupport.NewConfig(t)
	cfg.Scan.Enabled = true
	cfg.Scan.Dirs = []string{watch}

	path := filepath.Join(watch, "movie.mkv")
	testsupport.WriteFile(t, path, 4096)

	q := &stubQueue{reject: map[string]string{path: "already in queue"}}
	s := scanner.New(cfg, q, logging.NewNop())

	if got := s.Sweep(context.Background()); got != 0 {
		t.Fatalf("expected 0 accepted, got %d", got)
	}
	if got := s.Sweep(context.Background()); got != 0 {
		t.Fatalf("expected 0 accepted on resweep, got %d", got)
	}
	if q.callCount() != 1 {
		t.Fatalf("expected a skipped path to be offered once, got %d submissions", q.callCount())
	}
}

func TestSweepIgnoresMissingDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Scan.Enabled = true
	cfg.Scan.Dirs = []string{filepath.Join(t.TempDir(), "nope")}

	q := &stubQueue{}
	s := scanner.New(cfg, q, logging.NewNop())
	if got := s.Sweep(context.Background()); got != 0 {
		t.Fatalf("expected 0 accepted, got %d", got)
	}
	if q.callCount() != 0 {
		t.Fatalf("expected no submissions, got %d", q.callCount())
	}
}

func TestStartIsNoopWhenDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Scan.Enabled = false
	cfg.Scan.Dirs = []string{t.TempDir()}

	q := &stubQueue{}
	s := scanner.New(cfg, q, logging.NewNop())
	s.Start(context.Background())
	s.Stop()
	if q.callCount() != 0 {
		t.Fatalf("expected no submissions, got %d", q.callCount())
	}
}

func TestRunLoopPicksUpNewFiles(t *testing.T) {
	watch := t.TempDir()
	cfg := testsupport.NewConfig(t)
	cfg.Scan.Enabled = true
	cfg.Scan.Dirs = []string{watch}
	cfg.Scan.IntervalSeconds = 1

	q := &stubQueue{}
	s := scanner.New(cfg, q, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s.Start(ctx)
	t.Cleanup(s.Stop)

	testsupport.WriteFile(t, filepath.Join(watch, "late.mkv"), 4096)

	deadline := time.After(10 * time.Second)
	for q.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("scanner never picked up the new file")
		default:
			time.Sleep(25 * time.Millisecond)
		}
	}
	paths, _ := q.lastCall()
	if len(paths) != 1 || paths[0] != filepath.Join(watch, "late.mkv") {
		t.Fatalf("unexpected submission: %v", paths)
	}
}
