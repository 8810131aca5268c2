package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ffui/internal/config"
	"ffui/internal/engine"
	"ffui/internal/logging"
	"ffui/internal/queue"
	"ffui/internal/services/drapto"
	"ffui/internal/services/ffmpeg"
	"ffui/internal/testsupport"
)

// stubEncoder scripts the ffmpeg client. Without a hook every encode succeeds
// immediately, writing the requested output and reporting full progress.
type stubEncoder struct {
	mu          sync.Mutex
	encodeCalls []ffmpeg.EncodeRequest
	concatCalls [][]string
	screenshots []ffmpeg.ScreenshotRequest
	inspectErr  error
	duration    string

	encodeHook func(ctx context.Context, req ffmpeg.EncodeRequest, sink ffmpeg.EncodeSink) error
}

func newStubEncoder() *stubEncoder {
	return &stubEncoder{duration: "100"}
}

func (s *stubEncoder) Inspect(context.Context, string) (ffmpeg.ProbeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inspectErr != nil {
		return ffmpeg.ProbeResult{}, s.inspectErr
	}
	return ffmpeg.ProbeResult{Format: ffmpeg.ProbeFormat{Duration: s.duration}}, nil
}

func (s *stubEncoder) Encode(ctx context.Context, req ffmpeg.EncodeRequest, sink ffmpeg.EncodeSink) error {
	s.mu.Lock()
	s.encodeCalls = append(s.encodeCalls, req)
	hook := s.encodeHook
	s.mu.Unlock()
	if hook != nil {
		return hook(ctx, req, sink)
	}
	if err := os.WriteFile(req.OutputPath, []byte("encoded"), 0o644); err != nil {
		return err
	}
	if sink.Progress != nil {
		sink.Progress(ffmpeg.Progress{Frame: 2400, Speed: 4, OutTimeSeconds: 100, Done: true})
	}
	return nil
}

func (s *stubEncoder) Concat(_ context.Context, segments []string, outputPath string) error {
	s.mu.Lock()
	s.concatCalls = append(s.concatCalls, append([]string(nil), segments...))
	s.mu.Unlock()
	return os.WriteFile(outputPath, []byte("joined"), 0o644)
}

func (s *stubEncoder) Screenshot(_ context.Context, req ffmpeg.ScreenshotRequest) error {
	s.mu.Lock()
	s.screenshots = append(s.screenshots, req)
	s.mu.Unlock()
	return os.WriteFile(req.OutputPath, []byte("jpg"), 0o644)
}

func (s *stubEncoder) encodeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.encodeCalls)
}

func (s *stubEncoder) concatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.concatCalls)
}

// stubDrapto scripts the drapto client. Without a hook it writes the output
// drapto would produce and succeeds.
type stubDrapto struct {
	mu    sync.Mutex
	calls []string
	hook  func(ctx context.Context, inputPath, outputDir string, progress func(drapto.ProgressUpdate)) (string, error)
}

func (s *stubDrapto) Encode(ctx context.Context, inputPath, outputDir string, progress func(drapto.ProgressUpdate)) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, inputPath)
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		return hook(ctx, inputPath, outputDir, progress)
	}
	out := drapto.OutputPath(inputPath, outputDir)
	if err := os.WriteFile(out, []byte("drapto"), 0o644); err != nil {
		return "", err
	}
	return out, nil
}

func (s *stubDrapto) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type testEngine struct {
	engine *engine.Engine
	store  *queue.Store
	cfg    *config.Config
	ffmpeg *stubEncoder
	drapto *stubDrapto
}

func newTestEngine(t *testing.T, opts ...testsupport.ConfigOption) *testEngine {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	enc := newStubEncoder()
	dr := &stubDrapto{}
	eng, err := engine.New(cfg, store, logging.NewNop(), engine.Options{FFmpeg: enc, Drapto: dr})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return &testEngine{engine: eng, store: store, cfg: cfg, ffmpeg: enc, drapto: dr}
}

func (te *testEngine) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := te.engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(te.engine.Stop)
}

// submitFile creates an input file of the given name and submits it.
func (te *testEngine) submitFile(t *testing.T, name string) *queue.Job {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	testsupport.WriteFile(t, path, 4096)
	return te.submitPath(t, path)
}

func (te *testEngine) submitPath(t *testing.T, path string) *queue.Job {
	t.Helper()
	res := te.engine.Submit([]string{path}, engine.SubmitOptions{})
	if len(res.Accepted) != 1 {
		t.Fatalf("expected 1 accepted job, got %d (skipped %+v)", len(res.Accepted), res.Skipped)
	}
	return res.Accepted[0]
}

func waitForStatus(t *testing.T, eng *engine.Engine, id string, want queue.Status) *queue.Job {
	t.Helper()
	deadline := time.After(15 * time.Second)
	for {
		job := eng.Job(id)
		if job != nil && job.Status == want {
			return job
		}
		select {
		case <-deadline:
			got := queue.Status("<gone>")
			if job != nil {
				got = job.Status
			}
			t.Fatalf("timed out waiting for status %s, job is %s", want, got)
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func awaitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(15 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}
