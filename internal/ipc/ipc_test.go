package ipc_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ffui/internal/config"
	"ffui/internal/daemon"
	"ffui/internal/engine"
	"ffui/internal/ipc"
	"ffui/internal/logging"
	"ffui/internal/queue"
	"ffui/internal/testsupport"
)

type harness struct {
	cfg    *config.Config
	client *ipc.Client
	daemon *daemon.Daemon
}

// newHarness wires a real engine and daemon behind an IPC server on a unix
// socket and dials it. The daemon is constructed but never started, so
// submitted jobs stay queued instead of racing through a worker.
func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	eng, err := engine.New(cfg, store, logger, engine.Options{})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	d, err := daemon.New(cfg, store, logger, eng, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return &harness{cfg: cfg, client: client, daemon: d}
}

func writeInput(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write input %s: %v", name, err)
	}
	return path
}

func TestIPCServerClient(t *testing.T) {
	h := newHarness(t)
	client := h.client

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if status.Running {
		t.Fatal("expected daemon to report not running before Start")
	}
	if status.PID != os.Getpid() {
		t.Fatalf("unexpected pid: got %d want %d", status.PID, os.Getpid())
	}
	if status.Version == "" {
		t.Fatal("expected version in status response")
	}
	if status.SocketPath != h.cfg.SocketPath() {
		t.Fatalf("unexpected socket path: %s", status.SocketPath)
	}
	if !strings.HasSuffix(status.QueueDBPath, "queue.db") {
		t.Fatalf("unexpected queue db path: %s", status.QueueDBPath)
	}

	inputs := t.TempDir()
	movie := writeInput(t, inputs, "movie.mkv")
	song := writeInput(t, inputs, "song.mp3")
	missing := filepath.Join(inputs, "missing.mkv")

	if _, err := client.Submit(nil, ""); err == nil {
		t.Fatal("expected Submit with no paths to fail")
	} else if !strings.Contains(err.Error(), "at least one path") {
		t.Fatalf("unexpected Submit error: %v", err)
	}

	subResp, err := client.Submit([]string{movie, song, missing}, "")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if len(subResp.Accepted) != 2 {
		t.Fatalf("expected 2 accepted jobs, got %d", len(subResp.Accepted))
	}
	if len(subResp.Skipped) != 1 || subResp.Skipped[0].Reason != "not found" {
		t.Fatalf("unexpected skipped paths: %#v", subResp.Skipped)
	}
	jobA := subResp.Accepted[0]
	jobB := subResp.Accepted[1]
	if jobA.InputPath != movie || jobB.InputPath != song {
		t.Fatalf("accepted jobs out of order: %s / %s", jobA.InputPath, jobB.InputPath)
	}

	state, err := client.QueueState()
	if err != nil {
		t.Fatalf("QueueState failed: %v", err)
	}
	if len(state.Jobs) != 2 {
		t.Fatalf("expected 2 jobs in state, got %d", len(state.Jobs))
	}
	if state.Jobs[0].ID != jobA.ID || state.Jobs[1].ID != jobB.ID {
		t.Fatalf("state jobs out of queue order: %s, %s", state.Jobs[0].ID, state.Jobs[1].ID)
	}
	if state.SnapshotRevision == 0 {
		t.Fatal("expected non-zero snapshot revision")
	}

	ok, err := client.Wait(jobA.ID)
	if err != nil || !ok {
		t.Fatalf("Wait(%s) = %v, %v", jobA.ID, ok, err)
	}
	state, err = client.QueueState()
	if err != nil {
		t.Fatalf("QueueState after wait failed: %v", err)
	}
	if state.Jobs[0].Status != queue.StatusPaused {
		t.Fatalf("expected paused job, got %s", state.Jobs[0].Status)
	}
	if state.Jobs[0].QueueOrder == nil || *state.Jobs[0].QueueOrder != 0 {
		t.Fatalf("expected paused job to keep slot 0, got %v", state.Jobs[0].QueueOrder)
	}

	ok, err = client.Resume(jobA.ID)
	if err != nil || !ok {
		t.Fatalf("Resume(%s) = %v, %v", jobA.ID, ok, err)
	}

	results, err := client.WaitBulk([]string{jobA.ID, "no-such-id"})
	if err != nil {
		t.Fatalf("WaitBulk failed: %v", err)
	}
	if len(results) != 2 || !results[0] || results[1] {
		t.Fatalf("unexpected WaitBulk results: %v", results)
	}
	if results, err = client.ResumeBulk([]string{jobA.ID}); err != nil || !results[0] {
		t.Fatalf("ResumeBulk failed: %v %v", results, err)
	}

	ok, err = client.Reorder([]string{jobB.ID, jobA.ID})
	if err != nil || !ok {
		t.Fatalf("Reorder failed: %v %v", ok, err)
	}
	state, err = client.QueueState()
	if err != nil {
		t.Fatalf("QueueState after reorder failed: %v", err)
	}
	if state.Jobs[0].ID != jobB.ID || state.Jobs[1].ID != jobA.ID {
		t.Fatalf("reorder not reflected: %s, %s", state.Jobs[0].ID, state.Jobs[1].ID)
	}

	ok, err = client.Cancel(jobA.ID)
	if err != nil || !ok {
		t.Fatalf("Cancel(%s) = %v, %v", jobA.ID, ok, err)
	}

	rmResp, err := client.Remove([]string{jobA.ID, jobB.ID})
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if len(rmResp.Removed) != 1 || rmResp.Removed[0] != jobA.ID {
		t.Fatalf("expected only cancelled job removed, got %v", rmResp.Removed)
	}
	if len(rmResp.Skipped) != 1 || rmResp.Skipped[0] != jobB.ID {
		t.Fatalf("expected queued job skipped, got %v", rmResp.Skipped)
	}

	if ok, err = client.Cancel(jobB.ID); err != nil || !ok {
		t.Fatalf("Cancel(%s) = %v, %v", jobB.ID, ok, err)
	}
	if ok, err = client.Restart(jobB.ID); err != nil || !ok {
		t.Fatalf("Restart(%s) = %v, %v", jobB.ID, ok, err)
	}
	state, err = client.QueueState()
	if err != nil {
		t.Fatalf("QueueState after restart failed: %v", err)
	}
	if len(state.Jobs) != 1 || state.Jobs[0].Status != queue.StatusQueued {
		t.Fatalf("expected restarted job queued, got %#v", state.Jobs)
	}

	if ok, err = client.Cancel(jobB.ID); err != nil || !ok {
		t.Fatalf("Cancel(%s) = %v, %v", jobB.ID, ok, err)
	}
	cleared, err := client.ClearTerminal()
	if err != nil {
		t.Fatalf("ClearTerminal failed: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 cleared job, got %d", cleared)
	}

	logPath := h.cfg.DaemonLogPath()
	if err := os.WriteFile(logPath, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}
	logResp, err := client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("LogTail initial failed: %v", err)
	}
	if len(logResp.Lines) != 2 || logResp.Lines[0] != "second" || logResp.Lines[1] != "third" {
		t.Fatalf("unexpected log tail response: %#v", logResp.Lines)
	}

	followDone := make(chan struct{})
	go func(offset int64) {
		resp, err := client.LogTail(ipc.LogTailRequest{Offset: offset, Follow: true, WaitMillis: 2000})
		if err != nil {
			t.Errorf("LogTail follow error: %v", err)
			return
		}
		if len(resp.Lines) != 1 || resp.Lines[0] != "fourth" {
			t.Errorf("unexpected follow lines: %#v", resp.Lines)
		}
		close(followDone)
	}(logResp.Offset)

	time.Sleep(100 * time.Millisecond)
	if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
		_, _ = f.WriteString("fourth\n")
		_ = f.Close()
	} else {
		t.Fatalf("append log: %v", err)
	}

	select {
	case <-followDone:
	case <-time.After(10 * time.Second):
		t.Fatal("log tail follow timed out")
	}

	stopResp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if !stopResp.Stopping {
		t.Fatal("expected Stop to acknowledge shutdown")
	}
	select {
	case <-h.daemon.ShutdownRequested():
	case <-time.After(time.Second):
		t.Fatal("shutdown request did not propagate")
	}
}

func TestQueueEventsLongPollWakesOnChange(t *testing.T) {
	h := newHarness(t)
	client := h.client

	inputs := t.TempDir()
	movie := writeInput(t, inputs, "movie.mkv")
	subResp, err := client.Submit([]string{movie}, "")
	if err != nil || len(subResp.Accepted) != 1 {
		t.Fatalf("Submit failed: %#v, %v", subResp, err)
	}
	jobID := subResp.Accepted[0].ID

	// A stale snapshot cursor re-bases immediately.
	base, err := client.QueueEvents(0, 0, 0)
	if err != nil {
		t.Fatalf("QueueEvents baseline failed: %v", err)
	}
	if base.Snapshot == nil {
		t.Fatal("expected baseline snapshot")
	}
	rev := base.Snapshot.SnapshotRevision
	cursor := base.DeltaCursor

	// Matching cursors with no wait return an empty response.
	idle, err := client.QueueEvents(rev, cursor, 0)
	if err != nil {
		t.Fatalf("QueueEvents idle failed: %v", err)
	}
	if idle.Snapshot != nil || len(idle.Deltas) != 0 {
		t.Fatalf("expected empty idle response, got %#v", idle)
	}

	type pollResult struct {
		resp *ipc.QueueEventsResponse
		err  error
	}
	done := make(chan pollResult, 1)
	go func() {
		resp, err := client.QueueEvents(rev, cursor, 5000)
		done <- pollResult{resp: resp, err: err}
	}()

	time.Sleep(100 * time.Millisecond)
	if ok, err := client.Cancel(jobID); err != nil || !ok {
		t.Fatalf("Cancel(%s) = %v, %v", jobID, ok, err)
	}

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("QueueEvents poll failed: %v", res.err)
		}
		if res.resp.Snapshot == nil {
			t.Fatalf("expected snapshot after structural change, got %#v", res.resp)
		}
		if res.resp.Snapshot.SnapshotRevision <= rev {
			t.Fatalf("snapshot revision did not advance: %d -> %d", rev, res.resp.Snapshot.SnapshotRevision)
		}
		if len(res.resp.Snapshot.Jobs) != 1 || res.resp.Snapshot.Jobs[0].Status != queue.StatusCancelled {
			t.Fatalf("unexpected snapshot contents: %#v", res.resp.Snapshot.Jobs)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("QueueEvents poll did not wake on change")
	}
}
