package engine_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"ffui/internal/engine"
	"ffui/internal/queue"
	"ffui/internal/testsupport"
)

func TestSubmitClassifiesAndQueues(t *testing.T) {
	te := newTestEngine(t)
	dir := t.TempDir()
	video := filepath.Join(dir, "movie.mkv")
	audio := filepath.Join(dir, "song.flac")
	image := filepath.Join(dir, "photo.jpg")
	for _, path := range []string{video, audio, image} {
		testsupport.WriteFile(t, path, 4096)
	}

	res := te.engine.Submit([]string{video, audio, image}, engine.SubmitOptions{})
	if len(res.Accepted) != 3 {
		t.Fatalf("expected 3 accepted jobs, got %d (skipped %+v)", len(res.Accepted), res.Skipped)
	}
	wantTypes := []queue.JobType{queue.JobTypeVideo, queue.JobTypeAudio, queue.JobTypeImage}
	for i, job := range res.Accepted {
		if job.Type != wantTypes[i] {
			t.Fatalf("job %d: expected type %s, got %s", i, wantTypes[i], job.Type)
		}
		if job.Status != queue.StatusQueued {
			t.Fatalf("job %d: expected queued, got %s", i, job.Status)
		}
		if job.QueueOrder == nil || *job.QueueOrder != uint64(i) {
			t.Fatalf("job %d: expected queue order %d, got %v", i, i, job.QueueOrder)
		}
		if job.OriginalSizeMB <= 0 {
			t.Fatalf("job %d: expected input size, got %v", i, job.OriginalSizeMB)
		}
		if job.ModifiedTimeMs == nil {
			t.Fatalf("job %d: expected modified time", i)
		}
		if job.Source != queue.SourceManual {
			t.Fatalf("job %d: expected manual source, got %s", i, job.Source)
		}
	}

	stored, err := te.store.GetByID(context.Background(), res.Accepted[0].ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored == nil || stored.Filename != "movie.mkv" {
		t.Fatalf("expected persisted job, got %+v", stored)
	}
}

func TestSubmitSkipsUnusablePaths(t *testing.T) {
	te := newTestEngine(t)
	dir := t.TempDir()
	text := filepath.Join(dir, "notes.txt")
	testsupport.WriteFile(t, text, 128)
	missing := filepath.Join(dir, "gone.mkv")

	res := te.engine.Submit([]string{text, missing, dir}, engine.SubmitOptions{})
	if len(res.Accepted) != 0 {
		t.Fatalf("expected no accepted jobs, got %d", len(res.Accepted))
	}
	if len(res.Skipped) != 3 {
		t.Fatalf("expected 3 skipped paths, got %+v", res.Skipped)
	}
	reasons := make(map[string]string, len(res.Skipped))
	for _, s := range res.Skipped {
		reasons[s.Path] = s.Reason
	}
	if reasons[text] != "unsupported file type" {
		t.Fatalf("expected unsupported reason for %s, got %q", text, reasons[text])
	}
	if reasons[missing] != "not found" {
		t.Fatalf("expected not found reason for %s, got %q", missing, reasons[missing])
	}
	if reasons[dir] != "is a directory" {
		t.Fatalf("expected directory reason for %s, got %q", dir, reasons[dir])
	}
}

func TestSubmitRejectsDuplicateInput(t *testing.T) {
	te := newTestEngine(t)
	path := filepath.Join(t.TempDir(), "movie.mkv")
	testsupport.WriteFile(t, path, 1024)

	first := te.engine.Submit([]string{path, path}, engine.SubmitOptions{})
	if len(first.Accepted) != 1 {
		t.Fatalf("expected 1 accepted job, got %d", len(first.Accepted))
	}
	if len(first.Skipped) != 1 {
		t.Fatalf("expected duplicate within batch to be skipped, got %+v", first.Skipped)
	}

	second := te.engine.Submit([]string{path}, engine.SubmitOptions{})
	if len(second.Accepted) != 0 {
		t.Fatalf("expected resubmission to be rejected")
	}
	if len(second.Skipped) != 1 {
		t.Fatalf("expected 1 skipped path, got %+v", second.Skipped)
	}
	reason := second.Skipped[0].Reason
	if !strings.HasPrefix(reason, "already in queue") {
		t.Fatalf("unexpected skip reason %q", reason)
	}
	if !strings.Contains(reason, first.Accepted[0].ID[:8]) {
		t.Fatalf("expected skip reason to name the existing job, got %q", reason)
	}
}

func TestSubmitStampsBatchAndPreset(t *testing.T) {
	te := newTestEngine(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mkv")
	b := filepath.Join(dir, "b.mkv")
	testsupport.WriteFile(t, a, 512)
	testsupport.WriteFile(t, b, 512)

	res := te.engine.Submit([]string{a, b}, engine.SubmitOptions{
		Source:  queue.SourceScan,
		Preset:  "4",
		BatchID: "batch-1",
	})
	if len(res.Accepted) != 2 {
		t.Fatalf("expected 2 accepted jobs, got %d", len(res.Accepted))
	}
	for _, job := range res.Accepted {
		if job.Source != queue.SourceScan {
			t.Fatalf("expected scan source, got %s", job.Source)
		}
		if job.BatchID != "batch-1" {
			t.Fatalf("expected batch id, got %q", job.BatchID)
		}
		if job.Preset != "4" {
			t.Fatalf("expected preset 4, got %q", job.Preset)
		}
	}
}
