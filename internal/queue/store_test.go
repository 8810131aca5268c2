package queue_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"ffui/internal/queue"
	"ffui/internal/testsupport"
)

func TestStoreRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	order := uint64(1)
	elapsed := int64(32000)
	duration := 3600.5
	job := queue.NewJob("/media/incoming/movie.mkv", queue.JobTypeVideo, queue.SourceManual)
	job.QueueOrder = &order
	job.Status = queue.StatusPaused
	job.Progress = 41.5
	job.OriginalSizeMB = 1200
	job.ElapsedMs = &elapsed
	job.Preset = "av1-high"
	job.Command = "ffmpeg -i movie.mkv out.mkv"
	job.Media = &queue.MediaInfo{DurationSeconds: &duration, VideoCodec: "h264"}
	job.LogHead = []string{"ffmpeg version 7.1", "Input #0"}
	job.LogTail = "frame= 1200"
	job.Warnings = []queue.JobWarning{{Code: "interlaced", Message: "source looks interlaced"}}
	job.WaitMetadata = &queue.WaitMetadata{
		Segments:          []string{"/tmp/seg-0.mkv"},
		SegmentEndTargets: []float64{900},
	}

	if err := store.Upsert(ctx, job); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil {
		t.Fatal("expected job to be found")
	}
	if fetched.Status != queue.StatusPaused {
		t.Fatalf("status = %s, want paused", fetched.Status)
	}
	if fetched.QueueOrder == nil || *fetched.QueueOrder != 1 {
		t.Fatalf("queue order = %v, want 1", fetched.QueueOrder)
	}
	if fetched.Progress != 41.5 {
		t.Fatalf("progress = %v, want 41.5", fetched.Progress)
	}
	if fetched.ElapsedMs == nil || *fetched.ElapsedMs != 32000 {
		t.Fatalf("elapsed = %v, want 32000", fetched.ElapsedMs)
	}
	if fetched.Preset != "av1-high" {
		t.Fatalf("preset = %q", fetched.Preset)
	}
	if fetched.Media == nil || fetched.Media.DurationSeconds == nil || *fetched.Media.DurationSeconds != 3600.5 {
		t.Fatalf("media info lost: %+v", fetched.Media)
	}
	if len(fetched.LogHead) != 2 || fetched.LogHead[0] != "ffmpeg version 7.1" {
		t.Fatalf("log head lost: %v", fetched.LogHead)
	}
	if len(fetched.Warnings) != 1 || fetched.Warnings[0].Code != "interlaced" {
		t.Fatalf("warnings lost: %v", fetched.Warnings)
	}
	if fetched.WaitMetadata == nil || len(fetched.WaitMetadata.Segments) != 1 {
		t.Fatalf("wait metadata lost: %+v", fetched.WaitMetadata)
	}

	missing, err := store.GetByID(ctx, "no-such-id")
	if err != nil {
		t.Fatalf("GetByID for missing id failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing id, got %+v", missing)
	}
}

func TestStoreUpsertReplacesExistingRow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := queue.NewJob("/media/movie.mkv", queue.JobTypeVideo, queue.SourceManual)
	testsupport.SeedJob(t, store, job)

	job.Status = queue.StatusCompleted
	job.Progress = 100
	if err := store.Upsert(ctx, job); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	jobs, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 row after upsert, got %d", len(jobs))
	}
	if jobs[0].Status != queue.StatusCompleted {
		t.Fatalf("status = %s, want completed", jobs[0].Status)
	}
}

func TestStoreFindByInputPath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := queue.NewJob("/media/movie.mkv", queue.JobTypeVideo, queue.SourceScan)
	testsupport.SeedJob(t, store, job)
	testsupport.SeedJob(t, store, queue.NewJob("/media/other.mkv", queue.JobTypeVideo, queue.SourceScan))

	found, err := store.FindByInputPath(ctx, "/media/movie.mkv")
	if err != nil {
		t.Fatalf("FindByInputPath failed: %v", err)
	}
	if found == nil || found.ID != job.ID {
		t.Fatalf("expected %s, got %+v", job.ID, found)
	}

	absent, err := store.FindByInputPath(ctx, "/media/nowhere.mkv")
	if err != nil {
		t.Fatalf("FindByInputPath for absent path failed: %v", err)
	}
	if absent != nil {
		t.Fatalf("expected nil for absent path, got %+v", absent)
	}
}

func TestStoreLoadAllOrdering(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	// Terminal job with no queue position, enqueued first.
	done := queue.NewJob("/media/done.mkv", queue.JobTypeVideo, queue.SourceManual)
	done.Status = queue.StatusCompleted
	done.CreatedAtMs = 100
	testsupport.SeedJob(t, store, done)

	second := queue.NewJob("/media/second.mkv", queue.JobTypeVideo, queue.SourceManual)
	pos1 := uint64(1)
	second.QueueOrder = &pos1
	second.CreatedAtMs = 200
	testsupport.SeedJob(t, store, second)

	first := queue.NewJob("/media/first.mkv", queue.JobTypeVideo, queue.SourceManual)
	pos0 := uint64(0)
	first.QueueOrder = &pos0
	first.CreatedAtMs = 300
	testsupport.SeedJob(t, store, first)

	jobs, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != first.ID || jobs[1].ID != second.ID || jobs[2].ID != done.ID {
		t.Fatalf("unexpected order: %s, %s, %s", jobs[0].Filename, jobs[1].Filename, jobs[2].Filename)
	}
}

func TestStoreReplace(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		testsupport.SeedJob(t, store, queue.NewJob(fmt.Sprintf("/media/file%d.mkv", i), queue.JobTypeVideo, queue.SourceManual))
	}

	survivor := queue.NewJob("/media/survivor.mkv", queue.JobTypeVideo, queue.SourceManual)
	if err := store.Replace(ctx, []*queue.Job{survivor}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	jobs, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != survivor.ID {
		t.Fatalf("expected only the survivor, got %d jobs", len(jobs))
	}
}

func TestStoreDelete(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := queue.NewJob("/media/a.mkv", queue.JobTypeVideo, queue.SourceManual)
	b := queue.NewJob("/media/b.mkv", queue.JobTypeVideo, queue.SourceManual)
	c := queue.NewJob("/media/c.mkv", queue.JobTypeVideo, queue.SourceManual)
	testsupport.SeedJob(t, store, a)
	testsupport.SeedJob(t, store, b)
	testsupport.SeedJob(t, store, c)

	removed, err := store.Delete(ctx, a.ID, c.ID, "no-such-id")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}

	jobs, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != b.ID {
		t.Fatalf("expected only b to survive, got %d jobs", len(jobs))
	}

	if n, err := store.Delete(ctx); err != nil || n != 0 {
		t.Fatalf("empty delete = (%d, %v), want (0, nil)", n, err)
	}
}

func TestStoreStatsAndClearTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	seed := func(status queue.Status, path string) {
		job := queue.NewJob(path, queue.JobTypeVideo, queue.SourceManual)
		job.Status = status
		testsupport.SeedJob(t, store, job)
	}
	seed(queue.StatusQueued, "/media/q1.mkv")
	seed(queue.StatusQueued, "/media/q2.mkv")
	seed(queue.StatusCompleted, "/media/done.mkv")
	seed(queue.StatusFailed, "/media/bad.mkv")

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[queue.StatusQueued] != 2 || stats[queue.StatusCompleted] != 1 || stats[queue.StatusFailed] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}

	removed, err := store.ClearTerminal(ctx)
	if err != nil {
		t.Fatalf("ClearTerminal failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("cleared = %d, want 2", removed)
	}

	stats, err = store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[queue.StatusQueued] != 2 || len(stats) != 1 {
		t.Fatalf("unexpected stats after clear: %v", stats)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	db, err := sql.Open("sqlite", cfg.QueueDatabasePath())
	if err != nil {
		t.Fatalf("open database file: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = version + 1"); err != nil {
		t.Fatalf("bump schema version: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close database file: %v", err)
	}

	if _, err := queue.Open(cfg); !errors.Is(err, queue.ErrSchemaMismatch) {
		t.Fatalf("reopen err = %v, want schema mismatch", err)
	}
}
