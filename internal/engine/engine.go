package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"ffui/internal/config"
	"ffui/internal/logging"
	"ffui/internal/preview"
	"ffui/internal/queue"
	"ffui/internal/services/drapto"
	"ffui/internal/services/ffmpeg"
)

// persistTimeout bounds store writes issued while holding the engine lock.
const persistTimeout = 5 * time.Second

// Engine is the authoritative queue state machine.
type Engine struct {
	cfg     *config.Config
	store   *queue.Store
	logger  *slog.Logger
	ffmpeg  ffmpeg.Client
	drapto  drapto.Client
	preview *preview.Generator

	pollInterval     time.Duration
	progressInterval time.Duration

	mu   sync.Mutex
	jobs map[string]*queue.Job
	// waiting is the scheduling order: ids of queued and paused jobs. Workers
	// claim the first queued entry; paused jobs hold their slot.
	waiting []string

	active          map[string]context.CancelFunc
	waitRequests    map[string]struct{}
	cancelRequests  map[string]struct{}
	restartRequests map[string]struct{}
	// inputIndex maps input paths to job ids for duplicate suppression. An
	// entry lives as long as its job stays in the model.
	inputIndex map[string]string

	snapshotRevision uint64
	deltaRevision    uint64
	pending          map[string]*queue.JobPatch
	pendingOrder     []string
	deltas           []queue.Delta
	notify           chan struct{}

	wake chan struct{}

	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Options overrides the engine's collaborators, primarily for tests.
type Options struct {
	FFmpeg  ffmpeg.Client
	Drapto  drapto.Client
	Preview *preview.Generator
}

// New constructs an engine and restores persisted queue state.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts Options) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	ffmpegClient := opts.FFmpeg
	if ffmpegClient == nil {
		ffmpegClient = ffmpeg.NewFromConfig(cfg)
	}
	draptoClient := opts.Drapto
	if draptoClient == nil {
		draptoClient = newDraptoFromConfig(cfg)
	}
	gen := opts.Preview
	if gen == nil {
		gen = preview.NewGenerator(cfg, ffmpegClient)
	}

	e := &Engine{
		cfg:              cfg,
		store:            store,
		logger:           logging.NewComponentLogger(logger, "engine"),
		ffmpeg:           ffmpegClient,
		drapto:           draptoClient,
		preview:          gen,
		pollInterval:     time.Duration(cfg.Worker.QueuePollInterval) * time.Second,
		progressInterval: time.Duration(cfg.Worker.ProgressIntervalMs) * time.Millisecond,
		jobs:             make(map[string]*queue.Job),
		active:           make(map[string]context.CancelFunc),
		waitRequests:     make(map[string]struct{}),
		cancelRequests:   make(map[string]struct{}),
		restartRequests:  make(map[string]struct{}),
		inputIndex:       make(map[string]string),
		snapshotRevision: 1,
		pending:          make(map[string]*queue.JobPatch),
		notify:           make(chan struct{}),
		wake:             make(chan struct{}, 1),
	}

	if err := e.restore(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

func newDraptoFromConfig(cfg *config.Config) drapto.Client {
	opts := []drapto.Option{
		drapto.WithBinary(cfg.Encoder.DraptoBinary),
		drapto.WithLogDir(filepath.Join(cfg.Paths.LogDir, "drapto")),
	}
	if preset, err := strconv.Atoi(cfg.Encoder.Preset); err == nil {
		opts = append(opts, drapto.WithPreset(preset))
	}
	if cfg.Encoder.DraptoUseLibrary {
		return drapto.NewLibrary(opts...)
	}
	return drapto.NewCLI(opts...)
}

// Start begins background scheduling.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.New("engine already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.runCtx = runCtx
	e.cancel = cancel
	e.running = true
	e.mu.Unlock()

	e.wg.Add(1)
	go e.runScheduler(runCtx)
	return nil
}

// Stop terminates scheduling, pauses in-flight encodes gracefully, and waits
// for all workers to settle.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	e.running = false
	e.cancel = nil
	e.mu.Unlock()

	cancel()
	e.wg.Wait()

	e.mu.Lock()
	e.notifyLocked()
	e.mu.Unlock()
}

// StatusSummary is a lightweight diagnostics view of the engine.
type StatusSummary struct {
	Running          bool
	Stats            map[queue.Status]int
	ActiveIDs        []string
	QueueDepth       int
	SnapshotRevision uint64
}

// Status reports the current run state and queue composition.
func (e *Engine) Status() StatusSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := make(map[queue.Status]int)
	for _, job := range e.jobs {
		stats[job.Status]++
	}
	ids := make([]string, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return StatusSummary{
		Running:          e.running,
		Stats:            stats,
		ActiveIDs:        ids,
		QueueDepth:       len(e.waiting),
		SnapshotRevision: e.snapshotRevision,
	}
}

// Job returns a copy of the identified job, or nil when absent.
func (e *Engine) Job(id string) *queue.Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.jobs[id].Clone()
}

// kick nudges the scheduler without blocking.
func (e *Engine) kick() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// inWaitingLocked reports whether the id occupies a scheduling slot.
func (e *Engine) inWaitingLocked(id string) bool {
	for _, v := range e.waiting {
		if v == id {
			return true
		}
	}
	return false
}

func (e *Engine) enqueueTailLocked(id string) {
	if !e.inWaitingLocked(id) {
		e.waiting = append(e.waiting, id)
	}
}

func (e *Engine) enqueueHeadLocked(id string) {
	e.waiting = removeString(e.waiting, id)
	e.waiting = append([]string{id}, e.waiting...)
}

func removeString(list []string, target string) []string {
	for i, v := range list {
		if v == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// reindexLocked recomputes every job's QueueOrder from the waiting order.
// Jobs outside the scheduling queue carry nil.
func (e *Engine) reindexLocked() {
	positions := make(map[string]uint64, len(e.waiting))
	for i, id := range e.waiting {
		positions[id] = uint64(i)
	}
	for id, job := range e.jobs {
		if pos, ok := positions[id]; ok {
			p := pos
			job.QueueOrder = &p
		} else {
			job.QueueOrder = nil
		}
	}
}

// repairWaitingLocked restores the scheduling-order invariants: unique ids of
// existing queued/paused jobs only, with any missing queued/paused jobs
// appended at the tail oldest-first.
func (e *Engine) repairWaitingLocked() {
	seen := make(map[string]struct{}, len(e.waiting))
	out := make([]string, 0, len(e.waiting))
	for _, id := range e.waiting {
		if _, dup := seen[id]; dup {
			continue
		}
		job, ok := e.jobs[id]
		if !ok || !job.Status.IsSchedulable() {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	var missing []*queue.Job
	for id, job := range e.jobs {
		if !job.Status.IsSchedulable() {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		missing = append(missing, job)
	}
	sort.Slice(missing, func(i, k int) bool {
		if missing[i].CreatedAtMs != missing[k].CreatedAtMs {
			return missing[i].CreatedAtMs < missing[k].CreatedAtMs
		}
		return missing[i].ID < missing[k].ID
	})
	for _, job := range missing {
		out = append(out, job.ID)
	}
	e.waiting = out
}

// persistLocked writes jobs to the store. Persistence failures are logged,
// not propagated: the in-memory queue stays authoritative and the next
// structural write retries the rows.
func (e *Engine) persistLocked(jobs ...*queue.Job) {
	if len(jobs) == 0 {
		return
	}
	ctx, cancelFn := context.WithTimeout(context.Background(), persistTimeout)
	defer cancelFn()

	var err error
	if len(jobs) == 1 {
		err = e.store.Upsert(ctx, jobs[0])
	} else {
		err = e.store.UpsertAll(ctx, jobs)
	}
	if err != nil {
		logging.ErrorWithContext(e.logger, "failed to persist queue state", "queue_persist_failed",
			logging.Error(err),
			logging.Int("jobs", len(jobs)),
		)
	}
}

func (e *Engine) deleteRows(ids ...string) {
	if len(ids) == 0 {
		return
	}
	ctx, cancelFn := context.WithTimeout(context.Background(), persistTimeout)
	defer cancelFn()
	if _, err := e.store.Delete(ctx, ids...); err != nil {
		logging.ErrorWithContext(e.logger, "failed to delete queue rows", "queue_delete_failed",
			logging.Error(err),
			logging.Int("jobs", len(ids)),
		)
	}
}

// cleanupTmp removes the job's partial-segment directory.
func (e *Engine) cleanupTmp(jobID string) {
	if jobID == "" {
		return
	}
	_ = os.RemoveAll(e.jobTmpDir(jobID))
}

func (e *Engine) jobTmpDir(jobID string) string {
	return filepath.Join(e.cfg.Paths.TmpDir, jobID)
}

func (e *Engine) dropInputLocked(job *queue.Job) {
	if job == nil {
		return
	}
	if owner, ok := e.inputIndex[job.InputPath]; ok && owner == job.ID {
		delete(e.inputIndex, job.InputPath)
	}
}

func int64Ptr(v int64) *int64 { return &v }
