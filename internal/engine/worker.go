package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ffui/internal/fileutil"
	"ffui/internal/logging"
	"ffui/internal/queue"
	"ffui/internal/services"
	"ffui/internal/services/drapto"
	"ffui/internal/services/ffmpeg"
)

const (
	// logHeadLines is how many leading encoder log lines are kept on the job.
	logHeadLines = 10
	// maxJobWarnings caps the warnings retained per job.
	maxJobWarnings = 10
)

// runScheduler is the engine's single dispatch loop. It fills free worker
// slots whenever the queue changes or the poll interval elapses.
func (e *Engine) runScheduler(ctx context.Context) {
	defer e.wg.Done()

	interval := e.pollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		e.dispatchReady(ctx)
		select {
		case <-ctx.Done():
			return
		case <-e.wake:
		case <-ticker.C:
		}
	}
}

func (e *Engine) dispatchReady(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	limit := e.cfg.Worker.MaxConcurrent
	if limit <= 0 {
		limit = 1
	}
	for len(e.active) < limit {
		id := e.nextReadyLocked()
		if id == "" {
			return
		}
		e.startJobLocked(ctx, id)
	}
}

// nextReadyLocked returns the first queued id in the waiting order whose
// input file is not already being encoded. Paused jobs hold their slot but
// are never claimed.
func (e *Engine) nextReadyLocked() string {
	busy := make(map[string]struct{}, len(e.active))
	for id := range e.active {
		if job, ok := e.jobs[id]; ok && job.InputPath != "" {
			busy[job.InputPath] = struct{}{}
		}
	}
	for _, id := range e.waiting {
		job, ok := e.jobs[id]
		if !ok || job.Status != queue.StatusQueued {
			continue
		}
		if _, taken := busy[job.InputPath]; taken {
			continue
		}
		return id
	}
	return ""
}

func (e *Engine) startJobLocked(ctx context.Context, id string) {
	job := e.jobs[id]
	if job == nil {
		e.waiting = removeString(e.waiting, id)
		return
	}
	e.waiting = removeString(e.waiting, id)

	now := time.Now().UnixMilli()
	job.Status = queue.StatusProcessing
	job.ProcessingStartedMs = int64Ptr(now)
	if job.StartTimeMs == nil {
		job.StartTimeMs = int64Ptr(now)
	}
	// Bump the progress epoch so clients discard telemetry from any earlier
	// run of this job.
	meta := ensureMeta(job)
	epoch := job.Epoch() + 1
	meta.ProgressEpoch = &epoch

	jobCtx, cancelRun := context.WithCancel(ctx)
	e.active[id] = cancelRun

	e.reindexLocked()
	e.persistLocked(job)
	e.publishStructuralLocked()

	e.logger.Info("encode started", logging.Args(
		logging.String(logging.FieldJobID, id),
		logging.String("filename", job.Filename),
		logging.String("type", string(job.Type)),
		logging.String(logging.FieldEventType, "encode_started"),
	)...)

	e.wg.Add(1)
	go e.runJob(jobCtx, id)
}

func ensureMeta(job *queue.Job) *queue.WaitMetadata {
	if job.WaitMetadata == nil {
		job.WaitMetadata = &queue.WaitMetadata{}
	}
	return job.WaitMetadata
}

// runResult carries everything a finished encoder run hands to settle.
type runResult struct {
	err error
	// interrupted means the run stopped because its context was cancelled,
	// not because the encoder failed.
	interrupted bool
	// resumable marks runs whose partial output can seed a later resume.
	resumable   bool
	sawProgress bool
	segPath     string
	// segStart is the media time this run's segment begins at.
	segStart float64
	// lastOut is the last absolute media time reached.
	lastOut      float64
	outputPath   string
	outputSizeMB *float64
	runStartMs   int64
	baseElapsed  int64
	logHead      []string
	logTail      string
	warnings     []queue.JobWarning
}

// encodeRun is the per-run scratch state shared by the encode helpers.
type encodeRun struct {
	id          string
	jobType     queue.JobType
	input       string
	epoch       uint64
	duration    float64
	meta        *queue.WaitMetadata
	res         *runResult
	collect     *logCollector
	throttle    *logging.ProgressThrottle
	runStart    time.Time
	lastPublish time.Time
}

func (e *Engine) runJob(ctx context.Context, id string) {
	defer e.wg.Done()
	res := e.encode(ctx, id)
	e.settle(id, res)
}

// encode probes the input, refreshes the preview, and runs the encoder
// appropriate for the job's type and the configured backend.
func (e *Engine) encode(ctx context.Context, id string) *runResult {
	ctx = services.WithJobID(ctx, id)
	e.mu.Lock()
	job := e.jobs[id]
	if job == nil {
		e.mu.Unlock()
		return &runResult{runStartMs: time.Now().UnixMilli()}
	}
	jobType := job.Type
	input := job.InputPath
	epoch := job.Epoch()
	var baseElapsed int64
	if job.ElapsedMs != nil {
		baseElapsed = *job.ElapsedMs
	}
	media := job.Media.Clone()
	meta := job.WaitMetadata.Clone()
	e.mu.Unlock()

	res := &runResult{runStartMs: time.Now().UnixMilli(), baseElapsed: baseElapsed}
	run := &encodeRun{
		id:       id,
		jobType:  jobType,
		input:    input,
		epoch:    epoch,
		meta:     meta,
		res:      res,
		collect:  newLogCollector(res),
		throttle: logging.NewProgressThrottle(10),
		runStart: time.Now(),
	}

	// Inputs can vanish between submit and dispatch; skip instead of burning
	// a failure on a file the user already moved away.
	if _, err := os.Stat(input); os.IsNotExist(err) {
		res.err = services.Wrap(services.ErrNotFound, "encode", "stat", "input file no longer exists", err)
		return res
	}

	if media == nil && jobType != queue.JobTypeImage {
		probe, err := e.ffmpeg.Inspect(ctx, input)
		if err != nil {
			if ctx.Err() == nil {
				logging.WarnWithContext(logging.WithContext(ctx, e.logger),
					"media probe failed, progress will be indeterminate", "probe_failed",
					logging.Error(err))
			}
		} else {
			media = probe.MediaInfo()
			e.mu.Lock()
			if j := e.jobs[id]; j != nil {
				j.Media = media.Clone()
				if media != nil && media.DurationSeconds != nil {
					j.EstimatedSeconds = float64Ptr(*media.DurationSeconds)
					ensureMeta(j).TargetSeconds = float64Ptr(*media.DurationSeconds)
				}
				e.persistLocked(j)
				e.publishStructuralLocked()
			}
			e.mu.Unlock()
		}
	}
	if media != nil && media.DurationSeconds != nil {
		run.duration = *media.DurationSeconds
	}

	e.refreshPreview(ctx, id, jobType, input, media)

	switch {
	case jobType == queue.JobTypeVideo && e.cfg.Encoder.Backend == "drapto":
		e.encodeDrapto(ctx, run)
	case jobType == queue.JobTypeVideo:
		e.encodeVideo(ctx, run)
	default:
		e.encodeSimple(ctx, run)
	}
	return res
}

func (e *Engine) refreshPreview(ctx context.Context, id string, jobType queue.JobType, input string, media *queue.MediaInfo) {
	path, err := e.preview.Generate(ctx, &queue.Job{ID: id, Type: jobType, InputPath: input, Media: media})
	if err != nil {
		if ctx.Err() == nil {
			logging.WarnWithContext(logging.WithContext(ctx, e.logger),
				"preview generation failed", "preview_failed",
				logging.Error(err))
		}
		return
	}
	if path == "" {
		return
	}
	e.mu.Lock()
	if job := e.jobs[id]; job != nil {
		job.PreviewPath = path
		job.PreviewRevision++
		rev := job.PreviewRevision
		e.persistLocked(job)
		e.publishPatchLocked(queue.JobPatch{
			ID: id,
			Preview: &queue.PreviewPatch{
				PreviewPath:     &path,
				PreviewRevision: &rev,
			},
		})
	}
	e.mu.Unlock()
}

// encodeMarker classifies an encoder failure: deadline expiry maps to the
// timeout sentinel, anything else counts against the external tool.
func encodeMarker(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return services.ErrTimeout
	}
	return services.ErrExternalTool
}

// encodeVideo runs ffmpeg into a per-job segment file so a pause keeps the
// finished part. Resumes start a new segment at the last completed offset;
// the finalize step joins them.
func (e *Engine) encodeVideo(ctx context.Context, run *encodeRun) {
	res := run.res
	offset := run.meta.ResumeOffsetSeconds()
	segIndex := 0
	if run.meta != nil {
		segIndex = len(run.meta.Segments)
		if segIndex == 0 && run.meta.TmpOutputPath != "" && offset > 0 {
			segIndex = 1
		}
	}

	tmpDir := e.jobTmpDir(run.id)
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		res.err = services.Wrap(services.ErrConfiguration, "encode", "mkdir", "failed to create segment directory", err)
		return
	}
	segPath := filepath.Join(tmpDir, fmt.Sprintf("segment_%03d.mkv", segIndex))

	req := ffmpeg.EncodeRequest{
		InputPath:          run.input,
		OutputPath:         segPath,
		JobType:            queue.JobTypeVideo,
		StartOffsetSeconds: offset,
		VideoCodec:         e.cfg.Encoder.VideoCodec,
		Preset:             e.cfg.Encoder.Preset,
		CRF:                e.cfg.Encoder.CRF,
	}
	planned := e.plannedOutputPath(run.input, run.jobType)
	e.recordPlan(run.id, shellJoin(append([]string{e.cfg.Encoder.FFmpegBinary}, ffmpeg.EncodeArgs(req)...)), planned)

	res.segPath = segPath
	res.segStart = offset
	res.resumable = true

	encCtx, cancelEncode := context.WithCancel(ctx)
	defer cancelEncode()

	sink := ffmpeg.EncodeSink{
		Log: run.collect.Add,
		Progress: func(p ffmpeg.Progress) {
			abs := offset + p.OutTimeSeconds
			res.lastOut = abs
			if p.OutTimeSeconds > 0 {
				res.sawProgress = true
			}
			var percent float64
			known := run.duration > 0
			if known {
				percent = abs / run.duration * 100
			}
			now := time.Now()
			if p.Done || now.Sub(run.lastPublish) >= e.progressInterval {
				run.lastPublish = now
				sample := telemetrySample{
					outTime: float64Ptr(abs),
					speed:   float64Ptr(p.Speed),
				}
				if p.Frame > 0 {
					sample.frame = uint64Ptr(uint64(p.Frame))
				}
				e.applyProgress(run, percent, known, sample, p.TotalSizeBytes)
			}
			if e.interruptRequested(run.id) {
				cancelEncode()
			}
		},
	}

	if err := e.ffmpeg.Encode(encCtx, req, sink); err != nil {
		res.interrupted = encCtx.Err() != nil
		if !res.interrupted {
			res.err = services.Wrap(encodeMarker(err), "encode", "ffmpeg", "video encode failed", err)
		}
		return
	}

	segments := append(run.meta.SegmentPaths(), segPath)
	if err := e.finalizeSegments(ctx, segments, planned); err != nil {
		res.err = err
		return
	}
	if info, err := os.Stat(planned); err == nil {
		res.outputSizeMB = float64Ptr(float64(info.Size()) / bytesPerMB)
	}
	e.cleanupTmp(run.id)
	res.outputPath = planned
}

// encodeSimple handles audio and image jobs: a single ffmpeg run into the
// job's tmp directory, then a move into place. Pausing discards the partial.
func (e *Engine) encodeSimple(ctx context.Context, run *encodeRun) {
	res := run.res
	tmpDir := e.jobTmpDir(run.id)
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		res.err = services.Wrap(services.ErrConfiguration, "encode", "mkdir", "failed to create tmp directory", err)
		return
	}
	ext := ".opus"
	if run.jobType == queue.JobTypeImage {
		ext = ".webp"
	}
	tmpOut := filepath.Join(tmpDir, "output"+ext)

	req := ffmpeg.EncodeRequest{
		InputPath:  run.input,
		OutputPath: tmpOut,
		JobType:    run.jobType,
		CRF:        e.cfg.Encoder.CRF,
	}
	planned := e.plannedOutputPath(run.input, run.jobType)
	e.recordPlan(run.id, shellJoin(append([]string{e.cfg.Encoder.FFmpegBinary}, ffmpeg.EncodeArgs(req)...)), planned)

	res.segPath = tmpOut
	res.resumable = false

	encCtx, cancelEncode := context.WithCancel(ctx)
	defer cancelEncode()

	sink := ffmpeg.EncodeSink{
		Log: run.collect.Add,
		Progress: func(p ffmpeg.Progress) {
			res.lastOut = p.OutTimeSeconds
			if p.OutTimeSeconds > 0 {
				res.sawProgress = true
			}
			var percent float64
			known := run.jobType == queue.JobTypeAudio && run.duration > 0
			if known {
				percent = p.OutTimeSeconds / run.duration * 100
			}
			now := time.Now()
			if p.Done || now.Sub(run.lastPublish) >= e.progressInterval {
				run.lastPublish = now
				e.applyProgress(run, percent, known, telemetrySample{
					outTime: float64Ptr(p.OutTimeSeconds),
					speed:   float64Ptr(p.Speed),
				}, p.TotalSizeBytes)
			}
			if e.interruptRequested(run.id) {
				cancelEncode()
			}
		},
	}

	if err := e.ffmpeg.Encode(encCtx, req, sink); err != nil {
		res.interrupted = encCtx.Err() != nil
		if !res.interrupted {
			res.err = services.Wrap(encodeMarker(err), "encode", "ffmpeg", string(run.jobType)+" encode failed", err)
		}
		return
	}
	if err := e.finalizeSegments(ctx, []string{tmpOut}, planned); err != nil {
		res.err = err
		return
	}
	if info, err := os.Stat(planned); err == nil {
		res.outputSizeMB = float64Ptr(float64(info.Size()) / bytesPerMB)
	}
	e.cleanupTmp(run.id)
	res.outputPath = planned
}

// encodeDrapto delegates a video job to the drapto encoder. Drapto manages
// its own intermediate files, so a pause cannot keep partial output.
func (e *Engine) encodeDrapto(ctx context.Context, run *encodeRun) {
	res := run.res
	tmpDir := e.jobTmpDir(run.id)
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		res.err = services.Wrap(services.ErrConfiguration, "encode", "mkdir", "failed to create tmp directory", err)
		return
	}
	planned := e.plannedOutputPath(run.input, run.jobType)
	produced := drapto.OutputPath(run.input, tmpDir)
	e.recordPlan(run.id, shellJoin([]string{e.cfg.Encoder.DraptoBinary, "encode", "-i", run.input, "-o", tmpDir}), planned)

	res.segPath = produced
	res.resumable = false

	encCtx, cancelEncode := context.WithCancel(ctx)
	defer cancelEncode()

	handler := func(update drapto.ProgressUpdate) {
		switch update.Type {
		case drapto.EventTypeWarning:
			run.collect.AddWarning(update.Warning)
		case drapto.EventTypeEncodingProgress:
			if update.Percent > 0 {
				res.sawProgress = true
			}
			if run.duration > 0 {
				res.lastOut = update.Percent / 100 * run.duration
			}
			now := time.Now()
			if now.Sub(run.lastPublish) >= e.progressInterval {
				run.lastPublish = now
				sample := telemetrySample{speed: float64Ptr(update.Speed)}
				if update.CurrentFrame > 0 {
					sample.frame = uint64Ptr(uint64(update.CurrentFrame))
				}
				e.applyProgress(run, update.Percent, true, sample, 0)
			}
		default:
			if update.Message != "" {
				run.collect.Add(update.Message)
			}
		}
		if e.interruptRequested(run.id) {
			cancelEncode()
		}
	}

	out, err := e.drapto.Encode(encCtx, run.input, tmpDir, handler)
	if err != nil {
		res.interrupted = encCtx.Err() != nil
		if !res.interrupted {
			res.err = services.Wrap(services.ErrExternalTool, "encode", "drapto", "drapto encode failed", err)
		}
		return
	}
	if out != "" {
		produced = out
	}
	if err := e.finalizeSegments(ctx, []string{produced}, planned); err != nil {
		res.err = err
		return
	}
	if info, err := os.Stat(planned); err == nil {
		res.outputSizeMB = float64Ptr(float64(info.Size()) / bytesPerMB)
	}
	e.cleanupTmp(run.id)
	res.outputPath = planned
}

// telemetrySample is the optional raw encoder readings attached to one
// progress application.
type telemetrySample struct {
	outTime *float64
	speed   *float64
	frame   *uint64
}

// applyProgress folds one progress reading into the live job and the delta
// stream. Percent only applies when the duration basis is known, clamped
// below 100 so completion is reported exactly once, by settle.
func (e *Engine) applyProgress(run *encodeRun, percent float64, known bool, sample telemetrySample, outputBytes int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	job := e.jobs[run.id]
	if job == nil || job.Status != queue.StatusProcessing {
		return
	}

	nowMs := time.Now().UnixMilli()
	elapsed := run.res.baseElapsed + time.Since(run.runStart).Milliseconds()
	job.ElapsedMs = int64Ptr(elapsed)
	patch := queue.JobPatch{ID: run.id, ElapsedMs: int64Ptr(elapsed)}

	if known {
		if percent < 0 {
			percent = 0
		}
		if percent > 99.9 {
			percent = 99.9
		}
		job.Progress = percent
		patch.Progress = float64Ptr(percent)
	}

	meta := ensureMeta(job)
	meta.LastProgressUpdatedAtMs = int64Ptr(nowMs)
	telemetry := &queue.TelemetryPatch{
		ProgressEpoch:           uint64Ptr(run.epoch),
		LastProgressUpdatedAtMs: int64Ptr(nowMs),
	}
	if sample.outTime != nil {
		meta.LastProgressOutTimeSeconds = float64Ptr(*sample.outTime)
		telemetry.LastProgressOutTimeSeconds = float64Ptr(*sample.outTime)
	}
	if sample.speed != nil {
		meta.LastProgressSpeed = float64Ptr(*sample.speed)
		telemetry.LastProgressSpeed = float64Ptr(*sample.speed)
	}
	if sample.frame != nil {
		meta.LastProgressFrame = uint64Ptr(*sample.frame)
		telemetry.LastProgressFrame = uint64Ptr(*sample.frame)
	}
	patch.Telemetry = telemetry

	if outputBytes > 0 {
		mb := float64(outputBytes) / bytesPerMB
		job.OutputSizeMB = float64Ptr(mb)
		patch.OutputSizeMB = float64Ptr(mb)
	}

	if known && run.throttle.ShouldLog(percent, "encode") {
		e.persistLocked(job)
		e.logger.Info("encode progress", logging.Args(
			logging.String(logging.FieldJobID, run.id),
			logging.Float64("percent", percent),
			logging.String(logging.FieldEventType, "encode_progress"),
		)...)
	}
	e.publishPatchLocked(patch)
}

// interruptRequested reports whether any control request is pending for the
// job. Workers check it at progress checkpoints and stop the encoder early.
func (e *Engine) interruptRequested(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.waitRequests[id]; ok {
		return true
	}
	if _, ok := e.cancelRequests[id]; ok {
		return true
	}
	_, ok := e.restartRequests[id]
	return ok
}

// settle applies a finished run to the job, honoring any control request
// that arrived while it ran. Request precedence: restart, cancel, wait.
func (e *Engine) settle(id string, res *runResult) {
	e.mu.Lock()
	if cancelRun, ok := e.active[id]; ok {
		cancelRun()
		delete(e.active, id)
	}
	_, restart := e.restartRequests[id]
	_, cancelled := e.cancelRequests[id]
	_, waitReq := e.waitRequests[id]
	delete(e.restartRequests, id)
	delete(e.cancelRequests, id)
	delete(e.waitRequests, id)

	job := e.jobs[id]
	if job == nil {
		e.mu.Unlock()
		return
	}

	now := time.Now().UnixMilli()
	job.ElapsedMs = int64Ptr(res.baseElapsed + (now - res.runStartMs))

	var outcome string
	switch {
	case restart:
		e.resetJobLocked(job)
		e.enqueueTailLocked(id)
		outcome = "restarted"
	case cancelled:
		job.Status = queue.StatusCancelled
		job.Progress = 0
		job.EndTimeMs = int64Ptr(now)
		job.WaitMetadata = nil
		job.OutputSizeMB = nil
		e.cleanupTmp(id)
		outcome = "cancelled"
	case waitReq:
		e.recordPauseStateLocked(job, res)
		job.Status = queue.StatusPaused
		e.enqueueHeadLocked(id)
		outcome = "paused"
	case res.interrupted:
		// Shutdown or an external kill: keep the resume state and put the
		// job back at the head so the next daemon run continues it.
		e.recordPauseStateLocked(job, res)
		job.Status = queue.StatusQueued
		e.enqueueHeadLocked(id)
		outcome = "requeued"
	case res.err != nil:
		status := services.FailureStatus(res.err)
		job.Status = status
		job.EndTimeMs = int64Ptr(now)
		if status == queue.StatusSkipped {
			job.SkipReason = res.err.Error()
		} else {
			job.FailureReason = res.err.Error()
		}
		job.WaitMetadata = nil
		job.OutputSizeMB = nil
		e.cleanupTmp(id)
		outcome = string(status)
	default:
		job.Status = queue.StatusCompleted
		job.Progress = 100
		job.EndTimeMs = int64Ptr(now)
		job.OutputPath = res.outputPath
		job.OutputSizeMB = res.outputSizeMB
		job.WaitMetadata = nil
		outcome = "completed"
	}

	if len(res.logHead) > 0 && len(job.LogHead) == 0 {
		job.LogHead = res.logHead
	}
	if res.logTail != "" {
		job.LogTail = res.logTail
	}
	for _, w := range res.warnings {
		if len(job.Warnings) >= maxJobWarnings {
			break
		}
		job.Warnings = append(job.Warnings, w)
	}

	e.reindexLocked()
	e.persistLocked(job)
	e.publishStructuralLocked()
	e.mu.Unlock()

	e.kick()

	attrs := []logging.Attr{
		logging.String(logging.FieldJobID, id),
		logging.String("outcome", outcome),
		logging.String(logging.FieldEventType, "encode_settled"),
	}
	if res.err != nil {
		attrs = append(attrs, logging.Error(res.err))
	}
	e.logger.Info("encode settled", logging.Args(attrs...)...)
}

// recordPauseStateLocked captures resume state on the job's wait metadata.
// A resumable run that made progress contributes its segment; otherwise the
// partial output is discarded and, for non-resumable runs, the resume state
// is cleared so the next run starts over.
func (e *Engine) recordPauseStateLocked(job *queue.Job, res *runResult) {
	meta := ensureMeta(job)
	meta.LastProgressPercent = float64Ptr(job.Progress)
	if job.ElapsedMs != nil {
		meta.ProcessedWallMillis = int64Ptr(*job.ElapsedMs)
	}

	if res.resumable && res.sawProgress && res.lastOut > res.segStart {
		if len(meta.Segments) == 0 && meta.TmpOutputPath != "" && meta.TmpOutputPath != res.segPath {
			meta.Segments = []string{meta.TmpOutputPath}
			meta.SegmentEndTargets = []float64{res.segStart}
		}
		meta.Segments = append(meta.Segments, res.segPath)
		meta.SegmentEndTargets = append(meta.SegmentEndTargets, res.lastOut)
		meta.ProcessedSeconds = float64Ptr(res.lastOut)
		meta.TmpOutputPath = res.segPath
		return
	}

	if res.segPath != "" {
		_ = os.Remove(res.segPath)
	}
	if !res.resumable {
		meta.TmpOutputPath = ""
		meta.Segments = nil
		meta.SegmentEndTargets = nil
		meta.ProcessedSeconds = nil
	}
}

// recordPlan publishes the planned command line and output path before the
// encoder starts, so clients can copy them while the job runs.
func (e *Engine) recordPlan(id, command, outputPath string) {
	e.mu.Lock()
	if job := e.jobs[id]; job != nil {
		job.Command = command
		job.OutputPath = outputPath
		e.persistLocked(job)
		e.publishStructuralLocked()
	}
	e.mu.Unlock()
}

// plannedOutputPath derives the final output location: the configured output
// directory, or the input's directory when none is set.
func (e *Engine) plannedOutputPath(inputPath string, jobType queue.JobType) string {
	dir := e.cfg.Paths.OutputDir
	if dir == "" {
		dir = filepath.Dir(inputPath)
	}
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	ext := ".mkv"
	switch jobType {
	case queue.JobTypeAudio:
		ext = ".opus"
	case queue.JobTypeImage:
		ext = ".webp"
	}
	return filepath.Join(dir, stem+e.cfg.Encoder.OutputSuffix+ext)
}

// finalizeSegments produces the final output from the run's segment list: a
// single segment moves into place, several are joined losslessly.
func (e *Engine) finalizeSegments(ctx context.Context, segments []string, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "finalize", "mkdir", "failed to create output directory", err)
	}
	if len(segments) == 1 {
		if err := fileutil.MoveFile(segments[0], outputPath); err != nil {
			return services.Wrap(services.ErrExternalTool, "finalize", "move", "failed to move encoded output", err)
		}
		return nil
	}
	if err := e.ffmpeg.Concat(ctx, segments, outputPath); err != nil {
		return services.Wrap(services.ErrExternalTool, "finalize", "concat", "failed to join segments", err)
	}
	return nil
}

// logCollector accumulates encoder output into the run result: the first
// lines for context, the latest line for at-a-glance state, and any
// warning-looking lines as structured job warnings.
type logCollector struct {
	mu  sync.Mutex
	res *runResult
}

func newLogCollector(res *runResult) *logCollector {
	return &logCollector{res: res}
}

func (c *logCollector) Add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.res.logHead) < logHeadLines {
		c.res.logHead = append(c.res.logHead, line)
	}
	c.res.logTail = line
	lower := strings.ToLower(line)
	if strings.Contains(lower, "warning") || strings.Contains(lower, "deprecated") {
		c.warnLocked(line)
	}
}

func (c *logCollector) AddWarning(message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnLocked(message)
}

func (c *logCollector) warnLocked(message string) {
	if len(c.res.warnings) >= maxJobWarnings {
		return
	}
	c.res.warnings = append(c.res.warnings, queue.JobWarning{Code: "encoder_warning", Message: message})
}

func shellJoin(parts []string) string {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = shellQuote(p)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$&|<>;*?()[]{}`") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func float64Ptr(v float64) *float64 { return &v }

func uint64Ptr(v uint64) *uint64 { return &v }
