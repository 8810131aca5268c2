package drapto

import (
	"time"

	draptolib "github.com/five82/drapto"
)

// reporterAdapter satisfies the drapto Reporter interface and forwards each
// event to the worker as a typed ProgressUpdate.
type reporterAdapter struct {
	callback func(ProgressUpdate)
}

var _ draptolib.Reporter = (*reporterAdapter)(nil)

func newReporterAdapter(callback func(ProgressUpdate)) *reporterAdapter {
	return &reporterAdapter{callback: callback}
}

// emit stamps the event kind and time before handing update to the callback.
func (r *reporterAdapter) emit(kind EventType, update ProgressUpdate) {
	update.Type = kind
	update.Timestamp = time.Now()
	r.callback(update)
}

func (r *reporterAdapter) Hardware(hw draptolib.HardwareSummary) {
	r.emit(EventTypeHardware, ProgressUpdate{
		Hardware: &HardwareInfo{Hostname: hw.Hostname},
	})
}

func (r *reporterAdapter) Initialization(info draptolib.InitializationSummary) {
	r.emit(EventTypeInitialization, ProgressUpdate{
		Video: &VideoInfo{
			InputFile:        info.InputFile,
			OutputFile:       info.OutputFile,
			Duration:         info.Duration,
			Resolution:       info.Resolution,
			Category:         info.Category,
			DynamicRange:     info.DynamicRange,
			AudioDescription: info.AudioDescription,
		},
	})
}

func (r *reporterAdapter) StageProgress(stage draptolib.StageProgress) {
	update := ProgressUpdate{
		Percent: float64(stage.Percent),
		Stage:   stage.Stage,
		Message: stage.Message,
	}
	if stage.ETA != nil {
		update.ETA = *stage.ETA
	}
	r.emit(EventTypeStageProgress, update)
}

func (r *reporterAdapter) CropResult(crop draptolib.CropSummary) {
	candidates := make([]CropCandidate, 0, len(crop.Candidates))
	for _, c := range crop.Candidates {
		candidates = append(candidates, CropCandidate{
			Crop:    c.Crop,
			Count:   c.Count,
			Percent: c.Percent,
		})
	}
	r.emit(EventTypeCropResult, ProgressUpdate{
		Crop: &CropSummary{
			Message:      crop.Message,
			Crop:         crop.Crop,
			Required:     crop.Required,
			Disabled:     crop.Disabled,
			Candidates:   candidates,
			TotalSamples: crop.TotalSamples,
		},
	})
}

func (r *reporterAdapter) EncodingConfig(cfg draptolib.EncodingConfigSummary) {
	settings := make([]PresetSetting, 0, len(cfg.DraptoPresetSettings))
	for _, pair := range cfg.DraptoPresetSettings {
		settings = append(settings, PresetSetting{Key: pair[0], Value: pair[1]})
	}
	r.emit(EventTypeEncodingConfig, ProgressUpdate{
		EncodingConfig: &EncodingConfig{
			Encoder:            cfg.Encoder,
			Preset:             cfg.Preset,
			Tune:               cfg.Tune,
			Quality:            cfg.Quality,
			PixelFormat:        cfg.PixelFormat,
			MatrixCoefficients: cfg.MatrixCoefficients,
			AudioCodec:         cfg.AudioCodec,
			AudioDescription:   cfg.AudioDescription,
			DraptoPreset:       cfg.DraptoPreset,
			PresetSettings:     settings,
			SVTParams:          cfg.SVTAV1Params,
		},
	})
}

func (r *reporterAdapter) EncodingStarted(totalFrames uint64) {
	r.emit(EventTypeEncodingStarted, ProgressUpdate{
		TotalFrames: int64(totalFrames),
	})
}

func (r *reporterAdapter) EncodingProgress(snap draptolib.ProgressSnapshot) {
	r.emit(EventTypeEncodingProgress, ProgressUpdate{
		Percent:      float64(snap.Percent),
		Stage:        "encoding",
		Speed:        float64(snap.Speed),
		FPS:          float64(snap.FPS),
		ETA:          snap.ETA,
		Bitrate:      snap.Bitrate,
		TotalFrames:  int64(snap.TotalFrames),
		CurrentFrame: int64(snap.CurrentFrame),
	})
}

func (r *reporterAdapter) ValidationComplete(report draptolib.ValidationSummary) {
	steps := make([]ValidationStep, 0, len(report.Steps))
	for _, step := range report.Steps {
		steps = append(steps, ValidationStep{
			Name:    step.Name,
			Passed:  step.Passed,
			Details: step.Details,
		})
	}
	r.emit(EventTypeValidation, ProgressUpdate{
		Validation: &ValidationSummary{
			Passed: report.Passed,
			Steps:  steps,
		},
	})
}

func (r *reporterAdapter) EncodingComplete(outcome draptolib.EncodingOutcome) {
	result := &EncodingResult{
		InputFile:    outcome.InputFile,
		OutputFile:   outcome.OutputFile,
		OriginalSize: int64(outcome.OriginalSize),
		EncodedSize:  int64(outcome.EncodedSize),
		VideoStream:  outcome.VideoStream,
		AudioStream:  outcome.AudioStream,
		AverageSpeed: float64(outcome.AverageSpeed),
		OutputPath:   outcome.OutputPath,
		Duration:     outcome.TotalTime,
	}
	if result.OriginalSize > 0 {
		result.SizeReductionPercent = (1 - float64(result.EncodedSize)/float64(result.OriginalSize)) * 100
	}
	r.emit(EventTypeEncodingComplete, ProgressUpdate{Result: result})
}

func (r *reporterAdapter) BatchStarted(start draptolib.BatchStartInfo) {
	r.emit(EventTypeBatchStarted, ProgressUpdate{
		BatchStart: &BatchStartInfo{
			TotalFiles: start.TotalFiles,
			FileList:   append([]string(nil), start.FileList...),
			OutputDir:  start.OutputDir,
		},
	})
}

func (r *reporterAdapter) FileProgress(file draptolib.FileProgressContext) {
	r.emit(EventTypeFileProgress, ProgressUpdate{
		FileProgress: &FileProgress{
			CurrentFile: file.CurrentFile,
			TotalFiles:  file.TotalFiles,
		},
	})
}

func (r *reporterAdapter) BatchComplete(batch draptolib.BatchSummary) {
	r.emit(EventTypeBatchComplete, ProgressUpdate{
		BatchSummary: &BatchSummary{
			SuccessfulCount:   batch.SuccessfulCount,
			TotalFiles:        batch.TotalFiles,
			TotalOriginalSize: int64(batch.TotalOriginalSize),
			TotalEncodedSize:  int64(batch.TotalEncodedSize),
			TotalDuration:     batch.TotalDuration,
		},
	})
}

func (r *reporterAdapter) Warning(message string) {
	r.emit(EventTypeWarning, ProgressUpdate{Warning: message})
}

func (r *reporterAdapter) Error(issue draptolib.ReporterError) {
	r.emit(EventTypeError, ProgressUpdate{
		Error: &ReporterIssue{
			Title:      issue.Title,
			Message:    issue.Message,
			Context:    issue.Context,
			Suggestion: issue.Suggestion,
		},
	})
}

func (r *reporterAdapter) OperationComplete(message string) {
	r.emit(EventTypeOperationComplete, ProgressUpdate{OperationComplete: message})
}
