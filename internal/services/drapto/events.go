package drapto

import "time"

// EventType classifies a progress update from the encoder.
type EventType string

const (
	EventTypeUnknown           EventType = ""
	EventTypeHardware          EventType = "hardware"
	EventTypeInitialization    EventType = "initialization"
	EventTypeStageProgress     EventType = "stage_progress"
	EventTypeCropResult        EventType = "crop_result"
	EventTypeEncodingConfig    EventType = "encoding_config"
	EventTypeEncodingStarted   EventType = "encoding_started"
	EventTypeEncodingProgress  EventType = "encoding_progress"
	EventTypeValidation        EventType = "validation"
	EventTypeEncodingComplete  EventType = "encoding_complete"
	EventTypeWarning           EventType = "warning"
	EventTypeError             EventType = "error"
	EventTypeOperationComplete EventType = "operation_complete"
	EventTypeBatchStarted      EventType = "batch_started"
	EventTypeFileProgress      EventType = "file_progress"
	EventTypeBatchComplete     EventType = "batch_complete"
)

// ProgressUpdate is a single typed event from the encoder. Only the fields
// relevant to the event Type are populated; the scalar progress fields ride
// along on stage and encoding progress events.
type ProgressUpdate struct {
	Type      EventType
	Timestamp time.Time

	Percent      float64
	Stage        string
	Message      string
	Speed        float64
	FPS          float64
	ETA          time.Duration
	Bitrate      string
	TotalFrames  int64
	CurrentFrame int64

	Warning           string
	OperationComplete string

	Hardware       *HardwareInfo
	Video          *VideoInfo
	Crop           *CropSummary
	EncodingConfig *EncodingConfig
	Validation     *ValidationSummary
	Result         *EncodingResult
	Error          *ReporterIssue
	BatchStart     *BatchStartInfo
	FileProgress   *FileProgress
	BatchSummary   *BatchSummary
}

// HardwareInfo describes the machine running the encode.
type HardwareInfo struct {
	Hostname string
}

// VideoInfo summarises the source file discovered during initialization.
type VideoInfo struct {
	InputFile        string
	OutputFile       string
	Duration         string
	Resolution       string
	Category         string
	DynamicRange     string
	AudioDescription string
}

// CropCandidate is one crop geometry considered during detection.
type CropCandidate struct {
	Crop    string
	Count   int
	Percent float64
}

// CropSummary reports the outcome of crop detection.
type CropSummary struct {
	Message      string
	Crop         string
	Required     bool
	Disabled     bool
	Candidates   []CropCandidate
	TotalSamples int
}

// PresetSetting is a single key/value pair from the resolved encoder preset.
type PresetSetting struct {
	Key   string
	Value string
}

// EncodingConfig captures the resolved encoder configuration.
type EncodingConfig struct {
	Encoder            string
	Preset             string
	Tune               string
	Quality            string
	PixelFormat        string
	MatrixCoefficients string
	AudioCodec         string
	AudioDescription   string
	DraptoPreset       string
	PresetSettings     []PresetSetting
	SVTParams          string
}

// ValidationStep is one post-encode validation check.
type ValidationStep struct {
	Name    string
	Passed  bool
	Details string
}

// ValidationSummary reports post-encode validation results.
type ValidationSummary struct {
	Passed bool
	Steps  []ValidationStep
}

// EncodingResult summarises a finished encode.
type EncodingResult struct {
	InputFile            string
	OutputFile           string
	OriginalSize         int64
	EncodedSize          int64
	VideoStream          string
	AudioStream          string
	AverageSpeed         float64
	OutputPath           string
	Duration             time.Duration
	SizeReductionPercent float64
}

// ReporterIssue is a structured error surfaced by the encoder.
type ReporterIssue struct {
	Title      string
	Message    string
	Context    string
	Suggestion string
}

// BatchStartInfo announces a multi-file encode run.
type BatchStartInfo struct {
	TotalFiles int
	FileList   []string
	OutputDir  string
}

// FileProgress locates the current file within a batch.
type FileProgress struct {
	CurrentFile int
	TotalFiles  int
}

// BatchSummary reports the outcome of a multi-file encode run.
type BatchSummary struct {
	SuccessfulCount   int
	TotalFiles        int
	TotalOriginalSize int64
	TotalEncodedSize  int64
	TotalDuration     time.Duration
}
