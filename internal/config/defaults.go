package config

const (
	defaultDataDir            = "~/.local/share/ffui"
	defaultLogDir             = "~/.local/share/ffui/logs"
	defaultLogRetentionDays   = 60
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultMaxConcurrent      = 1
	defaultProgressIntervalMs = 100
	defaultQueuePollInterval  = 2
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultDraptoBinary       = "drapto"
	defaultVideoCodec         = "libsvtav1"
	defaultEncoderPreset      = "6"
	defaultCRF                = 28
	defaultOutputSuffix       = ".compressed"
	defaultScanInterval       = 30
	defaultCapturePercent     = 10
	defaultPreviewMaxWidth    = 480
	defaultViewMode           = "display"
	defaultSortField          = "addedTime"
	defaultSortDirection      = "asc"
	defaultRefreshRateMs      = 1000
)

func defaultScanExtensions() []string {
	return []string{
		"mp4", "mkv", "mov", "avi", "webm", "m4v", "ts",
		"jpg", "jpeg", "png", "webp",
		"mp3", "flac", "wav", "m4a",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Worker: Worker{
			MaxConcurrent:      defaultMaxConcurrent,
			ResumeOnStart:      true,
			ProgressIntervalMs: defaultProgressIntervalMs,
			QueuePollInterval:  defaultQueuePollInterval,
		},
		Encoder: Encoder{
			Backend:       "ffmpeg",
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			DraptoBinary:  defaultDraptoBinary,
			VideoCodec:    defaultVideoCodec,
			Preset:        defaultEncoderPreset,
			CRF:           defaultCRF,
			OutputSuffix:  defaultOutputSuffix,
		},
		Scan: Scan{
			IntervalSeconds: defaultScanInterval,
			Extensions:      defaultScanExtensions(),
		},
		Preview: Preview{
			Enabled:        true,
			CapturePercent: defaultCapturePercent,
			MaxWidth:       defaultPreviewMaxWidth,
		},
		Console: Console{
			ViewMode:               defaultViewMode,
			SortField:              defaultSortField,
			SortDirection:          defaultSortDirection,
			SecondarySortDirection: defaultSortDirection,
			RefreshRateMs:          defaultRefreshRateMs,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
