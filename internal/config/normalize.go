package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorker()
	c.normalizeEncoder()
	if err := c.normalizeScan(); err != nil {
		return err
	}
	c.normalizePreview()
	c.normalizeConsole()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
			return fmt.Errorf("paths.output_dir: %w", err)
		}
	} else {
		c.Paths.OutputDir = ""
	}
	if strings.TrimSpace(c.Paths.TmpDir) == "" {
		c.Paths.TmpDir = filepath.Join(c.Paths.DataDir, "tmp")
	}
	if c.Paths.TmpDir, err = expandPath(c.Paths.TmpDir); err != nil {
		return fmt.Errorf("paths.tmp_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeWorker() {
	if c.Worker.MaxConcurrent <= 0 {
		c.Worker.MaxConcurrent = defaultMaxConcurrent
	}
	if c.Worker.ProgressIntervalMs <= 0 {
		c.Worker.ProgressIntervalMs = defaultProgressIntervalMs
	}
	if c.Worker.QueuePollInterval <= 0 {
		c.Worker.QueuePollInterval = defaultQueuePollInterval
	}
}

func (c *Config) normalizeEncoder() {
	c.Encoder.Backend = strings.ToLower(strings.TrimSpace(c.Encoder.Backend))
	if c.Encoder.Backend == "" {
		c.Encoder.Backend = "ffmpeg"
	}
	if strings.TrimSpace(c.Encoder.FFmpegBinary) == "" {
		c.Encoder.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Encoder.FFprobeBinary) == "" {
		c.Encoder.FFprobeBinary = defaultFFprobeBinary
	}
	if strings.TrimSpace(c.Encoder.DraptoBinary) == "" {
		c.Encoder.DraptoBinary = defaultDraptoBinary
	}
	if strings.TrimSpace(c.Encoder.VideoCodec) == "" {
		c.Encoder.VideoCodec = defaultVideoCodec
	}
	if strings.TrimSpace(c.Encoder.Preset) == "" {
		c.Encoder.Preset = defaultEncoderPreset
	}
	if c.Encoder.CRF <= 0 {
		c.Encoder.CRF = defaultCRF
	}
	if strings.TrimSpace(c.Encoder.OutputSuffix) == "" {
		c.Encoder.OutputSuffix = defaultOutputSuffix
	}
	if c.Encoder.EncodeTimeout < 0 {
		c.Encoder.EncodeTimeout = 0
	}
}

func (c *Config) normalizeScan() error {
	if c.Scan.IntervalSeconds <= 0 {
		c.Scan.IntervalSeconds = defaultScanInterval
	}
	dirs := make([]string, 0, len(c.Scan.Dirs))
	for _, dir := range c.Scan.Dirs {
		trimmed := strings.TrimSpace(dir)
		if trimmed == "" {
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("scan.dirs: %w", err)
		}
		dirs = append(dirs, expanded)
	}
	c.Scan.Dirs = dirs

	if len(c.Scan.Extensions) == 0 {
		c.Scan.Extensions = defaultScanExtensions()
	} else {
		exts := make([]string, 0, len(c.Scan.Extensions))
		seen := make(map[string]struct{}, len(c.Scan.Extensions))
		for _, ext := range c.Scan.Extensions {
			normalized := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(ext, ".")))
			if normalized == "" {
				continue
			}
			if _, exists := seen[normalized]; exists {
				continue
			}
			seen[normalized] = struct{}{}
			exts = append(exts, normalized)
		}
		if len(exts) == 0 {
			exts = defaultScanExtensions()
		}
		c.Scan.Extensions = exts
	}
	if c.Scan.MinSizeMB < 0 {
		c.Scan.MinSizeMB = 0
	}
	return nil
}

func (c *Config) normalizePreview() {
	if c.Preview.CapturePercent <= 0 || c.Preview.CapturePercent > 100 {
		c.Preview.CapturePercent = defaultCapturePercent
	}
	if c.Preview.MaxWidth <= 0 {
		c.Preview.MaxWidth = defaultPreviewMaxWidth
	}
}

func (c *Config) normalizeConsole() {
	c.Console.ViewMode = strings.ToLower(strings.TrimSpace(c.Console.ViewMode))
	switch c.Console.ViewMode {
	case "", "display":
		c.Console.ViewMode = "display"
	case "queue":
	default:
		c.Console.ViewMode = "display"
	}
	c.Console.SortField = strings.TrimSpace(c.Console.SortField)
	if c.Console.SortField == "" {
		c.Console.SortField = defaultSortField
	}
	c.Console.SortDirection = normalizeSortDirection(c.Console.SortDirection)
	c.Console.SecondarySortField = strings.TrimSpace(c.Console.SecondarySortField)
	c.Console.SecondarySortDirection = normalizeSortDirection(c.Console.SecondarySortDirection)
	if c.Console.RefreshRateMs <= 0 {
		c.Console.RefreshRateMs = defaultRefreshRateMs
	}
}

func normalizeSortDirection(dir string) string {
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "desc", "descending":
		return "desc"
	default:
		return "asc"
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
