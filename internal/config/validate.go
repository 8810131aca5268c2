package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateScan(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateWorker() error {
	return ensurePositiveMap(map[string]int{
		"worker.max_concurrent":       c.Worker.MaxConcurrent,
		"worker.progress_interval_ms": c.Worker.ProgressIntervalMs,
		"worker.queue_poll_interval":  c.Worker.QueuePollInterval,
	})
}

func (c *Config) validateEncoder() error {
	switch c.Encoder.Backend {
	case "ffmpeg", "drapto":
	default:
		return fmt.Errorf("encoder.backend must be \"ffmpeg\" or \"drapto\", got %q", c.Encoder.Backend)
	}
	if c.Encoder.CRF < 0 || c.Encoder.CRF > 63 {
		return errors.New("encoder.crf must be between 0 and 63")
	}
	if c.Encoder.EncodeTimeout < 0 {
		return errors.New("encoder.encode_timeout must be >= 0 (seconds)")
	}
	return nil
}

func (c *Config) validateScan() error {
	if !c.Scan.Enabled {
		return nil
	}
	if len(c.Scan.Dirs) == 0 {
		return errors.New("scan.dirs must include at least one directory when scan.enabled is true")
	}
	if c.Scan.IntervalSeconds <= 0 {
		return errors.New("scan.interval_seconds must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
