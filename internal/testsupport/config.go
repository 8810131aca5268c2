package testsupport

import (
	"path/filepath"
	"testing"

	"ffui/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.TmpDir = filepath.Join(base, "tmp")
	cfg.Worker.QueuePollInterval = 1
	cfg.Worker.ProgressIntervalMs = 0

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithBackend selects the encoder backend on the test config.
func WithBackend(backend string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Encoder.Backend = backend
	}
}

// WithMaxConcurrent sets the worker slot count on the test config.
func WithMaxConcurrent(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Worker.MaxConcurrent = n
	}
}

// WithPreviewDisabled turns thumbnail generation off on the test config.
func WithPreviewDisabled() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Preview.Enabled = false
	}
}
