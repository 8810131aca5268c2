package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// DataDir holds the queue database and generated previews.
	DataDir string `toml:"data_dir"`
	// LogDir holds the daemon log plus its socket and lock files.
	LogDir string `toml:"log_dir"`
	// OutputDir is the default destination for encoded files. Empty means
	// outputs land alongside their inputs.
	OutputDir string `toml:"output_dir"`
	// TmpDir holds partial output segments for paused and in-flight encodes.
	TmpDir string `toml:"tmp_dir"`
}

// Worker contains encoder scheduling configuration.
type Worker struct {
	MaxConcurrent      int  `toml:"max_concurrent"`
	ResumeOnStart      bool `toml:"resume_on_start"`
	ProgressIntervalMs int  `toml:"progress_interval_ms"`
	QueuePollInterval  int  `toml:"queue_poll_interval"`
}

// Encoder selects and tunes the transcode backend.
type Encoder struct {
	// Backend is "ffmpeg" or "drapto".
	Backend       string `toml:"backend"`
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	DraptoBinary  string `toml:"drapto_binary"`
	// DraptoUseLibrary runs drapto in-process instead of shelling out.
	DraptoUseLibrary bool   `toml:"drapto_use_library"`
	VideoCodec       string `toml:"video_codec"`
	Preset           string `toml:"preset"`
	CRF              int    `toml:"crf"`
	// OutputSuffix is appended to the input stem to form the output name.
	OutputSuffix string `toml:"output_suffix"`
	// EncodeTimeout bounds a single encoder run in seconds; 0 disables it.
	EncodeTimeout int `toml:"encode_timeout"`
}

// Scan contains watched-directory ingestion settings.
type Scan struct {
	Enabled         bool     `toml:"enabled"`
	Dirs            []string `toml:"dirs"`
	IntervalSeconds int      `toml:"interval_seconds"`
	Extensions      []string `toml:"extensions"`
	MinSizeMB       int      `toml:"min_size_mb"`
}

// Preview contains thumbnail generation settings.
type Preview struct {
	Enabled bool `toml:"enabled"`
	// CapturePercent is where in the media the thumbnail frame is taken,
	// as a percentage of duration.
	CapturePercent int `toml:"capture_percent"`
	MaxWidth       int `toml:"max_width"`
}

// Console contains display defaults for the interactive console.
type Console struct {
	// ViewMode is "display" or "queue".
	ViewMode      string `toml:"view_mode"`
	SortField     string `toml:"sort_field"`
	SortDirection string `toml:"sort_direction"`
	// SecondarySortField breaks primary-sort ties; empty disables the
	// tie-break.
	SecondarySortField     string `toml:"secondary_sort_field"`
	SecondarySortDirection string `toml:"secondary_sort_direction"`
	// RefreshRateMs paces elapsed-time redraws.
	RefreshRateMs int `toml:"refresh_rate_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for FFUI.
//
// Configuration sections by subsystem:
//   - Paths: data, log, output, and tmp directories
//   - Worker: concurrency, crash-resume behavior, progress cadence
//   - Encoder: ffmpeg/drapto backend selection and encode settings
//   - Scan: watched-directory ingestion
//   - Preview: thumbnail generation
//   - Console: interactive console display defaults
//   - Logging: log format, level, and retention
type Config struct {
	Paths   Paths   `toml:"paths"`
	Worker  Worker  `toml:"worker"`
	Encoder Encoder `toml:"encoder"`
	Scan    Scan    `toml:"scan"`
	Preview Preview `toml:"preview"`
	Console Console `toml:"console"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ffui/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/ffui/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ffui.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// OutputDir is created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.TmpDir, c.PreviewDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		// Best-effort to avoid failing config load when storage is offline.
		_ = os.MkdirAll(c.Paths.OutputDir, 0o755)
	}
	return nil
}

// QueueDatabasePath returns the SQLite queue database path.
func (c *Config) QueueDatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// PreviewDir returns the directory holding generated thumbnails.
func (c *Config) PreviewDir() string {
	return filepath.Join(c.Paths.DataDir, "previews")
}

// SocketPath returns the daemon's unix control socket path.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "ffuid.sock")
}

// LockPath returns the daemon's singleton lock file path.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "ffuid.lock")
}

// DaemonLogPath returns the daemon's structured log file path.
func (c *Config) DaemonLogPath() string {
	return filepath.Join(c.Paths.LogDir, "ffuid.log")
}

// PIDPath returns the daemon's pid file path.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, "ffuid.pid")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
