package drapto

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// Client defines Drapto encoding behaviour.
type Client interface {
	Encode(ctx context.Context, inputPath, outputDir string, progress func(ProgressUpdate)) (string, error)
}

type settings struct {
	binary         string
	logDir         string
	preset         int
	presetSet      bool
	disableDenoise bool
}

// Option configures a Drapto client.
type Option func(*settings)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(s *settings) {
		if binary != "" {
			s.binary = binary
		}
	}
}

// WithLogDir directs Drapto's own log files into the given directory.
func WithLogDir(dir string) Option {
	return func(s *settings) {
		s.logDir = strings.TrimSpace(dir)
	}
}

// WithPreset selects the Drapto encode preset (0 slowest to 10 fastest).
func WithPreset(preset int) Option {
	return func(s *settings) {
		s.preset = preset
		s.presetSet = true
	}
}

// WithDisableDenoise turns off Drapto's denoise filter.
func WithDisableDenoise(disable bool) Option {
	return func(s *settings) {
		s.disableDenoise = disable
	}
}

// CLI wraps the drapto command-line encoder.
type CLI struct {
	settings
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{settings: settings{binary: "drapto"}}
	for _, opt := range opts {
		opt(&cli.settings)
	}
	return cli
}

// Encode launches drapto encode and streams its JSON progress events until
// the process exits. It returns the output path drapto writes to.
func (c *CLI) Encode(ctx context.Context, inputPath, outputDir string, progress func(ProgressUpdate)) (string, error) {
	cleanOutputDir, err := checkEncodeArgs(inputPath, outputDir)
	if err != nil {
		return "", err
	}

	args := []string{"encode", "--input", inputPath, "--output", cleanOutputDir, "--progress-json", "--responsive"}
	if c.logDir != "" {
		args = append(args, "--log-dir", c.logDir)
	}
	if c.presetSet {
		args = append(args, "--preset", strconv.Itoa(c.preset))
	}
	if c.disableDenoise {
		args = append(args, "--no-denoise")
	}

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start drapto: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		update, ok := parseEventLine(scanner.Bytes())
		if !ok {
			continue
		}
		if progress != nil {
			progress(update)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read drapto output: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("drapto encode failed: %w", err)
	}

	return OutputPath(inputPath, cleanOutputDir), nil
}

// checkEncodeArgs rejects blank paths up front and returns the output
// directory with surrounding whitespace removed.
func checkEncodeArgs(inputPath, outputDir string) (string, error) {
	if strings.TrimSpace(inputPath) == "" {
		return "", errors.New("input path required")
	}
	outputDir = strings.TrimSpace(outputDir)
	if outputDir == "" {
		return "", errors.New("output directory required")
	}
	return outputDir, nil
}

// OutputPath returns the path drapto writes for the given input: the input's
// stem with an .mkv extension inside outputDir.
func OutputPath(inputPath, outputDir string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return filepath.Join(strings.TrimSpace(outputDir), stem+".mkv")
}

func parseEventLine(line []byte) (ProgressUpdate, bool) {
	var payload struct {
		Type         string  `json:"type"`
		Percent      float64 `json:"percent"`
		Stage        string  `json:"stage"`
		Message      string  `json:"message"`
		ETASeconds   float64 `json:"eta_seconds"`
		Speed        float64 `json:"speed"`
		FPS          float64 `json:"fps"`
		Bitrate      string  `json:"bitrate"`
		TotalFrames  int64   `json:"total_frames"`
		CurrentFrame int64   `json:"current_frame"`
		Warning      string  `json:"warning"`
	}
	if err := json.Unmarshal(line, &payload); err != nil {
		return ProgressUpdate{}, false
	}
	update := ProgressUpdate{
		Type:         EventType(payload.Type),
		Timestamp:    time.Now(),
		Percent:      payload.Percent,
		Stage:        payload.Stage,
		Message:      payload.Message,
		Speed:        payload.Speed,
		FPS:          payload.FPS,
		Bitrate:      payload.Bitrate,
		TotalFrames:  payload.TotalFrames,
		CurrentFrame: payload.CurrentFrame,
		Warning:      payload.Warning,
	}
	if payload.ETASeconds > 0 {
		update.ETA = time.Duration(payload.ETASeconds * float64(time.Second))
	}
	return update, true
}

var _ Client = (*CLI)(nil)
