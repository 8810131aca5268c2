package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"ffui/internal/config"
)

var commandContext = exec.CommandContext

// Client defines the encoder behaviour the daemon depends on.
type Client interface {
	Inspect(ctx context.Context, path string) (ProbeResult, error)
	Encode(ctx context.Context, req EncodeRequest, sink EncodeSink) error
	Concat(ctx context.Context, segments []string, outputPath string) error
	Screenshot(ctx context.Context, req ScreenshotRequest) error
}

// EncodeSink receives the encoder's output streams. Both callbacks are
// optional.
type EncodeSink struct {
	Progress func(Progress)
	Log      func(line string)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithFFmpegBinary overrides the ffmpeg binary name.
func WithFFmpegBinary(binary string) Option {
	return func(c *CLI) {
		if strings.TrimSpace(binary) != "" {
			c.ffmpegBinary = binary
		}
	}
}

// WithFFprobeBinary overrides the ffprobe binary name.
func WithFFprobeBinary(binary string) Option {
	return func(c *CLI) {
		if strings.TrimSpace(binary) != "" {
			c.ffprobeBinary = binary
		}
	}
}

// WithStopGrace bounds how long a cancelled encode may keep running after
// SIGINT before it is killed.
func WithStopGrace(grace time.Duration) Option {
	return func(c *CLI) {
		if grace > 0 {
			c.stopGrace = grace
		}
	}
}

// WithEncodeTimeout bounds a single encoder run; zero disables the limit.
func WithEncodeTimeout(seconds int) Option {
	return func(c *CLI) {
		if seconds > 0 {
			c.encodeTimeout = time.Duration(seconds) * time.Second
		}
	}
}

// CLI shells out to the ffmpeg and ffprobe binaries.
type CLI struct {
	ffmpegBinary  string
	ffprobeBinary string
	stopGrace     time.Duration
	encodeTimeout time.Duration
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{
		ffmpegBinary:  "ffmpeg",
		ffprobeBinary: "ffprobe",
		stopGrace:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// NewFromConfig builds a CLI from the encoder configuration section.
func NewFromConfig(cfg *config.Config) *CLI {
	if cfg == nil {
		return NewCLI()
	}
	return NewCLI(
		WithFFmpegBinary(cfg.Encoder.FFmpegBinary),
		WithFFprobeBinary(cfg.Encoder.FFprobeBinary),
		WithEncodeTimeout(cfg.Encoder.EncodeTimeout),
	)
}

// Encode runs ffmpeg until it exits, streaming progress snapshots from
// stdout and log lines from stderr into the sink. Cancelling the context
// interrupts the encoder gracefully so partial output stays playable.
func (c *CLI) Encode(ctx context.Context, req EncodeRequest, sink EncodeSink) error {
	if strings.TrimSpace(req.InputPath) == "" {
		return errors.New("input path required")
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return errors.New("output path required")
	}
	if dir := filepath.Dir(req.OutputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	encCtx := ctx
	if c.encodeTimeout > 0 {
		var cancel context.CancelFunc
		encCtx, cancel = context.WithTimeout(ctx, c.encodeTimeout)
		defer cancel()
	}

	cmd := commandContext(encCtx, c.ffmpegBinary, EncodeArgs(req)...) //nolint:gosec
	interruptOnCancel(cmd, c.stopGrace)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	var wg sync.WaitGroup
	tail := newLineTail(16)

	wg.Add(2)
	go func() {
		defer wg.Done()
		parser := &progressParser{}
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if snapshot, ok := parser.Feed(scanner.Text()); ok && sink.Progress != nil {
				sink.Progress(snapshot)
			}
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			tail.Add(line)
			if sink.Log != nil {
				sink.Log(line)
			}
		}
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if encCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			err = fmt.Errorf("killed after %s: %w", c.encodeTimeout, context.DeadlineExceeded)
		}
		if detail := tail.String(); detail != "" {
			return fmt.Errorf("ffmpeg encode: %w: %s", err, detail)
		}
		return fmt.Errorf("ffmpeg encode: %w", err)
	}
	return nil
}

// Concat remuxes the given segment files into a single output using the
// concat demuxer. Stream copy keeps it fast enough to run at finalize time
// even for long encodes.
func (c *CLI) Concat(ctx context.Context, segments []string, outputPath string) error {
	if len(segments) == 0 {
		return errors.New("no segments to concatenate")
	}
	if strings.TrimSpace(outputPath) == "" {
		return errors.New("output path required")
	}
	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	listFile, err := os.CreateTemp("", "ffui-concat-*.txt")
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	listPath := listFile.Name()
	defer os.Remove(listPath)

	var list strings.Builder
	for _, segment := range segments {
		escaped := strings.ReplaceAll(segment, "'", `'\''`)
		fmt.Fprintf(&list, "file '%s'\n", escaped)
	}
	if _, err := listFile.WriteString(list.String()); err != nil {
		listFile.Close()
		return fmt.Errorf("write concat list: %w", err)
	}
	if err := listFile.Close(); err != nil {
		return fmt.Errorf("close concat list: %w", err)
	}

	cmd := commandContext(ctx, c.ffmpegBinary, buildConcatArgs(listPath, outputPath)...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg concat: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Screenshot grabs one frame for the preview pane.
func (c *CLI) Screenshot(ctx context.Context, req ScreenshotRequest) error {
	if strings.TrimSpace(req.InputPath) == "" {
		return errors.New("input path required")
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return errors.New("output path required")
	}
	if dir := filepath.Dir(req.OutputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create preview directory: %w", err)
		}
	}

	cmd := commandContext(ctx, c.ffmpegBinary, buildScreenshotArgs(req)...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg screenshot: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// interruptOnCancel runs the command in its own process group and converts a
// context cancellation into SIGINT for the whole group, letting ffmpeg flush
// container trailers before exiting. WaitDelay hard-kills anything that
// ignores the signal.
func interruptOnCancel(cmd *exec.Cmd, grace time.Duration) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return os.ErrProcessDone
		}
		if err := unix.Kill(-cmd.Process.Pid, unix.SIGINT); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
	if grace > 0 {
		cmd.WaitDelay = grace
	}
}

type lineTail struct {
	limit int
	lines []string
}

func newLineTail(limit int) *lineTail {
	return &lineTail{limit: limit}
}

func (t *lineTail) Add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.limit {
		t.lines = t.lines[len(t.lines)-t.limit:]
	}
}

func (t *lineTail) String() string {
	return strings.Join(t.lines, "; ")
}

var _ Client = (*CLI)(nil)
