// Package daemonrun boots the ffuid process: logging, pid file, queue store,
// engine, scanner, and the IPC server, then blocks until a signal or an IPC
// stop request arrives.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"log/slog"

	"ffui/internal/config"
	"ffui/internal/daemon"
	"ffui/internal/engine"
	"ffui/internal/ipc"
	"ffui/internal/logging"
	"ffui/internal/queue"
	"ffui/internal/scanner"
	"ffui/internal/version"
)

// Options adjusts how the daemon process boots.
type Options struct {
	LogLevel string
}

// Run starts the ffuid runtime loop and blocks until shutdown.
func Run(parent context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("configuration required")
	}

	signalCtx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}

	logStartupSnapshot(logger, cfg)
	logging.PruneOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Exclude: []string{cfg.DaemonLogPath()}},
		logging.RetentionTarget{Dir: filepath.Join(cfg.Paths.LogDir, "drapto"), Pattern: "*.log"},
	)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Args(logging.Error(err))...)
		return err
	}
	defer store.Close()

	eng, err := engine.New(cfg, store, logger, engine.Options{})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	var scn *scanner.Scanner
	if cfg.Scan.Enabled && len(cfg.Scan.Dirs) > 0 {
		scn = scanner.New(cfg, eng, logger)
	}

	d, err := daemon.New(cfg, store, logger, eng, scn)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	select {
	case <-signalCtx.Done():
		logger.Info("ffuid shutting down on signal")
	case <-d.ShutdownRequested():
		logger.Info("ffuid shutting down on stop request")
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644)
}

func logStartupSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	ffmpeg := cfg.Encoder.FFmpegBinary
	ffprobe := cfg.Encoder.FFprobeBinary
	drapto := cfg.Encoder.DraptoBinary
	logger.Info("ffuid starting", logging.Args(
		logging.String("version", version.Version),
		logging.Int("pid", os.Getpid()),
		logging.String("socket", cfg.SocketPath()),
		logging.String("backend", cfg.Encoder.Backend),
		logging.Bool("ffmpeg_available", binaryAvailable(ffmpeg)),
		logging.String("ffmpeg_binary", ffmpeg),
		logging.Bool("ffprobe_available", binaryAvailable(ffprobe)),
		logging.String("ffprobe_binary", ffprobe),
		logging.Bool("drapto_available", binaryAvailable(drapto)),
		logging.Bool("scan_enabled", cfg.Scan.Enabled),
		logging.Int("scan_dirs", len(cfg.Scan.Dirs)),
		logging.String(logging.FieldEventType, "daemon_boot"))...)
}

func binaryAvailable(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
