package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"ffui/internal/config"
	"ffui/internal/engine"
	"ffui/internal/logging"
	"ffui/internal/queue"
	"ffui/internal/scanner"
	"ffui/internal/version"
)

// Daemon owns the background services and the single-instance lock.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *queue.Store
	engine  *engine.Engine
	scanner *scanner.Scanner

	lockPath string
	lock     *flock.Flock

	running     atomic.Bool
	startedAtMs atomic.Int64
	cancel      context.CancelFunc

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// Status reports daemon runtime information for the status RPC.
type Status struct {
	Running     bool
	PID         int
	Version     string
	StartedAtMs int64
	Engine      engine.StatusSummary
	QueueDBPath string
	SocketPath  string
	LockPath    string
	LogPath     string
}

// New wires the daemon from its already-constructed parts. The scanner may
// be nil when directory scanning is disabled.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, eng *engine.Engine, scn *scanner.Scanner) (*Daemon, error) {
	if cfg == nil || store == nil || eng == nil {
		return nil, errors.New("daemon requires config, store, and engine")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      store,
		engine:     eng,
		scanner:    scn,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
		shutdownCh: make(chan struct{}),
	}, nil
}

// Start acquires the instance lock and launches the engine and scanner.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another ffuid instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.engine.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start engine: %w", err)
	}
	if d.scanner != nil {
		d.scanner.Start(runCtx)
	}

	d.cancel = cancel
	d.startedAtMs.Store(time.Now().UnixMilli())
	d.running.Store(true)
	d.logger.Info("daemon started", logging.Args(
		logging.String("lock", d.lockPath),
		logging.String("socket", d.cfg.SocketPath()),
	)...)
	return nil
}

// Stop halts the scanner and engine and releases the instance lock. Paused
// and in-flight work is requeued by the engine before Stop returns.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.scanner != nil {
		d.scanner.Stop()
	}
	d.engine.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Args(logging.Error(err))...)
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and releases the queue store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports the current daemon state.
func (d *Daemon) Status() Status {
	return Status{
		Running:     d.running.Load(),
		PID:         os.Getpid(),
		Version:     version.Version,
		StartedAtMs: d.startedAtMs.Load(),
		Engine:      d.engine.Status(),
		QueueDBPath: d.cfg.QueueDatabasePath(),
		SocketPath:  d.cfg.SocketPath(),
		LockPath:    d.lockPath,
		LogPath:     d.cfg.DaemonLogPath(),
	}
}

// Engine exposes the queue engine for the IPC service.
func (d *Daemon) Engine() *engine.Engine {
	return d.engine
}

// LogPath returns the daemon's structured log file.
func (d *Daemon) LogPath() string {
	return d.cfg.DaemonLogPath()
}

// RequestShutdown asks the daemon process to exit. The run loop watches
// ShutdownRequested and tears down when it fires.
func (d *Daemon) RequestShutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdownCh) })
}

// ShutdownRequested reports process-shutdown requests from the control RPC.
func (d *Daemon) ShutdownRequested() <-chan struct{} {
	return d.shutdownCh
}
