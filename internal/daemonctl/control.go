// Package daemonctl orchestrates the ffuid process from the CLI side:
// launching it detached, waiting for its socket, stopping it gracefully, and
// force-killing it when a graceful stop stalls.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"ffui/internal/config"
	"ffui/internal/ipc"
	"ffui/internal/queue"
)

// pollInterval spaces out liveness probes while waiting on the daemon.
const pollInterval = 200 * time.Millisecond

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
	StartStateRequested      StartState = "start_requested"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	Message  string
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	StopAcknowledged bool
	ForcedKill       bool
	PID              int
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// DaemonBinary resolves the ffuid executable, preferring one installed next
// to the current binary over PATH lookup.
func DaemonBinary() (string, error) {
	if self, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(self), "ffuid")
		if info, statErr := os.Stat(sibling); statErr == nil && !info.IsDir() {
			return sibling, nil
		}
	}
	path, err := exec.LookPath("ffuid")
	if err != nil {
		return "", fmt.Errorf("locate ffuid binary: %w", err)
	}
	return path, nil
}

// EnsureStarted connects to a running daemon or launches one, then waits for
// it to report running.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if client, err := ipc.Dial(socketPath); err == nil {
		if clientReportsRunning(client) {
			return StartResult{State: StartStateAlreadyRunning}, nil
		}
		// Socket is up but the engine is still booting; give it the wait
		// window before reporting.
		if awaitRunning(socketPath, waitTimeout) != nil {
			return StartResult{State: StartStateRequested, Message: "daemon is still starting"}, nil
		}
		return StartResult{State: StartStateAlreadyRunning}, nil
	}

	if err := launchDaemon(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	if err := awaitRunning(socketPath, waitTimeout); err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, Launched: true}, nil
}

// StopAndTerminate requests daemon shutdown and force-kills the process if
// still alive after gracePeriod.
func StopAndTerminate(socketPath string, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}

	var lockPath, logPath string
	pid := 0
	if status, statusErr := client.Status(); statusErr == nil && status != nil {
		lockPath = status.LockPath
		logPath = status.LogPath
		pid = status.PID
	}
	resp, err := client.Stop()
	_ = client.Close()
	if err != nil {
		return StopResult{}, err
	}
	result := StopResult{PID: pid}
	if resp != nil {
		result.StopAcknowledged = resp.Stopping
	}

	_ = awaitShutdown(socketPath, gracePeriod)
	alive, livePID := daemonAlive(socketPath)
	if !alive {
		return result, nil
	}
	if livePID != 0 {
		pid = livePID
	}

	dir := runtimeDir(lockPath, logPath, cfg)
	if dir == "" {
		return result, errors.New("unable to determine daemon runtime directory")
	}
	killedPID, killErr := forceKill(filepath.Join(dir, "ffuid.pid"), filepath.Join(dir, "ffuid.lock"), pid)
	if killErr != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", killErr)
	}
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	result.PID = killedPID
	return result, nil
}

// Restart stops the daemon if running, then ensures it is started.
func Restart(socketPath string, cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(socketPath, cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(socketPath, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}

	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

// BuildStatusSnapshot collects daemon status, filling queue stats and paths
// from the local store and config when the daemon is offline.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (*ipc.StatusResponse, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	statusResp := &ipc.StatusResponse{}

	client, err := ipc.Dial(socketPath)
	if err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			statusResp = resp
		}
	}

	if !statusResp.Running {
		fillOfflineStatus(ctx, statusResp, socketPath, cfg)
	}
	return statusResp, nil
}

// fillOfflineStatus supplies the fields a live daemon would have reported,
// reading queue stats straight from the store and paths from config.
func fillOfflineStatus(ctx context.Context, resp *ipc.StatusResponse, socketPath string, cfg *config.Config) {
	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if store, err := queue.Open(cfg); err == nil {
		stats, statsErr := store.Stats(queryCtx)
		_ = store.Close()
		if statsErr == nil {
			resp.QueueStats = make(map[string]int, len(stats))
			for status, count := range stats {
				resp.QueueStats[string(status)] = count
			}
		}
	}
	if resp.QueueDBPath == "" {
		resp.QueueDBPath = cfg.QueueDatabasePath()
	}
	if resp.SocketPath == "" {
		resp.SocketPath = socketPath
	}
	if resp.LockPath == "" {
		resp.LockPath = cfg.LockPath()
	}
	if resp.LogPath == "" {
		resp.LogPath = cfg.DaemonLogPath()
	}
}

// launchDaemon starts a detached ffuid process.
func launchDaemon(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return errors.New("resolve executable: executable path is empty")
	}

	var args []string
	if cfgPath := strings.TrimSpace(opts.ConfigPath); cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// awaitRunning polls the socket until the daemon answers Status with Running.
func awaitRunning(socketPath string, timeout time.Duration) error {
	err := pollUntil(timeout, func() (bool, error) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			return false, err
		}
		if clientReportsRunning(client) {
			return true, nil
		}
		return false, errors.New("daemon not yet running")
	})
	if err != nil {
		return fmt.Errorf("daemon failed to start: %w", err)
	}
	return nil
}

// awaitShutdown polls until the daemon socket stops accepting connections.
// The daemon removes its socket on exit, so reachability doubles as liveness.
func awaitShutdown(socketPath string, timeout time.Duration) error {
	err := pollUntil(timeout, func() (bool, error) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			if isDaemonUnavailable(err) {
				return true, nil
			}
			return false, err
		}
		_ = client.Close()
		return false, errors.New("daemon still running")
	})
	if err != nil {
		return fmt.Errorf("daemon did not stop: %w", err)
	}
	return nil
}

// pollUntil runs step every pollInterval until it reports done or timeout
// elapses. It returns nil on success, otherwise the last error step produced.
func pollUntil(timeout time.Duration, step func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		done, err := step()
		if done {
			return nil
		}
		if err != nil {
			lastErr = err
		}
		if time.Now().After(deadline) {
			break
		}
		time.Sleep(pollInterval)
	}
	if lastErr == nil {
		lastErr = errors.New("timed out")
	}
	return lastErr
}

// clientReportsRunning issues a Status call and closes the client.
func clientReportsRunning(client *ipc.Client) bool {
	status, err := client.Status()
	_ = client.Close()
	return err == nil && status != nil && status.Running
}

// daemonAlive reports whether anything still accepts connections on the
// socket, and the PID when status reports one. A failing Status call on a
// live socket still counts as alive: the process holds the listener.
func daemonAlive(socketPath string) (bool, int) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		return false, 0
	}
	defer client.Close()
	status, err := client.Status()
	if err != nil || status == nil {
		return true, 0
	}
	return true, status.PID
}

// runtimeDir determines the daemon runtime directory (sockets, lock, pid,
// logs) from status hints, falling back to config.
func runtimeDir(lockPath, logPath string, cfg *config.Config) string {
	if lockPath != "" {
		return filepath.Dir(lockPath)
	}
	if logPath != "" {
		return filepath.Dir(logPath)
	}
	if cfg != nil && strings.TrimSpace(cfg.Paths.LogDir) != "" {
		return cfg.Paths.LogDir
	}
	return ""
}

// forceKill sends SIGKILL to the daemon process and cleans pid/lock files.
// The pid file wins over fallbackPID when it holds a usable value.
func forceKill(pidPath, lockPath string, fallbackPID int) (int, error) {
	pid, err := readPIDFile(pidPath)
	if err != nil {
		return 0, err
	}
	if pid == 0 {
		pid = fallbackPID
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, nil
}

// readPIDFile parses the daemon pid file. A missing file or unusable
// contents yield 0 without an error.
func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read daemon pid file %q: %w", path, err)
	}
	pid, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
	if convErr != nil || pid <= 0 {
		return 0, nil
	}
	return pid, nil
}

// isDaemonUnavailable reports whether err means no daemon is listening: the
// socket file is gone or nothing accepts connections on it.
func isDaemonUnavailable(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED)
}
