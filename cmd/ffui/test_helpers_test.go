package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ffui/internal/config"
	"ffui/internal/daemon"
	"ffui/internal/engine"
	"ffui/internal/ipc"
	"ffui/internal/logging"
	"ffui/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	socketPath string
	configPath string
}

// setupCLITestEnv boots a real engine and daemon behind an IPC server on a
// unix socket. The daemon is constructed but never started, so submitted
// jobs stay queued instead of racing through a worker.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	home := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	eng, err := engine.New(cfg, store, logger, engine.Options{})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	d, err := daemon.New(cfg, store, logger, eng, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	configPath := filepath.Join(home, ".config", "ffui", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, socketPath: cfg.SocketPath(), configPath: configPath}
}

// runCLI executes the root command with the daemon flags prepended and
// returns captured stdout, stderr, and the command error.
func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	root := newRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)

	argv := []string{"--socket", socket}
	if configPath != "" {
		argv = append(argv, "--config", configPath)
	}
	root.SetArgs(append(argv, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	lines := []string{
		"[paths]",
		fmt.Sprintf("data_dir = %q", cfg.Paths.DataDir),
		fmt.Sprintf("log_dir = %q", cfg.Paths.LogDir),
		fmt.Sprintf("output_dir = %q", cfg.Paths.OutputDir),
		fmt.Sprintf("tmp_dir = %q", cfg.Paths.TmpDir),
		"",
		"[worker]",
		fmt.Sprintf("queue_poll_interval = %d", cfg.Worker.QueuePollInterval),
		fmt.Sprintf("progress_interval_ms = %d", cfg.Worker.ProgressIntervalMs),
		"",
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatalf("write config %s: %v", path, err)
	}
}

func writeMediaFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write media file %s: %v", name, err)
	}
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("output missing %q:\n%s", substr, output)
	}
}
