package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitCommand(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	socket := filepath.Join(home, "unused.sock")

	stdout, _, err := runCLI(t, []string{"config", "init"}, socket, "")
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	requireContains(t, stdout, "Wrote sample configuration to")

	target := filepath.Join(home, ".config", "ffui", "config.toml")
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("expected sample config at %s: %v", target, err)
	}
	requireContains(t, string(data), "[paths]")

	if _, _, err := runCLI(t, []string{"config", "init"}, socket, ""); err == nil {
		t.Fatal("expected error when the config already exists")
	} else if !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--overwrite"}, socket, ""); err != nil {
		t.Fatalf("config init --overwrite failed: %v", err)
	}
}

func TestConfigInitCommandCustomPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	custom := filepath.Join(home, "nested", "custom.toml")

	stdout, _, err := runCLI(t, []string{"config", "init", "--path", custom}, filepath.Join(home, "unused.sock"), "")
	if err != nil {
		t.Fatalf("config init --path failed: %v", err)
	}
	requireContains(t, stdout, custom)
	if _, err := os.Stat(custom); err != nil {
		t.Fatalf("expected config at custom path: %v", err)
	}
}

func TestConfigValidateCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"config", "validate"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config validate failed: %v", err)
	}
	requireContains(t, stdout, "Config path:")
	requireContains(t, stdout, "Configuration valid")
	if strings.Contains(stdout, "did not exist") {
		t.Fatalf("existing config reported missing:\n%s", stdout)
	}
}

func TestConfigValidateCommandDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	stdout, _, err := runCLI(t, []string{"config", "validate"}, filepath.Join(home, "unused.sock"), "")
	if err != nil {
		t.Fatalf("config validate with defaults failed: %v", err)
	}
	requireContains(t, stdout, "Config file did not exist; defaults were used")
	requireContains(t, stdout, "Configuration valid")
}

func TestConfigShowCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"config", "show"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	requireContains(t, stdout, "[paths]")
	requireContains(t, stdout, "[worker]")
	requireContains(t, stdout, "data_dir")
}

func TestConfigPathCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, stderr, err := runCLI(t, []string{"config", "path"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config path failed: %v", err)
	}
	if got := strings.TrimSpace(stdout); got != env.configPath {
		t.Fatalf("config path = %q, want %q", got, env.configPath)
	}
	if strings.Contains(stderr, "does not exist") {
		t.Fatalf("existing config reported missing: %q", stderr)
	}
}

func TestConfigPathCommandMissingFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	stdout, stderr, err := runCLI(t, []string{"config", "path"}, filepath.Join(home, "unused.sock"), "")
	if err != nil {
		t.Fatalf("config path failed: %v", err)
	}
	if strings.TrimSpace(stdout) == "" {
		t.Fatal("expected the resolved path on stdout")
	}
	requireContains(t, stderr, "does not exist")
}
