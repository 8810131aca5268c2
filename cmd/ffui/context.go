package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"ffui/internal/config"
	"ffui/internal/ipc"
)

// commandContext carries lazily resolved configuration and socket state
// shared by every subcommand. Config loads at most once per invocation.
type commandContext struct {
	socketFlag *string
	configFlag *string
	loadConfig func() (*config.Config, error)
}

func newCommandContext(socketFlag, configFlag *string) *commandContext {
	c := &commandContext{socketFlag: socketFlag, configFlag: configFlag}
	c.loadConfig = sync.OnceValues(c.load)
	return c
}

func (c *commandContext) load() (*config.Config, error) {
	var path string
	if c.configFlag != nil {
		path = strings.TrimSpace(*c.configFlag)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	return c.loadConfig()
}

// configValue returns the loaded config or nil when loading failed; callers
// that can work without one use this instead of ensureConfig.
func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.loadConfig()
	return cfg
}

// socketPath resolves the daemon socket, writing the default back through the
// flag pointer so every later read agrees on one path.
func (c *commandContext) socketPath() string {
	switch {
	case c.socketFlag == nil:
		return fallbackSocketPath()
	case strings.TrimSpace(*c.socketFlag) == "":
		*c.socketFlag = fallbackSocketPath()
	}
	return *c.socketFlag
}

func (c *commandContext) withDaemon(fn func(*ipc.Client) error) error {
	client, err := c.dial()
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

func (c *commandContext) dial() (*ipc.Client, error) {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return nil, describeDialError(err, socket)
	}
	return client, nil
}

// describeDialError turns the common connect failures into hints the
// operator can act on.
func describeDialError(err error, socket string) error {
	if errors.Is(err, syscall.ENOENT) || os.IsNotExist(err) {
		return fmt.Errorf("connect to daemon: socket %s not found; start the daemon with `ffui daemon start`", socket)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon: nothing is listening on %s; is the daemon running?", socket)
	}
	return fmt.Errorf("connect to daemon: %w", err)
}

// fallbackSocketPath resolves the socket location without a usable config so
// commands still reach the daemon when the config file is broken.
func fallbackSocketPath() string {
	if cfg, _, _, err := config.Load(""); err == nil {
		return cfg.SocketPath()
	}
	if logDir, err := config.ExpandPath("~/.local/share/ffui/logs"); err == nil {
		return filepath.Join(logDir, "ffuid.sock")
	}
	return filepath.Join(os.TempDir(), "ffuid.sock")
}

// shouldSkipConfig reports whether cmd or an ancestor opted out of config
// loading via the noAutoConfig annotation.
func shouldSkipConfig(cmd *cobra.Command) bool {
	for ; cmd != nil; cmd = cmd.Parent() {
		if cmd.Annotations["noAutoConfig"] == "true" {
			return true
		}
	}
	return false
}
