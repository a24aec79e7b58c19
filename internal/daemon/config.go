// Package daemon hosts the lifecycle hooks as a background service.
// Content hosts reach the hooks over a Unix socket with JSON-RPC 2.0; an
// optional content-directory watcher drives the same hooks from file changes.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds configuration for the daemon service.
type Config struct {
	// SocketPath is the Unix domain socket path for IPC.
	// Default: ~/.meilihook/daemon.sock
	SocketPath string

	// PIDPath is the file path for storing the daemon's process ID.
	// Default: ~/.meilihook/daemon.pid
	PIDPath string

	// LockPath guards against a second daemon on the same socket.
	// Default: ~/.meilihook/daemon.lock
	LockPath string

	// Timeout bounds a single client request and connection.
	// Default: 30s
	Timeout time.Duration

	// FlushInterval is how often outcome counters are written to the
	// telemetry store.
	// Default: 1m
	FlushInterval time.Duration
}

// DefaultConfig returns a Config rooted at ~/.meilihook.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	dir := filepath.Join(home, ".meilihook")

	return Config{
		SocketPath:    filepath.Join(dir, "daemon.sock"),
		PIDPath:       filepath.Join(dir, "daemon.pid"),
		LockPath:      filepath.Join(dir, "daemon.lock"),
		Timeout:       30 * time.Second,
		FlushInterval: time.Minute,
	}
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.LockPath == "" {
		return fmt.Errorf("lock path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush interval must be positive")
	}
	return nil
}

// EnsureDir creates the directories for the socket, PID and lock files.
func (c Config) EnsureDir() error {
	seen := make(map[string]bool, 3)
	for _, p := range []string{c.SocketPath, c.PIDPath, c.LockPath} {
		dir := filepath.Dir(p)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
