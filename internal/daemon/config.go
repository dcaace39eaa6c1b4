// Package daemon runs pdfqa as a background service. The daemon owns the
// sweep loop and the inbox watcher, and serves document operations to the
// CLI over a Unix socket.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/pdfqa/internal/config"
)

// Config holds configuration for the daemon service.
type Config struct {
	// SocketPath is the Unix domain socket path for IPC.
	// Default: ~/.pdfqa/daemon.sock
	SocketPath string

	// PIDPath is the file path for storing the daemon's process ID.
	// Default: ~/.pdfqa/daemon.pid
	PIDPath string

	// Timeout is the maximum duration for client-daemon communication.
	// Default: 30s
	Timeout time.Duration

	// ShutdownGracePeriod is the time to wait for graceful shutdown.
	// Default: 10s
	ShutdownGracePeriod time.Duration

	// MaintenanceIdle is the quiet period after which orphan cleanup and
	// metadata backfill run. Zero disables maintenance.
	MaintenanceIdle time.Duration

	// MaintenanceCooldown is the minimum time between maintenance runs.
	// Default: 1h
	MaintenanceCooldown time.Duration
}

// DefaultConfig returns a Config with defaults under ~/.pdfqa.
func DefaultConfig() Config {
	dir := config.DefaultDataDir()
	return Config{
		SocketPath:          filepath.Join(dir, "daemon.sock"),
		PIDPath:             filepath.Join(dir, "daemon.pid"),
		Timeout:             30 * time.Second,
		ShutdownGracePeriod: 10 * time.Second,
		MaintenanceIdle:     2 * time.Minute,
		MaintenanceCooldown: time.Hour,
	}
}

// FromConfig derives the daemon configuration from the loaded config.
func FromConfig(cfg *config.Config) Config {
	d := DefaultConfig()
	d.SocketPath = cfg.SocketPath()
	d.PIDPath = cfg.PIDPath()
	if cfg.Daemon.Timeout > 0 {
		d.Timeout = cfg.Daemon.Timeout
	}
	d.MaintenanceIdle = cfg.Daemon.MaintenanceIdle
	if cfg.Daemon.MaintenanceCooldown > 0 {
		d.MaintenanceCooldown = cfg.Daemon.MaintenanceCooldown
	}
	return d
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("shutdown grace period must be positive")
	}
	if c.MaintenanceIdle < 0 {
		return fmt.Errorf("maintenance idle must not be negative")
	}
	return nil
}

// EnsureDir creates the directories for the socket and PID files.
func (c Config) EnsureDir() error {
	socketDir := filepath.Dir(c.SocketPath)
	if err := os.MkdirAll(socketDir, 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	pidDir := filepath.Dir(c.PIDPath)
	if pidDir != socketDir {
		if err := os.MkdirAll(pidDir, 0o755); err != nil {
			return fmt.Errorf("failed to create PID directory: %w", err)
		}
	}
	return nil
}
