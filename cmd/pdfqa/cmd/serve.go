package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pdfqa/internal/config"
	"github.com/Aman-CERP/pdfqa/internal/daemon"
	"github.com/Aman-CERP/pdfqa/internal/documents"
	"github.com/Aman-CERP/pdfqa/internal/output"
	"github.com/Aman-CERP/pdfqa/internal/reconcile"
	"github.com/Aman-CERP/pdfqa/internal/ui"
	"github.com/Aman-CERP/pdfqa/internal/watcher"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Manage the background daemon",
		Long: `The daemon serves document operations to the CLI over a Unix socket.
While running it:

  - sweeps processing documents and settles them as ready or failed
  - watches the inbox folder and uploads new PDFs (when inbox.enabled)
  - cleans up orphaned records and backfills page counts when idle

Commands:
  start   Start the daemon (runs in background by default)
  stop    Stop the running daemon
  status  Show daemon status`,
		Example: `  pdfqa serve start       # Start daemon in background
  pdfqa serve start -f    # Run in foreground (for debugging)
  pdfqa serve status      # Check if daemon is running
  pdfqa serve stop        # Stop the daemon`,
	}

	cmd.AddCommand(newServeStartCmd())
	cmd.AddCommand(newServeStopCmd())
	cmd.AddCommand(newServeStatusCmd())

	return cmd
}

func newServeStartCmd() *cobra.Command {
	var foreground bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the background daemon",
		Long: `Start the daemon in the background.

Use --foreground for debugging or to see logs in real-time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if foreground {
				return runServeForeground(cmd.Context(), cmd, cfg)
			}
			return runServeBackground(cmd, cfg)
		},
	}

	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (don't daemonize)")
	return cmd
}

func newServeStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Long:  `Stop the running daemon. Sends SIGTERM for a graceful shutdown.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServeStop(cmd, cfg)
		},
	}
}

func newServeStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Long: `Show whether the daemon is running, its process ID and uptime,
document counts by status, the index circuit breaker, the last sweep,
and inbox activity.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServeStatus(cmd.Context(), cmd, cfg, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// buildDaemon wires the daemon over an in-process stack. The returned
// cleanup closes the store.
func buildDaemon(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, func(), error) {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	deps := daemon.Deps{
		Service: a.service,
		Sweeper: a.sweeper,
		OwnerID: cfg.Owner.ID,
		Breaker: a.breaker,
		Logger:  logger,
	}
	if cfg.Inbox.Enabled {
		deps.Inbox = newInbox(cfg, a.service, logger)
	}

	d, err := daemon.NewDaemon(daemon.FromConfig(cfg), deps)
	if err != nil {
		_ = a.Close()
		return nil, nil, err
	}

	return d, func() {
		if err := a.Close(); err != nil {
			logger.Warn("failed to close store", slog.String("error", err.Error()))
		}
	}, nil
}

func newInbox(cfg *config.Config, svc *documents.Service, logger *slog.Logger) *watcher.Inbox {
	upload := func(ctx context.Context, path string) error {
		_, err := svc.Upload(ctx, cfg.Owner.ID, documents.UploadRequest{Path: path})
		return err
	}
	return watcher.NewInbox(cfg.InboxPath(), upload, watcher.Options{Debounce: cfg.Inbox.Debounce}, logger)
}

func runServeForeground(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	out := output.NewWithConfig(ui.NewConfig(cmd.OutOrStdout(), ui.WithNoColor(noColor)))

	client := daemon.NewClient(daemon.FromConfig(cfg))
	if client.IsRunning() {
		out.Status("", "Daemon is already running")
		return nil
	}

	if err := ensurePreflight(ctx, cfg); err != nil {
		return err
	}

	logger, cleanup, err := setupLogging(cfg, true)
	if err != nil {
		return err
	}
	defer cleanup()

	d, closeStore, err := buildDaemon(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create daemon", slog.String("error", err.Error()))
		return err
	}
	defer closeStore()

	out.Status("", "Starting daemon in foreground...")
	out.Statusf("", "Socket: %s", cfg.SocketPath())
	if cfg.Inbox.Enabled {
		out.Statusf("", "Inbox:  %s", cfg.InboxPath())
	}
	out.Status("", "Press Ctrl+C to stop")
	out.Newline()

	return d.Start(ctx)
}

func runServeBackground(cmd *cobra.Command, cfg *config.Config) error {
	out := output.NewWithConfig(ui.NewConfig(cmd.OutOrStdout(), ui.WithNoColor(noColor)))

	client := daemon.NewClient(daemon.FromConfig(cfg))
	if client.IsRunning() {
		out.Status("", "Daemon is already running")
		return nil
	}

	out.Status("", "Starting daemon in background...")

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	bgCmd := exec.Command(execPath, "serve", "start", "--foreground")
	bgCmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := bgCmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Reap the child and notice early exits.
	done := make(chan error, 1)
	go func() { done <- bgCmd.Wait() }()

	for i := 0; i < 50; i++ {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("daemon process exited unexpectedly: %w", err)
			}
			return fmt.Errorf("daemon process exited unexpectedly with code 0")
		default:
		}

		time.Sleep(100 * time.Millisecond)
		if client.IsRunning() {
			out.Successf("Daemon started (pid: %d)", bgCmd.Process.Pid)
			return nil
		}
	}

	return fmt.Errorf("daemon failed to start within timeout; see 'pdfqa logs'")
}

func runServeStop(cmd *cobra.Command, cfg *config.Config) error {
	out := output.NewWithConfig(ui.NewConfig(cmd.OutOrStdout(), ui.WithNoColor(noColor)))
	pidFile := daemon.NewPIDFile(cfg.PIDPath())

	if !pidFile.IsRunning() {
		out.Status("", "Daemon is not running")
		return nil
	}

	pid, err := pidFile.Read()
	if err != nil {
		return fmt.Errorf("failed to read PID: %w", err)
	}

	if err := pidFile.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !pidFile.IsRunning() {
			out.Successf("Daemon stopped (was pid: %d)", pid)
			return nil
		}
	}

	out.Status("", "Daemon not responding, sending SIGKILL...")
	if err := pidFile.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill daemon: %w", err)
	}

	out.Success("Daemon killed")
	return nil
}

func runServeStatus(ctx context.Context, cmd *cobra.Command, cfg *config.Config, jsonOutput bool) error {
	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor || !ui.NewConfig(cmd.OutOrStdout()).UseColor())

	client := daemon.NewClient(daemon.FromConfig(cfg))
	info := ui.StatusInfo{}
	if client.IsRunning() {
		status, err := client.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}
		info = statusInfo(status)
	}

	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	if err := renderer.Render(info); err != nil {
		return err
	}
	if !info.Running {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Run 'pdfqa serve start' to start it")
	}
	return nil
}

// statusInfo maps the daemon's status onto the renderer's view.
func statusInfo(s *daemon.StatusResult) ui.StatusInfo {
	info := ui.StatusInfo{
		Running:   s.Running,
		PID:       s.PID,
		Uptime:    s.Uptime,
		OwnerID:   s.OwnerID,
		Documents: s.Documents,
		Breaker:   s.Breaker,
	}

	if s.LastSweep != nil {
		info.LastSweepAt = parseTime(s.LastSweep.At)
		info.LastSweep = sweepSummary(s.LastSweep.SweepResult)
	}

	if s.Inbox != nil {
		info.InboxDir = s.Inbox.Dir
		info.InboxMode = s.Inbox.Mode
		info.InboxUploaded = int(s.Inbox.Uploaded)
		info.InboxFailed = int(s.Inbox.Failed)
	}

	if m := s.LastMaint; m != nil {
		info.LastMaintAt = parseTime(m.At)
		switch {
		case m.Error != "":
			info.LastMaint = "error: " + m.Error
		case m.Interrupted:
			info.LastMaint = "interrupted"
		default:
			info.LastMaint = fmt.Sprintf("%d orphans removed, %d backfilled", m.OrphansRemoved, m.Backfilled)
		}
	}

	if q := s.Queries; q != nil {
		info.Questions = q.Summary()
		for _, tc := range q.TopTerms {
			info.TopTerms = append(info.TopTerms, tc.Term)
		}
	}

	return info
}

func sweepSummary(r reconcile.SweepResult) string {
	if r.Skipped {
		return "skipped (another sweep held the lock)"
	}
	return fmt.Sprintf("%d examined, %d ready, %d failed, %d errors", r.Examined, r.Ready, r.Failed, r.Errors)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
