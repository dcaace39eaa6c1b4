package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pdfqa/internal/daemon"
	"github.com/Aman-CERP/pdfqa/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server",
		Long: `Start a Model Context Protocol server exposing document tools to AI
assistants: list_documents, document_status, toggle_document,
upload_document, ask and list_models.

stdout is reserved for the protocol; logs go to ~/.pdfqa/logs/server.log.
When no daemon is running the server also runs the status sweep.`,
		Example: `  # Register with an MCP client
  pdfqa mcp --transport stdio`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMCP(cmd.Context(), transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type (stdio)")
	return cmd
}

func runMCP(ctx context.Context, transport string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Nothing but protocol messages may reach stdout.
	logger, cleanup, err := setupLogging(cfg, false)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", slog.String("error", err.Error()))
		return err
	}
	defer func() { _ = a.Close() }()

	if !daemon.NewClient(daemon.FromConfig(cfg)).IsRunning() {
		a.sweeper.Start(ctx)
		defer a.sweeper.Stop()
	}

	srv, err := mcp.NewServer(a.service, cfg.Owner.ID, a.poller(), logger)
	if err != nil {
		return err
	}

	err = srv.Serve(ctx, transport)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
