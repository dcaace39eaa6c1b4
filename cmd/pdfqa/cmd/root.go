// Package cmd provides the CLI commands for pdfqa.
package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	qaerrors "github.com/Aman-CERP/pdfqa/internal/errors"
	"github.com/Aman-CERP/pdfqa/internal/logging"
	"github.com/Aman-CERP/pdfqa/pkg/version"
)

// Global flags
var (
	debugMode      bool
	noColor        bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the pdfqa CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdfqa",
		Short: "Ask questions about your PDF documents",
		Long: `pdfqa uploads PDF documents to a remote indexing backend and answers
questions about them with inline source citations.

Documents can be switched in and out of the query scope. Questions only
consider the active documents.

Run 'pdfqa serve start' to keep a background daemon that reconciles
document status and watches an inbox folder for new PDFs.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("pdfqa version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.pdfqa/logs/ and stderr")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newDocsCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newModelsCmd())
	cmd.AddCommand(newSweepCmd())
	cmd.AddCommand(newCleanupCmd())
	cmd.AddCommand(newBackfillCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging enables debug logging when --debug is set. Commands that
// own a long-running process configure logging from the config file.
func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}

	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("debug logging enabled",
		slog.String("log_file", logging.DefaultLogPath()),
		slog.String("version", version.Version))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command and prints any error for the user.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		printError(root.ErrOrStderr(), err)
	}
	return err
}

func printError(w io.Writer, err error) {
	if _, ok := qaerrors.As(err); ok {
		_, _ = fmt.Fprint(w, qaerrors.FormatForUser(err, debugMode))
		return
	}
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
}
