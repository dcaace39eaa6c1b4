package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pdfqa/internal/config"
	"github.com/Aman-CERP/pdfqa/internal/output"
	"github.com/Aman-CERP/pdfqa/internal/ui"
)

func newSweepCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Settle processing documents now",
		Long: `Run one reconciliation sweep: every processing document is probed
once and moved to ready or failed when the backend has settled it.
Documents stuck longer than reconcile.force_ready_after become ready.

The daemon runs this every reconcile.sweep_interval.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd.Context(), func(_ *config.Config, b backend) error {
				res, err := b.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				out := output.NewWithConfig(ui.NewConfig(cmd.OutOrStdout(), ui.WithNoColor(noColor)))
				if res.Skipped {
					out.Warning("Sweep skipped: another sweep is running")
					return nil
				}
				out.Successf("Sweep: %s", sweepSummary(res))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove records whose backend file is gone",
		Long: `Delete document records whose file is no longer part of the owner's
backend collection.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				n, err := a.service.CleanupOrphans(cmd.Context(), a.cfg.Owner.ID)
				if err != nil {
					return err
				}
				out := output.NewWithConfig(ui.NewConfig(cmd.OutOrStdout(), ui.WithNoColor(noColor)))
				out.Successf("Removed %d orphaned record(s)", n)
				return nil
			})
		},
	}
}

func newBackfillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Fill in missing page counts",
		Long: `Download the content of documents without a page count and count
their pages.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				n, err := a.service.BackfillMetadata(cmd.Context(), a.cfg.Owner.ID)
				if err != nil {
					return err
				}
				out := output.NewWithConfig(ui.NewConfig(cmd.OutOrStdout(), ui.WithNoColor(noColor)))
				out.Successf("Updated %d document(s)", n)
				return nil
			})
		},
	}
}
