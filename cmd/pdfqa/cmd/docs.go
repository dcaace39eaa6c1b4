package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pdfqa/internal/config"
	"github.com/Aman-CERP/pdfqa/internal/output"
	"github.com/Aman-CERP/pdfqa/internal/ui"
)

func newDocsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "docs",
		Aliases: []string{"documents"},
		Short:   "List and manage uploaded documents",
		Long: `List and manage uploaded documents.

Commands:
  list    List documents with status and scope
  status  Refresh and print one document's status
  toggle  Include or exclude a document from questions
  delete  Delete a document and its backend file`,
	}

	cmd.AddCommand(newDocsListCmd())
	cmd.AddCommand(newDocsStatusCmd())
	cmd.AddCommand(newDocsToggleCmd())
	cmd.AddCommand(newDocsDeleteCmd())

	return cmd
}

func newDocsListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd.Context(), func(_ *config.Config, b backend) error {
				docs, err := b.ListDocuments(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), docs)
				}
				cfg := ui.NewConfig(cmd.OutOrStdout(), ui.WithNoColor(noColor))
				ui.NewDocumentTable(cmd.OutOrStdout(), cfg.Styles()).Render(docs)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newDocsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <document-id>",
		Short: "Refresh and print a document's status",
		Long: `Probe the indexing backend once for the document and print its
status: processing, ready or failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), func(_ *config.Config, b backend) error {
				status, err := b.DocumentStatus(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				styles := ui.NewConfig(cmd.OutOrStdout(), ui.WithNoColor(noColor)).Styles()
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", args[0], styles.Status(string(status)))
				return err
			})
		},
	}
}

func newDocsToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <document-id>",
		Short: "Include or exclude a document from questions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), func(_ *config.Config, b backend) error {
				active, err := b.ToggleDocument(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := output.NewWithConfig(ui.NewConfig(cmd.OutOrStdout(), ui.WithNoColor(noColor)))
				if active {
					out.Successf("%s is now active", args[0])
				} else {
					out.Successf("%s is now inactive", args[0])
				}
				return nil
			})
		},
	}
}

func newDocsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <document-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a document",
		Long: `Delete a document record. The backend file and its collection entry
are removed on a best-effort basis.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), func(_ *config.Config, b backend) error {
				if err := b.DeleteDocument(cmd.Context(), args[0]); err != nil {
					return err
				}
				out := output.NewWithConfig(ui.NewConfig(cmd.OutOrStdout(), ui.WithNoColor(noColor)))
				out.Successf("Deleted %s", args[0])
				return nil
			})
		},
	}
}
