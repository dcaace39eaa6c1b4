package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pdfqa/internal/config"
	"github.com/Aman-CERP/pdfqa/internal/output"
	"github.com/Aman-CERP/pdfqa/internal/ui"
)

func newUploadCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "upload <file.pdf>...",
		Short: "Upload PDF documents",
		Long: `Upload one or more PDF files. Each file is checked for a .pdf
extension, the %PDF- header and the size limit (upload.max_size_mb),
then sent to the indexing backend. New documents start as processing
and are active.`,
		Example: `  pdfqa upload report.pdf
  pdfqa upload *.pdf
  pdfqa upload scan-0042.pdf --name "Q3 Board Minutes.pdf"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name != "" && len(args) > 1 {
				return fmt.Errorf("--name can only be used with a single file")
			}
			return withBackend(cmd.Context(), func(_ *config.Config, b backend) error {
				return runUpload(cmd.Context(), cmd, b, args, name)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name for the document (single file only)")
	return cmd
}

func runUpload(ctx context.Context, cmd *cobra.Command, b backend, paths []string, name string) error {
	out := output.NewWithConfig(ui.NewConfig(cmd.OutOrStdout(), ui.WithNoColor(noColor)))

	var failed int
	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", p, err)
		}

		if len(paths) > 1 {
			out.Progress(i, len(paths), filepath.Base(p))
		}

		rec, err := b.UploadDocument(ctx, abs, name)
		if err != nil {
			failed++
			if len(paths) > 1 {
				out.Newline()
			}
			out.Errorf("%s: %v", filepath.Base(p), err)
			continue
		}
		if len(paths) > 1 {
			out.Newline()
		}
		out.Successf("Uploaded %s (id: %s, status: %s)", rec.Filename, rec.ID, rec.Status)
	}

	if len(paths) > 1 {
		out.Progress(len(paths), len(paths), "done")
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(paths))
	}
	return nil
}
