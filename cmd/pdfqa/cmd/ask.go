package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pdfqa/internal/config"
	qaerrors "github.com/Aman-CERP/pdfqa/internal/errors"
	"github.com/Aman-CERP/pdfqa/internal/query"
	"github.com/Aman-CERP/pdfqa/internal/ui"
)

type askOptions struct {
	model      string
	jsonOutput bool
	plain      bool
}

func newAskCmd() *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about your documents",
		Long: `Ask a question about your active documents. The answer cites its
sources inline as [Citation from: <file>].

When some documents are inactive the question is scoped to the active
ones. The command waits for the answer with a bounded number of polls
(query.poll_max_attempts).`,
		Example: `  pdfqa ask "What was the Q3 revenue?"
  pdfqa ask --model o3-mini "Summarize the risks section"
  pdfqa ask --json "Who signed the contract?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return qaerrors.New(qaerrors.ErrCodeQueryEmpty, "question is empty", nil)
			}
			return withBackend(cmd.Context(), func(cfg *config.Config, b backend) error {
				return runAsk(cmd.Context(), cmd, cfg, b, question, opts)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Model to answer with (see 'pdfqa models')")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the outcome as JSON")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Disable the interactive spinner")

	return cmd
}

func runAsk(ctx context.Context, cmd *cobra.Command, cfg *config.Config, b backend, question string, opts askOptions) error {
	h, err := b.SubmitQuery(ctx, question, opts.model)
	if err != nil {
		return err
	}

	uiCfg := ui.NewConfig(cmd.OutOrStdout(),
		ui.WithNoColor(noColor),
		ui.WithForcePlain(opts.plain || opts.jsonOutput))

	var waiter ui.Waiter
	if opts.jsonOutput {
		waiter = nopWaiter{}
	} else {
		waiter = ui.NewWaiter(uiCfg, "Thinking")
	}

	waitCtx := waiter.Start(ctx)
	poller := query.NewPoller(pollConfig(cfg), nil)
	outcome, err := poller.Wait(waitCtx, h, b.QueryResult, waiter.Update)
	waiter.Stop()
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
		return err
	}

	if opts.jsonOutput {
		return writeJSON(cmd.OutOrStdout(), outcome)
	}

	ui.RenderAnswer(cmd.OutOrStdout(), outcome, uiCfg.Styles())
	return nil
}

type nopWaiter struct{}

func (nopWaiter) Start(ctx context.Context) context.Context { return ctx }
func (nopWaiter) Update(int, query.Result)                  {}
func (nopWaiter) Stop()                                     {}
