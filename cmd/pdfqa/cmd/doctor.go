package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pdfqa/internal/config"
	"github.com/Aman-CERP/pdfqa/internal/daemon"
	"github.com/Aman-CERP/pdfqa/internal/preflight"
	"github.com/Aman-CERP/pdfqa/internal/store"
	"github.com/Aman-CERP/pdfqa/pkg/version"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check system requirements and diagnose issues",
		Long: `Run diagnostics to ensure pdfqa can operate correctly.

Checks:
  - Data directory is writable
  - Disk space (100 MB minimum, more for large upload limits)
  - File descriptor limits (256 minimum)
  - Daemon socket path length
  - Backend API key and assistant
  - Document store opens
  - Daemon is running (warning only)

A passing run is remembered so 'pdfqa serve start' skips the checks
until pdfqa is upgraded.`,
		Example: `  pdfqa doctor
  pdfqa doctor --verbose
  pdfqa doctor --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runDoctor(cmd, cfg, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show details for every check")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// doctorReport is the JSON form of a doctor run.
type doctorReport struct {
	Status   string                  `json:"status"`
	Checks   []preflight.CheckResult `json:"checks"`
	Warnings []string                `json:"warnings,omitempty"`
	Errors   []string                `json:"errors,omitempty"`
}

func runDoctor(cmd *cobra.Command, cfg *config.Config, verbose, jsonOutput bool) error {
	previous := preflight.LastPassed(cfg.DataDir)

	checker := newChecker(cfg, preflight.WithVerbose(verbose), preflight.WithOutput(cmd.OutOrStdout()))
	results := checker.RunAll(cmd.Context(), cfg)
	failed := checker.HasCriticalFailures(results)

	if failed {
		_ = preflight.ClearMarker(cfg.DataDir)
	} else {
		_ = preflight.MarkPassed(cfg.DataDir, version.Version)
	}

	if jsonOutput {
		report := doctorReport{Status: checker.SummaryStatus(results), Checks: results}
		report.Errors, report.Warnings = checker.Problems(results)
		if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
		if !previous.IsZero() {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nPrevious successful check: %s\n", previous.Local().Format(time.DateTime))
		}
	}

	if failed {
		return fmt.Errorf("system check failed")
	}
	return nil
}

// newChecker builds a checker with the store and daemon probes.
func newChecker(cfg *config.Config, opts ...preflight.Option) *preflight.Checker {
	storeProbe := preflight.Probe{
		Name:     "store",
		Required: true,
		Hint:     "Check store.driver, store.path and store.mongo_uri",
		Run: func(ctx context.Context) (string, error) {
			ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			st, err := store.Open(ctx, storeOptions(cfg))
			if err != nil {
				return "", err
			}
			_ = st.Close()
			return cfg.Store.Driver, nil
		},
	}
	daemonProbe := preflight.Probe{
		Name: "daemon",
		Hint: "Run 'pdfqa serve start'",
		Run: func(context.Context) (string, error) {
			if !daemon.NewClient(daemon.FromConfig(cfg)).IsRunning() {
				return "", fmt.Errorf("not running")
			}
			return "running", nil
		},
	}

	return preflight.New(append(opts, preflight.WithProbe(storeProbe), preflight.WithProbe(daemonProbe))...)
}

// ensurePreflight runs the checks quietly when they have not passed for
// this version yet.
func ensurePreflight(ctx context.Context, cfg *config.Config) error {
	if !preflight.NeedsCheck(cfg.DataDir, version.Version) {
		return nil
	}

	checker := newChecker(cfg)
	results := checker.RunAll(ctx, cfg)
	if checker.HasCriticalFailures(results) {
		errs, _ := checker.Problems(results)
		return fmt.Errorf("system check failed (%s); run 'pdfqa doctor' for details", errs[0])
	}
	return preflight.MarkPassed(cfg.DataDir, version.Version)
}
