package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Aman-CERP/pdfqa/internal/config"
)

// CheckStatus is the result of a single check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name in JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name.
func (s *CheckStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "pass":
		*s = StatusPass
	case "warn":
		*s = StatusWarn
	case "fail":
		*s = StatusFail
	default:
		return fmt.Errorf("unknown check status %q", text)
	}
	return nil
}

// CheckResult holds the outcome of one check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical reports whether a required check failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Probe is an extra check supplied by the caller. A failing required probe
// fails the run; a failing optional probe only warns.
type Probe struct {
	Name     string
	Required bool
	Run      func(ctx context.Context) (string, error)
	// Hint is shown as details when Run fails.
	Hint string
}

// Checker runs preflight checks.
type Checker struct {
	verbose bool
	output  io.Writer
	probes  []Probe
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose prints check details.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets where PrintResults writes.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// WithProbe adds a caller-supplied check, run after the built-in ones.
func WithProbe(p Probe) Option {
	return func(c *Checker) {
		c.probes = append(c.probes, p)
	}
}

// New creates a Checker.
func New(opts ...Option) *Checker {
	c := &Checker{output: os.Stdout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check against cfg in a fixed order.
func (c *Checker) RunAll(ctx context.Context, cfg *config.Config) []CheckResult {
	results := []CheckResult{
		c.CheckDataDir(cfg.DataDir),
		c.CheckDiskSpace(cfg.DataDir, cfg.MaxUploadBytes()),
		c.CheckFileDescriptors(),
		c.CheckSocketPath(cfg.SocketPath()),
		c.CheckAPIKey(cfg.Index.APIKey),
		c.CheckAssistant(cfg.Index.AssistantID),
	}
	for _, p := range c.probes {
		results = append(results, c.runProbe(ctx, p))
	}
	return results
}

func (c *Checker) runProbe(ctx context.Context, p Probe) CheckResult {
	result := CheckResult{Name: p.Name, Required: p.Required}

	msg, err := p.Run(ctx)
	if err != nil {
		result.Status = StatusFail
		if !p.Required {
			result.Status = StatusWarn
		}
		result.Message = err.Error()
		result.Details = p.Hint
		return result
	}

	result.Status = StatusPass
	result.Message = msg
	if result.Message == "" {
		result.Message = "OK"
	}
	return result
}

// HasCriticalFailures reports whether any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns "ready", "ready_with_warnings" or "failed".
func (c *Checker) SummaryStatus(results []CheckResult) string {
	warnings := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status != StatusPass {
			warnings = true
		}
	}
	if warnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// Problems splits the results into critical errors and warnings, each
// rendered as "name: message".
func (c *Checker) Problems(results []CheckResult) (errs, warnings []string) {
	for _, r := range results {
		switch {
		case r.IsCritical():
			errs = append(errs, r.Name+": "+r.Message)
		case r.Status != StatusPass:
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}
	return errs, warnings
}

// PrintResults writes a report of results.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "pdfqa system check")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", strings.ToUpper(r.Status.String()), r.Name, r.Message)
		if r.Details != "" && (c.verbose || r.Status != StatusPass) {
			_, _ = fmt.Fprintf(c.output, "       %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	errs, warnings := c.Problems(results)
	printList(c.output, "error(s)", errs)
	printList(c.output, "warning(s)", warnings)
}

func printList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "\n%d %s:\n", len(items), label)
	for _, item := range items {
		_, _ = fmt.Fprintf(w, "  - %s\n", item)
	}
}
