package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// StatusInfo is the daemon state shown by `pdfqa serve status`.
type StatusInfo struct {
	Running   bool           `json:"running"`
	PID       int            `json:"pid,omitempty"`
	Uptime    string         `json:"uptime,omitempty"`
	OwnerID   string         `json:"owner_id,omitempty"`
	Documents map[string]int `json:"documents,omitempty"`
	Breaker   string         `json:"breaker,omitempty"`

	LastSweepAt time.Time `json:"last_sweep_at,omitempty"`
	LastSweep   string    `json:"last_sweep,omitempty"`

	InboxDir      string `json:"inbox_dir,omitempty"`
	InboxMode     string `json:"inbox_mode,omitempty"`
	InboxUploaded int    `json:"inbox_uploaded,omitempty"`
	InboxFailed   int    `json:"inbox_failed,omitempty"`

	LastMaintAt time.Time `json:"last_maintenance_at,omitempty"`
	LastMaint   string    `json:"last_maintenance,omitempty"`

	Questions string   `json:"questions,omitempty"`
	TopTerms  []string `json:"top_terms,omitempty"`
}

// StatusRenderer displays daemon status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
	now    func() time.Time
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
		now:    time.Now,
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	if !info.Running {
		_, _ = fmt.Fprintf(r.out, "%s %s\n", r.styles.Header.Render("Daemon:"), r.styles.Status("stopped"))
		return nil
	}

	_, _ = fmt.Fprintf(r.out, "%s %s\n\n", r.styles.Header.Render("Daemon:"), r.styles.Status("running"))
	_, _ = fmt.Fprintf(r.out, "  PID:     %d\n", info.PID)
	_, _ = fmt.Fprintf(r.out, "  Uptime:  %s\n", info.Uptime)
	_, _ = fmt.Fprintf(r.out, "  Owner:   %s\n", info.OwnerID)
	if info.Breaker != "" {
		_, _ = fmt.Fprintf(r.out, "  Backend: %s\n", r.styles.Status(info.Breaker))
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Documents:")
	if len(info.Documents) == 0 {
		_, _ = fmt.Fprintln(r.out, "    none")
	}
	statuses := make([]string, 0, len(info.Documents))
	for s := range info.Documents {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		pad := ""
		if len(s) < 11 {
			pad = strings.Repeat(" ", 11-len(s))
		}
		_, _ = fmt.Fprintf(r.out, "    %s%s %d\n", r.styles.Status(s), pad, info.Documents[s])
	}
	_, _ = fmt.Fprintln(r.out)

	if !info.LastSweepAt.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last sweep:       %s (%s)\n", info.LastSweep, formatAge(r.now(), info.LastSweepAt))
	}
	if !info.LastMaintAt.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last maintenance: %s (%s)\n", info.LastMaint, formatAge(r.now(), info.LastMaintAt))
	}
	if info.InboxDir != "" {
		_, _ = fmt.Fprintf(r.out, "  Inbox:            %s [%s] %d uploaded, %d failed\n",
			info.InboxDir, info.InboxMode, info.InboxUploaded, info.InboxFailed)
	}
	if info.Questions != "" {
		_, _ = fmt.Fprintf(r.out, "  Questions:        %s\n", info.Questions)
	}
	if len(info.TopTerms) > 0 {
		_, _ = fmt.Fprintf(r.out, "  Top terms:        %s\n", strings.Join(info.TopTerms, ", "))
	}
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// formatAge formats t relative to now.
func formatAge(now, t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
