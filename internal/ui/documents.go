package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/pdfqa/internal/document"
)

// DocumentTable renders document lists.
type DocumentTable struct {
	out    io.Writer
	styles Styles
	now    func() time.Time
}

// NewDocumentTable creates a table writer.
func NewDocumentTable(out io.Writer, styles Styles) *DocumentTable {
	return &DocumentTable{out: out, styles: styles, now: time.Now}
}

var documentColumns = []string{"ID", "FILE", "STATUS", "ACTIVE", "PAGES", "SIZE", "UPLOADED"}

// Render writes one row per document.
func (t *DocumentTable) Render(docs []document.Record) {
	if len(docs) == 0 {
		_, _ = fmt.Fprintln(t.out, t.styles.Dim.Render("No documents. Upload one with: pdfqa upload <file.pdf>"))
		return
	}

	rows := make([][]string, 0, len(docs)+1)
	header := make([]string, len(documentColumns))
	for i, c := range documentColumns {
		header[i] = t.styles.Label.Render(c)
	}
	rows = append(rows, header)

	for _, d := range docs {
		rows = append(rows, t.row(d))
	}

	widths := make([]int, len(documentColumns))
	for _, r := range rows {
		for i, cell := range r {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	for _, r := range rows {
		var sb strings.Builder
		for i, cell := range r {
			sb.WriteString(cell)
			if i < len(r)-1 {
				sb.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2))
			}
		}
		_, _ = fmt.Fprintln(t.out, sb.String())
	}
}

func (t *DocumentTable) row(d document.Record) []string {
	active := t.styles.Dim.Render("no")
	if d.IsActive {
		active = t.styles.Active.Render("yes")
	}

	pages := "-"
	if d.PageCount != nil {
		pages = fmt.Sprintf("%d", *d.PageCount)
	}
	size := "-"
	if d.SizeBytes != nil {
		size = FormatBytes(*d.SizeBytes)
	}

	return []string{
		d.ID,
		truncate(d.Filename, 40),
		t.styles.Status(string(d.Status)),
		active,
		pages,
		size,
		formatAge(t.now(), d.CreatedAt),
	}
}

// truncate shortens s to max runes, marking the cut with an ellipsis.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}
