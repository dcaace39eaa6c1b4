package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/pdfqa/internal/query"
)

// FormatDocuments formats a document list as markdown.
func FormatDocuments(docs []DocumentOutput) string {
	if len(docs) == 0 {
		return "No documents uploaded yet. Use upload_document to add a PDF."
	}

	var sb strings.Builder
	sb.WriteString("## Documents\n\n")
	sb.WriteString(fmt.Sprintf("Found %d document", len(docs)))
	if len(docs) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")
	sb.WriteString("| ID | File | Status | Active | Pages |\n")
	sb.WriteString("|----|------|--------|--------|-------|\n")

	for _, d := range docs {
		active := "no"
		if d.IsActive {
			active = "yes"
		}
		pages := "-"
		if d.PageCount > 0 {
			pages = fmt.Sprintf("%d", d.PageCount)
		}
		sb.WriteString(fmt.Sprintf("| `%s` | %s | %s | %s | %s |\n",
			d.ID, escapeCell(d.Filename), d.Status, active, pages))
	}
	return sb.String()
}

// FormatAnswer formats an ask outcome as markdown.
func FormatAnswer(question string, out query.Outcome) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Answer to \"%s\"\n\n", question))
	sb.WriteString(out.Text())
	sb.WriteString("\n")

	if out.Kind != query.OutcomeCompleted {
		sb.WriteString(fmt.Sprintf("\n_Outcome: %s after %d poll", out.Kind, out.Attempts))
		if out.Attempts != 1 {
			sb.WriteString("s")
		}
		sb.WriteString("._\n")
	}
	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
