// Package query builds scoped questions, tracks generation jobs and maps
// their transcripts into chat messages.
package query

import (
	"strings"

	"github.com/Aman-CERP/pdfqa/internal/document"
)

// BuildQuery frames userQuery with instructions to use only the active
// documents. The framing is added only when the owner has both active and
// inactive documents; otherwise the query passes through verbatim.
//
// The template's whitespace is part of the prompt contract and must not be
// reformatted.
func BuildQuery(userQuery string, docs []document.Record) string {
	active, inactive := document.Partition(docs)
	if len(active) == 0 || len(inactive) == 0 {
		return userQuery
	}

	return "IMPORTANT: Please ONLY use information from these documents: " + quoteNames(active) + ". \n" +
		"      COMPLETELY IGNORE these documents: " + quoteNames(inactive) + ".\n" +
		"      \n" +
		"      Query: " + userQuery
}

func quoteNames(docs []document.Record) string {
	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = `"` + d.Filename + `"`
	}
	return strings.Join(names, ", ")
}
