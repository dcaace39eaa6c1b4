package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/Aman-CERP/pdfqa/internal/citation"
	"github.com/Aman-CERP/pdfqa/internal/query"
)

// HighlightCitations styles every citation marker in text.
func HighlightCitations(text string, styles Styles) string {
	var sb strings.Builder
	for _, seg := range citation.Split(text) {
		if seg.Marker != nil {
			sb.WriteString(styles.Citation.Render(seg.Text))
		} else {
			sb.WriteString(seg.Text)
		}
	}
	return sb.String()
}

// RenderAnswer writes the outcome of a question followed by the list of
// cited sources.
func RenderAnswer(out io.Writer, o query.Outcome, styles Styles) {
	text := o.Text()

	switch o.Kind {
	case query.OutcomeCompleted:
		if text == "" {
			_, _ = fmt.Fprintln(out, styles.Dim.Render("(no answer)"))
			return
		}
		_, _ = fmt.Fprintln(out, HighlightCitations(text, styles))
	case query.OutcomeTimeout:
		_, _ = fmt.Fprintln(out, styles.Warning.Render(text))
		return
	default:
		_, _ = fmt.Fprintln(out, styles.Error.Render(text))
		return
	}

	sources := citation.SourceNames(text)
	if len(sources) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, styles.Label.Render("Sources:"))
	for _, name := range sources {
		_, _ = fmt.Fprintf(out, "  %s %s\n", styles.Dim.Render("•"), name)
	}
}
