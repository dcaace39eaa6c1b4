// Package citation rewrites offset-based file citations in generated
// answers into inline markers naming the source document.
package citation

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/Aman-CERP/pdfqa/internal/index"
)

// GenericMarker replaces a citation whose file could not be named.
const GenericMarker = "[Citation from document]"

// BlockSeparator joins the rendered text blocks of one message.
const BlockSeparator = "\n\n"

// Marker returns the inline marker for a named source. The name is
// inserted verbatim, so a name containing ']' does not survive
// ParseMarkers intact: "a]b.pdf" parses back as "a".
func Marker(name string) string {
	if name == "" {
		return GenericMarker
	}
	return "[Citation from: " + name + "]"
}

// Resolver maps backend file ids to display names. Unknown ids are absent
// from the result.
type Resolver interface {
	ResolveNames(ctx context.Context, fileIDs []string) (map[string]string, error)
}

// Processor renders messages with citations.
type Processor struct {
	resolver Resolver
	logger   *slog.Logger
}

// NewProcessor creates a Processor. A nil resolver renders every citation
// as GenericMarker.
func NewProcessor(resolver Resolver, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{resolver: resolver, logger: logger}
}

// Render rewrites every text block of msg and joins them. File names for
// the whole message are resolved in one call; a resolver failure degrades
// to generic markers.
func (p *Processor) Render(ctx context.Context, msg index.Message) string {
	names := p.resolve(ctx, msg)

	parts := make([]string, len(msg.Blocks))
	for i, b := range msg.Blocks {
		parts[i] = RenderBlock(b.Text, b.Annotations, names)
	}
	return strings.Join(parts, BlockSeparator)
}

func (p *Processor) resolve(ctx context.Context, msg index.Message) map[string]string {
	if p.resolver == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, b := range msg.Blocks {
		for _, a := range b.Annotations {
			if _, ok := seen[a.FileID]; ok {
				continue
			}
			seen[a.FileID] = struct{}{}
			ids = append(ids, a.FileID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	names, err := p.resolver.ResolveNames(ctx, ids)
	if err != nil {
		p.logger.Warn("citation lookup failed, using generic markers",
			slog.Int("files", len(ids)),
			slog.String("error", err.Error()))
		return nil
	}
	return names
}

// RenderBlock replaces each annotated span of text with its marker.
//
// Offsets are code point indices into the original text. Spans are
// replaced from the highest start down so earlier offsets stay valid.
// Offsets are clamped into range and end < start inserts at start.
// Overlapping spans are not detected and may corrupt the output.
func RenderBlock(text string, annotations []index.Annotation, names map[string]string) string {
	if len(annotations) == 0 {
		return text
	}

	sorted := make([]index.Annotation, len(annotations))
	copy(sorted, annotations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start > sorted[j].Start
	})

	runes := []rune(text)
	for _, a := range sorted {
		start := clamp(a.Start, len(runes))
		end := clamp(a.End, len(runes))
		if end < start {
			end = start
		}

		marker := []rune(Marker(names[a.FileID]))
		out := make([]rune, 0, len(runes)-(end-start)+len(marker))
		out = append(out, runes[:start]...)
		out = append(out, marker...)
		out = append(out, runes[end:]...)
		runes = out
	}
	return string(runes)
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
