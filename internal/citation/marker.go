package citation

import "regexp"

// markerPattern matches the named and the generic marker and nothing else.
var markerPattern = regexp.MustCompile(`\[Citation from(?:: ([^\]]+)| document)\]`)

// Found is a marker located in rendered text.
type Found struct {
	// Name is empty for the generic marker.
	Name string
	// Start and End are byte offsets of the marker in the text.
	Start int
	End   int
}

// Generic reports whether the marker names no document.
func (f Found) Generic() bool {
	return f.Name == ""
}

// ParseMarkers returns every marker in text order. A named marker ends at
// the first ']', which truncates names that contain one.
func ParseMarkers(text string) []Found {
	matches := markerPattern.FindAllStringSubmatchIndex(text, -1)
	out := make([]Found, 0, len(matches))
	for _, m := range matches {
		f := Found{Start: m[0], End: m[1]}
		if m[2] >= 0 {
			f.Name = text[m[2]:m[3]]
		}
		out = append(out, f)
	}
	return out
}

// Segment is a run of plain text or a single marker.
type Segment struct {
	Text   string
	Marker *Found
}

// Split cuts text into plain and marker segments for display.
func Split(text string) []Segment {
	var segs []Segment
	pos := 0
	for _, f := range ParseMarkers(text) {
		if f.Start > pos {
			segs = append(segs, Segment{Text: text[pos:f.Start]})
		}
		found := f
		segs = append(segs, Segment{Text: text[f.Start:f.End], Marker: &found})
		pos = f.End
	}
	if pos < len(text) {
		segs = append(segs, Segment{Text: text[pos:]})
	}
	return segs
}

// SourceNames returns the distinct named sources in order of first
// appearance.
func SourceNames(text string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, f := range ParseMarkers(text) {
		if f.Generic() || seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		names = append(names, f.Name)
	}
	return names
}
