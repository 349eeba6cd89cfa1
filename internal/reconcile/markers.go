package reconcile

import (
	"regexp"
	"strings"
)

// Side selects which candidate's value resolves a marker.
type Side int

const (
	// SideA resolves markers toward the first candidate.
	SideA Side = iota

	// SideB resolves markers toward the second candidate.
	SideB
)

// markerPattern matches one ambiguity marker. (?s) lets values span the
// newlines a token may legitimately contain.
var markerPattern = regexp.MustCompile(`(?s)<<<A: (.*?) \| B: (.*?)>>>`)

// spaceRunPattern collapses the horizontal whitespace runs left behind when
// a marker resolves to nothing.
var spaceRunPattern = regexp.MustCompile(`[ \t]{2,}`)

// Marker is one parsed ambiguity marker from a marked text. A and B hold
// the trimmed candidate values; [MissingPlaceholder] appears verbatim when a
// side contributed nothing.
type Marker struct {
	// A and B are the candidate values as they appear inside the marker.
	A string `json:"a"`
	B string `json:"b"`

	// Start and End are the byte offsets of the full marker within the
	// marked text.
	Start int `json:"-"`
	End   int `json:"-"`
}

// ExtractMarkers parses every ambiguity marker out of marked, in order of
// appearance. Text without markers yields an empty slice.
func ExtractMarkers(marked string) []Marker {
	idx := markerPattern.FindAllStringSubmatchIndex(marked, -1)
	markers := make([]Marker, 0, len(idx))
	for _, m := range idx {
		markers = append(markers, Marker{
			A:     marked[m[2]:m[3]],
			B:     marked[m[4]:m[5]],
			Start: m[0],
			End:   m[1],
		})
	}
	return markers
}

// StripMarkers resolves every marker in marked toward the given side and
// returns the resulting plain text. A side holding [MissingPlaceholder]
// resolves to nothing. Whitespace runs created by vanished markers are
// collapsed; newlines are preserved.
func StripMarkers(marked string, side Side) string {
	out := markerPattern.ReplaceAllStringFunc(marked, func(m string) string {
		sub := markerPattern.FindStringSubmatch(m)
		v := sub[1]
		if side == SideB {
			v = sub[2]
		}
		if v == MissingPlaceholder {
			return ""
		}
		return v
	})
	out = spaceRunPattern.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
