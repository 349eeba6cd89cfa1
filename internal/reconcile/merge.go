package reconcile

import "strings"

// MissingPlaceholder is the literal written into a marker side when that
// candidate contributed no text at the position. It is German for "missing"
// because the arbitration model and the reviewing physicians work in German.
const MissingPlaceholder = "[FEHLT]"

// Marker delimiters. Consumers parsing MarkedText rely on these exact ASCII
// sequences; see also [ExtractMarkers].
const (
	markerOpen  = "<<<A: "
	markerSep   = " | B: "
	markerClose = ">>>"
)

// MergerOption is a functional option for configuring a [Merger].
type MergerOption func(*Merger)

// WithDiffer replaces the word-level diff implementation. The default is a
// [WordDiffer]. Useful in tests that need to inject a fixed token stream.
func WithDiffer(d Differ) MergerOption {
	return func(m *Merger) {
		m.differ = d
	}
}

// Merger reconciles two candidate transcriptions of the same dictation into
// a single text with inline ambiguity markers.
//
// A Merger is read-only after construction and safe for concurrent use.
type Merger struct {
	differ Differ
}

// NewMerger returns a [Merger] using a [WordDiffer] unless overridden via
// [WithDiffer].
func NewMerger(opts ...MergerOption) *Merger {
	m := &Merger{
		differ: NewWordDiffer(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Merge reconciles candidates a and b into a [MergedResult].
//
// When the trimmed texts are byte-for-byte equal the shared text is returned
// as-is with HasDifferences false — no diff is computed. Otherwise the diff
// token stream is walked left to right with a two-token lookahead:
//
//   - an unchanged token is copied verbatim;
//   - a removed token immediately followed by an added token is a
//     substitution and becomes one marker carrying both trimmed values;
//   - a removed token on its own becomes a marker with [MissingPlaceholder]
//     on the B side;
//   - an added token on its own becomes a marker with [MissingPlaceholder]
//     on the A side.
//
// A disagreement whose trimmed values are empty on both sides is pure
// whitespace and produces no marker. The walk is a single pass with O(1)
// lookahead; alignment quality is entirely the differ's responsibility.
func (m *Merger) Merge(a, b TranscriptionResult) MergedResult {
	textA := strings.TrimSpace(a.Text)
	textB := strings.TrimSpace(b.Text)

	res := MergedResult{
		TextA:     textA,
		TextB:     textB,
		ProviderA: a.Provider,
		ProviderB: b.Provider,
	}

	if textA == textB {
		res.MarkedText = textA
		return res
	}

	tokens := m.differ.Diff(textA, textB)

	var sb strings.Builder
	sb.Grow(len(textA) + len(textB)/2)

	i := 0
	for i < len(tokens) {
		tok := tokens[i]
		switch tok.Kind {
		case DiffUnchanged:
			sb.WriteString(tok.Value)
			i++

		case DiffRemoved:
			aVal := strings.TrimSpace(tok.Value)
			bVal := ""
			if i+1 < len(tokens) && tokens[i+1].Kind == DiffAdded {
				bVal = strings.TrimSpace(tokens[i+1].Value)
				i += 2
			} else {
				i++
			}
			if writeMarker(&sb, aVal, bVal) {
				padBefore(&sb, tokens, i)
			} else {
				// Whitespace-only disagreement: no marker, but keep A's
				// spacing so the surrounding words do not fuse.
				sb.WriteString(tok.Value)
			}

		case DiffAdded:
			// An added token reaching this branch has no unresolved removed
			// token before it, so it is a pure insertion from A's view.
			if writeMarker(&sb, "", strings.TrimSpace(tok.Value)) {
				padBefore(&sb, tokens, i+1)
			} else {
				sb.WriteString(tok.Value)
			}
			i++

		default:
			i++
		}
	}

	res.MarkedText = strings.TrimSpace(sb.String())
	res.HasDifferences = true
	return res
}

// writeMarker appends one <<<A: x | B: y>>> marker, substituting
// [MissingPlaceholder] for an empty side. When both sides are empty the
// disagreement was whitespace-only, nothing is written, and writeMarker
// reports false.
//
// Trimming the marker values can swallow the separating whitespace that
// lived inside the diff tokens, so a single space is re-inserted where the
// marker would otherwise fuse with the preceding text.
func writeMarker(sb *strings.Builder, aVal, bVal string) bool {
	if aVal == "" && bVal == "" {
		return false
	}
	if aVal == "" {
		aVal = MissingPlaceholder
	}
	if bVal == "" {
		bVal = MissingPlaceholder
	}

	if s := sb.String(); s != "" && !endsWithSpace(s) {
		sb.WriteByte(' ')
	}
	sb.WriteString(markerOpen)
	sb.WriteString(aVal)
	sb.WriteString(markerSep)
	sb.WriteString(bVal)
	sb.WriteString(markerClose)
	return true
}

// padBefore inserts a space after a freshly written marker when the next
// token to be emitted does not itself start with whitespace.
func padBefore(sb *strings.Builder, tokens []DiffToken, next int) {
	if next >= len(tokens) {
		return
	}
	v := tokens[next].Value
	if v == "" {
		return
	}
	switch v[0] {
	case ' ', '\n', '\t':
		return
	}
	sb.WriteByte(' ')
}

// endsWithSpace reports whether the last byte of s is an ASCII space or
// newline. Marker values are trimmed, so only these separators occur here.
func endsWithSpace(s string) bool {
	c := s[len(s)-1]
	return c == ' ' || c == '\n' || c == '\t'
}
