package reconcile

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// homophoneSimilarityThreshold is the minimum Jaro-Winkler similarity two
// marker values must reach — on top of a Double Metaphone code overlap —
// to be flagged as a likely same-sounding disagreement.
const homophoneSimilarityThreshold = 0.82

// MarkerDiagnosis pairs a parsed [Marker] with classification hints used by
// the API response and metrics. It never influences the marked text itself.
type MarkerDiagnosis struct {
	Marker

	// Homophone reports that both sides likely represent the same spoken
	// words, i.e. the disagreement is a spelling choice rather than a
	// recognition conflict.
	Homophone bool `json:"homophone"`
}

// DiagnoseMarkers parses all markers in marked and classifies each one.
func DiagnoseMarkers(marked string) []MarkerDiagnosis {
	markers := ExtractMarkers(marked)
	out := make([]MarkerDiagnosis, 0, len(markers))
	for _, m := range markers {
		out = append(out, MarkerDiagnosis{
			Marker:    m,
			Homophone: PhoneticallyEqual(m.A, m.B),
		})
	}
	return out
}

// PhoneticallyEqual reports whether a and b plausibly sound the same when
// spoken. Both must carry text — a side holding [MissingPlaceholder] or
// nothing never matches.
//
// The check mirrors the usual two-stage scheme: Double Metaphone codes of
// the space-stripped phrases must overlap, and the Jaro-Winkler similarity
// of the full strings must clear [homophoneSimilarityThreshold].
func PhoneticallyEqual(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	if a == strings.ToLower(MissingPlaceholder) || b == strings.ToLower(MissingPlaceholder) {
		return false
	}
	if a == b {
		return true
	}

	ca := metaphoneCodes(a)
	cb := metaphoneCodes(b)
	if !codesOverlap(ca, cb) {
		return false
	}

	return matchr.JaroWinkler(a, b, false) >= homophoneSimilarityThreshold
}

// metaphoneCodes returns the Double Metaphone codes of the phrase with all
// whitespace removed, so that word-boundary differences ("blut druck" vs
// "blutdruck") do not defeat the comparison.
func metaphoneCodes(phrase string) map[string]struct{} {
	stripped := strings.Join(strings.Fields(phrase), "")
	codes := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(stripped)
	if p != "" {
		codes[p] = struct{}{}
	}
	if s != "" {
		codes[s] = struct{}{}
	}
	return codes
}

// codesOverlap reports whether the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
