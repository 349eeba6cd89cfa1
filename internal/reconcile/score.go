package reconcile

import (
	"math"
	"strings"
)

// Severity band thresholds over the change-score percentage. A score at or
// below greenThreshold is an unremarkable edit; anything above
// yellowThreshold signals a substantial rewrite.
const (
	greenThreshold  = 15
	yellowThreshold = 35
)

// Level is the three-band severity classification of a change score.
type Level string

const (
	LevelGreen  Level = "green"
	LevelYellow Level = "yellow"
	LevelRed    Level = "red"
)

// ChangeScore quantifies how much a corrected text differs from its source.
// It is derived on demand and never persisted.
type ChangeScore struct {
	// Percent is the change percentage in [0, 100].
	Percent int `json:"percent"`

	// Level is the severity band for Percent.
	Level Level `json:"level"`

	// Description is a short German label for the extent of the changes.
	Description string `json:"description"`
}

// Score computes the change score between an original text and its
// corrected version.
//
// Both inputs are whitespace-normalised first (leading/trailing whitespace
// trimmed, internal runs collapsed to single spaces) so that pure formatting
// edits do not inflate the score. Degenerate inputs never produce an error:
// two empty texts or two equal texts score 0, and an empty original with a
// non-empty correction scores 100 (total rewrite).
func Score(original, corrected string) ChangeScore {
	origNorm := normalizeWhitespace(original)
	corrNorm := normalizeWhitespace(corrected)

	switch {
	case origNorm == "" && corrNorm == "":
		return classify(0)
	case origNorm == corrNorm:
		return classify(0)
	case origNorm == "":
		return classify(100)
	}

	dist := Distance(origNorm, corrNorm)
	longest := max(len([]rune(origNorm)), len([]rune(corrNorm)))

	percent := int(math.Round(100 * float64(dist) / float64(longest)))
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return classify(percent)
}

// LevelFor maps a change percentage to its severity band. It is exposed
// separately so callers can re-band a previously computed score without
// recomputing the distance.
func LevelFor(percent int) Level {
	switch {
	case percent <= greenThreshold:
		return LevelGreen
	case percent <= yellowThreshold:
		return LevelYellow
	default:
		return LevelRed
	}
}

// DescriptionFor maps a change percentage to one of seven German labels
// describing the extent of the edit. The buckets are monotone in percent and
// align with the [LevelFor] band boundaries at 15 and 35.
func DescriptionFor(percent int) string {
	switch {
	case percent <= 0:
		return "Keine Änderungen"
	case percent <= 5:
		return "Minimale Korrekturen"
	case percent <= greenThreshold:
		return "Leichte Überarbeitung"
	case percent <= 25:
		return "Moderate Überarbeitung"
	case percent <= yellowThreshold:
		return "Deutliche Überarbeitung"
	case percent <= 60:
		return "Starke Überarbeitung"
	default:
		return "Umfassende Neufassung"
	}
}

// classify assembles a [ChangeScore] from a percentage.
func classify(percent int) ChangeScore {
	return ChangeScore{
		Percent:     percent,
		Level:       LevelFor(percent),
		Description: DescriptionFor(percent),
	}
}

// normalizeWhitespace trims s and collapses internal whitespace runs to
// single spaces.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
