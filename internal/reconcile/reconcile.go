// Package reconcile implements the text reconciliation and change-scoring
// engine at the heart of dualscribe.
//
// Two independent speech-to-text systems transcribe the same dictation and
// rarely agree verbatim. The engine turns their outputs into a single text
// with every point of disagreement made explicit:
//
//  1. [Merger.Merge] consumes a word-level diff of the two candidate
//     transcriptions and emits one text in which each disagreement is wrapped
//     in an inline marker of the form <<<A: x | B: y>>>. Agreed text is
//     copied verbatim.
//  2. [BuildPrompt] and [BuildUserMessage] format the marked text into the
//     instruction payload for the downstream arbitration model, which picks
//     one side per marker.
//  3. [Score] quantifies how far a corrected text drifted from its source as
//     a 0–100 percentage derived from edit distance, banded into the
//     green/yellow/red severity levels shown in the review UI.
//
// Everything in this package is a pure function of its inputs: no I/O, no
// shared state, no randomness. All types and functions are safe for
// concurrent use. The word-level diff itself is treated as a capability —
// see [Differ] — so the merge policy stays independent of the diff
// implementation; [WordDiffer] is the default, built on diffmatchpatch.
package reconcile

// DiffKind labels a [DiffToken] as common to both texts or exclusive to one.
type DiffKind int

const (
	// DiffUnchanged marks text present in both candidates.
	DiffUnchanged DiffKind = iota

	// DiffAdded marks text present only in candidate B.
	DiffAdded

	// DiffRemoved marks text present only in candidate A.
	DiffRemoved
)

// String returns the human-readable name of the kind.
func (k DiffKind) String() string {
	switch k {
	case DiffUnchanged:
		return "unchanged"
	case DiffAdded:
		return "added"
	case DiffRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// DiffToken is one element of an ordered word-level difference stream.
//
// The stream satisfies the reconstruction invariant: concatenating the
// values of all unchanged and removed tokens yields the first input text
// verbatim, and concatenating all unchanged and added tokens yields the
// second. [Merger] assumes this invariant and does not re-validate it.
type DiffToken struct {
	// Value is the exact substring, whitespace included.
	Value string

	// Kind classifies the token.
	Kind DiffKind
}

// Differ produces an ordered word-level difference stream for two texts.
//
// Implementations must preserve whitespace inside token values so that the
// reconstruction invariant documented on [DiffToken] holds. Implementations
// must be safe for concurrent use.
type Differ interface {
	Diff(a, b string) []DiffToken
}

// TranscriptionResult pairs a candidate transcription with the name of the
// provider that produced it.
type TranscriptionResult struct {
	// Text is the raw transcription text.
	Text string

	// Provider is a short label for the STT backend (e.g. "whisperx",
	// "deepgram"). It appears in the arbitration prompt and in logs.
	Provider string
}

// MergedResult is the outcome of reconciling two candidate transcriptions.
// It is immutable after construction.
type MergedResult struct {
	// MarkedText is the merged text. When HasDifferences is true it contains
	// one <<<A: x | B: y>>> marker per disagreement; otherwise it equals the
	// trimmed shared text.
	MarkedText string `json:"marked_text"`

	// TextA and TextB are the trimmed original candidate texts.
	TextA string `json:"text_a"`
	TextB string `json:"text_b"`

	// ProviderA and ProviderB are the provider labels of the two candidates.
	ProviderA string `json:"provider_a"`
	ProviderB string `json:"provider_b"`

	// HasDifferences reports whether the candidates disagreed anywhere after
	// trimming. When false, MarkedText contains no markers.
	HasDifferences bool `json:"has_differences"`
}
