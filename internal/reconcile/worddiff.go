package reconcile

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// WordDiffer is the default [Differ]. It computes a word-granularity,
// whitespace-preserving diff by encoding each word and whitespace run as a
// single rune, running diffmatchpatch over the encoded strings, and decoding
// the result back into substrings.
//
// Because words and whitespace runs partition the input exactly, the
// reconstruction invariant on [DiffToken] holds verbatim: no character is
// lost or duplicated by the encoding round trip.
//
// A WordDiffer is stateless and safe for concurrent use.
type WordDiffer struct {
	dmp *diffmatchpatch.DiffMatchPatch
}

// NewWordDiffer returns a ready-to-use [WordDiffer].
func NewWordDiffer() *WordDiffer {
	return &WordDiffer{dmp: diffmatchpatch.New()}
}

// Diff implements [Differ].
func (d *WordDiffer) Diff(a, b string) []DiffToken {
	wordsA := splitWords(a)
	wordsB := splitWords(b)

	encA, encB, vocab := encodeWords(wordsA, wordsB)

	diffs := d.dmp.DiffMain(encA, encB, false)
	diffs = d.dmp.DiffCleanupMerge(diffs)

	out := make([]DiffToken, 0, len(diffs))
	for _, df := range diffs {
		var sb strings.Builder
		for _, r := range df.Text {
			sb.WriteString(vocab[r])
		}
		out = append(out, DiffToken{
			Value: sb.String(),
			Kind:  kindForOperation(df.Type),
		})
	}
	return out
}

// kindForOperation maps a diffmatchpatch operation onto a [DiffKind].
func kindForOperation(op diffmatchpatch.Operation) DiffKind {
	switch op {
	case diffmatchpatch.DiffInsert:
		return DiffAdded
	case diffmatchpatch.DiffDelete:
		return DiffRemoved
	default:
		return DiffUnchanged
	}
}

// splitWords partitions s into alternating runs of non-space and space
// runes. Concatenating the result reproduces s exactly.
func splitWords(s string) []string {
	if s == "" {
		return nil
	}

	first, _ := utf8.DecodeRuneInString(s)
	var (
		tokens  []string
		start   int
		inSpace = unicode.IsSpace(first)
	)
	for i, r := range s {
		isSpace := unicode.IsSpace(r)
		if isSpace != inSpace {
			tokens = append(tokens, s[start:i])
			start = i
			inSpace = isSpace
		}
	}
	tokens = append(tokens, s[start:])
	return tokens
}

// encodeWords maps every distinct token from both inputs to a unique rune
// and returns the two encoded strings plus the decoding table. The surrogate
// range is skipped so every assigned code point survives a UTF-8 round trip
// through diffmatchpatch.
func encodeWords(a, b []string) (encA, encB string, vocab map[rune]string) {
	index := make(map[string]rune, len(a)+len(b))
	vocab = make(map[rune]string, len(a)+len(b))
	next := rune(1)

	encode := func(tokens []string) string {
		var sb strings.Builder
		sb.Grow(len(tokens))
		for _, t := range tokens {
			r, ok := index[t]
			if !ok {
				if next >= 0xD800 && next < 0xE000 {
					next = 0xE000
				}
				r = next
				next++
				index[t] = r
				vocab[r] = t
			}
			sb.WriteRune(r)
		}
		return sb.String()
	}

	return encode(a), encode(b), vocab
}
