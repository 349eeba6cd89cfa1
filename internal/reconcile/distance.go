package reconcile

// MaxComputeLength is the input length ceiling (in runes) above which
// [Distance] switches from exact computation to the sampling reduction.
// The review UI's colour bands are calibrated against this approximation,
// so the value and the three-way split below must not change.
const MaxComputeLength = 5000

// Distance returns the Levenshtein edit distance between a and b: the
// minimum number of single-character insertions, deletions, and
// substitutions needed to transform a into b.
//
// Inputs longer than [MaxComputeLength] runes are reduced to a surrogate
// built from a prefix, a centred middle slice, and a suffix — each roughly a
// third of the ceiling — before the distance is computed. This bounds cost
// to O(MaxComputeLength²) regardless of input size at the price of an
// approximate result for oversized inputs.
//
// The result is deterministic and depends only on the two inputs.
func Distance(a, b string) int {
	ra := sample([]rune(a))
	rb := sample([]rune(b))

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Classic DP with two rolling rows instead of a full matrix, keeping
	// memory at O(len(rb)).
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j-1]+cost, prev[j]+1, curr[j-1]+1)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

// sample returns r unchanged when it fits under the ceiling; otherwise it
// concatenates the leading third, a slice centred on the midpoint, and the
// trailing third of the ceiling budget.
func sample(r []rune) []rune {
	if len(r) <= MaxComputeLength {
		return r
	}

	third := MaxComputeLength / 3
	mid := len(r) / 2

	out := make([]rune, 0, 3*third)
	out = append(out, r[:third]...)
	out = append(out, r[mid-third/2:mid+third/2]...)
	out = append(out, r[len(r)-third:]...)
	return out
}
