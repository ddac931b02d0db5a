package similarity

// seqRatio returns the classic sequence-alignment similarity of two
// strings as a percentage: 2*LCS(a, b) / (len(a) + len(b)) * 100, computed
// over runes so accented and non-Latin characters count as single units.
// Two empty strings are identical (100); one empty string matches nothing
// (0).
func seqRatio(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 100
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	return float64(2*lcsLen(ra, rb)) / float64(len(ra)+len(rb)) * 100
}

// lcsLen computes the longest-common-subsequence length with a rolling
// single-row table, O(len(a)*len(b)) time and O(min) space.
func lcsLen(a, b []rune) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	row := make([]int, len(a)+1)
	for _, rb := range b {
		prevDiag := 0
		for i, ra := range a {
			tmp := row[i+1]
			if ra == rb {
				row[i+1] = prevDiag + 1
			} else if row[i] > row[i+1] {
				row[i+1] = row[i]
			}
			prevDiag = tmp
		}
	}
	return row[len(a)]
}
