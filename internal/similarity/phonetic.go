package similarity

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// code is a Double Metaphone encoding of a whole text: the per-word
// primary and secondary codes joined in word order, so multi-word answers
// compare at the phrase level.
type code struct {
	primary   string
	secondary string
}

// phoneticCode encodes text word by word with Double Metaphone.
func phoneticCode(text string) code {
	var primary, secondary []string
	for _, w := range strings.Fields(text) {
		p, s := matchr.DoubleMetaphone(w)
		primary = append(primary, p)
		if s == "" {
			s = p
		}
		secondary = append(secondary, s)
	}
	return code{
		primary:   strings.Join(primary, " "),
		secondary: strings.Join(secondary, " "),
	}
}

// codesMatch reports whether two encodings share a consonant skeleton:
// any primary/secondary pairing that agrees counts, so alternate
// pronunciations of either side can match.
func codesMatch(a, b code) bool {
	if a.primary == "" || b.primary == "" {
		return false
	}
	return a.primary == b.primary ||
		a.primary == b.secondary ||
		a.secondary == b.primary ||
		a.secondary == b.secondary
}
