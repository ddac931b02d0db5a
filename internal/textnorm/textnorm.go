// Package textnorm produces the two canonical text forms used by every
// comparison in the evaluation engine.
//
// Strict keeps case, punctuation, and diacritics and only collapses
// whitespace; it feeds the "exact-ish" similarity signal. Lenient strips
// accents, lower-cases, and removes punctuation; it feeds all content-level
// comparisons and word-list derivation.
//
// Both functions are pure and idempotent: applying one twice yields the
// same result as applying it once.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Strict trims the text and collapses internal whitespace runs to single
// spaces. Case, punctuation, and diacritics are preserved.
func Strict(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Lenient canonicalises text for content comparison: Unicode-decompose,
// drop combining marks, lower-case, remove everything that is not a
// letter, digit, underscore, or space, then collapse whitespace.
func Lenient(text string) string {
	decomposed := norm.NFD.String(text)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining mark: dropped, this is what strips accents
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Words returns the lenient-normalised word list of text. Empty input
// yields an empty (non-nil) slice.
func Words(text string) []string {
	fields := strings.Fields(Lenient(text))
	if fields == nil {
		return []string{}
	}
	return fields
}
