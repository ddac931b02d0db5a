// Package g2p defines the Provider interface for grapheme-to-phoneme
// conversion.
//
// Phoneme generation is an optional capability: when no backend is
// installed the similarity scorer falls back to orthographic and
// phonetic-code signals. ErrUnavailable is the sentinel for that case and
// must never hard-fail an evaluation.
package g2p

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by providers whose backend is not installed or
// not reachable. Callers degrade gracefully: phoneme-based signals are
// simply skipped.
var ErrUnavailable = errors.New("g2p: phoneme backend unavailable")

// Provider converts text to a phoneme string.
type Provider interface {
	// Phonemes returns the phoneme-string rendering of text in the given
	// language (BCP-47 code, e.g. "pt"). The input should already be
	// lenient-normalised and lower-cased.
	//
	// Returns ErrUnavailable (possibly wrapped) when the backend cannot
	// serve; an empty phoneme string with a nil error means the input had
	// no phonemisable content.
	Phonemes(ctx context.Context, text, language string) (string, error)
}
