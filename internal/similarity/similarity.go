// Package similarity computes the multi-signal comparison between a
// learner's response and the expected answer, and fuses the signals into a
// single composite score.
//
// Independent signals:
//
//   - content similarity: sequence-alignment ratio of lenient-normalised
//     forms
//   - exact similarity: the same ratio on strict-normalised forms
//   - Jaro-Winkler similarity on the raw lower-cased strings
//   - phonetic match: Double Metaphone code equality (consonant-skeleton
//     level)
//   - phonetic similarity: sequence-alignment ratio of phoneme strings,
//     when a grapheme-to-phoneme backend is available
//   - length ratio/score and keyword coverage on the lenient word lists
//
// The fusion policy is keyed by expected-answer length: short targets
// (single syllables and phonemes) are dominated by sound matching, long
// targets by content overlap. See [Scorer.Analyze].
package similarity

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"github.com/fonoletra/fonoletra/internal/textnorm"
	"github.com/fonoletra/fonoletra/pkg/provider/g2p"
)

// shortTargetMaxRunes is the expected-answer length (in runes, after
// trimming) at or below which the short-target fusion branch applies.
const shortTargetMaxRunes = 3

// Short-target fusion thresholds: a strong single signal decides the score
// outright before the blended fallback applies.
const (
	shortPhonemeSimilarityFloor = 80.0
	shortJaroWinklerFloor       = 70.0
)

// Analysis is the bag of named similarity scores for one comparison.
// All scores are in [0, 100]. An Analysis is immutable once produced.
type Analysis struct {
	ContentSimilarity     float64 `json:"content_similarity"`
	ExactSimilarity       float64 `json:"exact_similarity"`
	JaroWinklerSimilarity float64 `json:"jaro_winkler_similarity"`
	PhoneticMatch         bool    `json:"phonetic_match"`
	PhoneticSimilarity    float64 `json:"phonetic_similarity"`
	LengthRatio           float64 `json:"length_ratio"`
	LengthScore           float64 `json:"length_score"`
	KeywordCoverage       float64 `json:"keyword_coverage"`
	CompositeScore        float64 `json:"composite_score"`
	CandidateWordCount    int     `json:"student_words_count"`
	ExpectedWordCount     int     `json:"expected_words_count"`

	// G2PUsed reports whether phoneme comparison contributed to this
	// analysis. When false, PhoneticSimilarity is 0 by definition.
	G2PUsed bool `json:"g2p_used"`

	// CandidatePhonemes and ExpectedPhonemes hold the phoneme strings when
	// G2PUsed is true.
	CandidatePhonemes string `json:"student_phonemes,omitempty"`
	ExpectedPhonemes  string `json:"expected_phonemes,omitempty"`
}

// ShortTarget reports whether expected falls in the short-answer regime
// (at most three runes after trimming), where sound matching dominates the
// fusion policy and the correctness decision.
func ShortTarget(expected string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(expected)) <= shortTargetMaxRunes
}

// Option is a functional option for configuring a [Scorer].
type Option func(*Scorer)

// WithPhonemes equips the scorer with a grapheme-to-phoneme backend.
// Without one, phoneme-based signals degrade to zero and the fusion
// fallback branches apply.
func WithPhonemes(p g2p.Provider) Option {
	return func(s *Scorer) { s.g2p = p }
}

// Scorer computes similarity analyses. It is read-only after construction
// and safe for concurrent use.
type Scorer struct {
	g2p g2p.Provider
}

// NewScorer returns a [Scorer] configured with the supplied options.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Analyze compares candidate against expected and returns the full signal
// bag with the fused composite score. usePhonetic requests phoneme-level
// comparison; it degrades gracefully when no backend is configured or the
// backend is unavailable. language is the BCP-47 code forwarded to the
// phoneme backend.
//
// An empty candidate (after trimming) short-circuits: every score is zero.
func (s *Scorer) Analyze(ctx context.Context, candidate, expected string, usePhonetic bool, language string) Analysis {
	candidateClean := strings.ToLower(strings.TrimSpace(candidate))
	expectedClean := strings.ToLower(strings.TrimSpace(expected))

	if candidateClean == "" {
		return Analysis{ExpectedWordCount: len(textnorm.Words(expected))}
	}

	candidateCode := phoneticCode(candidateClean)
	expectedCode := phoneticCode(expectedClean)
	phoneticMatch := codesMatch(candidateCode, expectedCode)
	jaro := matchr.JaroWinkler(candidateClean, expectedClean, false) * 100

	content := seqRatio(textnorm.Lenient(candidate), textnorm.Lenient(expected))
	exact := seqRatio(textnorm.Strict(candidate), textnorm.Strict(expected))

	expectedWords := textnorm.Words(expected)
	candidateWords := textnorm.Words(candidate)
	lengthRatio := float64(len(candidateWords)) / math.Max(float64(len(expectedWords)), 1)
	lengthScore := 100.0
	if lengthRatio < 0.8 || lengthRatio > 1.2 {
		lengthScore = math.Max(0, 100-math.Abs(lengthRatio-1)*50)
	}
	keywordCoverage := 100.0
	if len(expectedWords) > 0 {
		var hits int
		for _, w := range expectedWords {
			for _, cw := range candidateWords {
				if w == cw {
					hits++
					break
				}
			}
		}
		keywordCoverage = float64(hits) / float64(len(expectedWords)) * 100
	}

	a := Analysis{
		JaroWinklerSimilarity: round2(jaro),
		PhoneticMatch:         phoneticMatch,
		LengthRatio:           round2(lengthRatio),
		LengthScore:           round2(lengthScore),
		KeywordCoverage:       round2(keywordCoverage),
		CandidateWordCount:    len(candidateWords),
		ExpectedWordCount:     len(expectedWords),
	}

	var phoneticSim float64
	if usePhonetic && s.g2p != nil {
		cp, ep, sim, ok := s.comparePhonemes(ctx, candidate, expected, language)
		if ok {
			a.G2PUsed = true
			a.CandidatePhonemes = cp
			a.ExpectedPhonemes = ep
			phoneticSim = sim
			if cp == ep {
				a.PhoneticMatch = true
				phoneticSim = 100
			}
		}
	}
	a.PhoneticSimilarity = round2(phoneticSim)

	composite := fuse(expectedClean, a, content, exact, phoneticSim, jaro)
	if a.PhoneticMatch && utf8.RuneCountInString(expectedClean) <= shortTargetMaxRunes {
		// A correct sound is definitionally a correct answer for a short
		// phonetic target, whatever the transcription spelled.
		content = 100
	}

	a.ContentSimilarity = round2(content)
	a.ExactSimilarity = round2(exact)
	a.CompositeScore = round2(clamp(composite, 0, 100))
	return a
}

// fuse applies the length-keyed weighting policy and returns the unrounded
// composite score.
func fuse(expectedClean string, a Analysis, content, exact, phoneticSim, jaro float64) float64 {
	if utf8.RuneCountInString(expectedClean) <= shortTargetMaxRunes {
		switch {
		case a.PhoneticMatch:
			return 100
		case a.G2PUsed && phoneticSim >= shortPhonemeSimilarityFloor:
			return phoneticSim
		case jaro >= shortJaroWinklerFloor:
			return jaro
		case a.G2PUsed:
			return phoneticSim*0.5 + jaro*0.3 + content*0.2
		default:
			return jaro*0.8 + content*0.2
		}
	}

	if a.G2PUsed {
		return content*0.30 +
			exact*0.15 +
			a.LengthScore*0.10 +
			a.KeywordCoverage*0.10 +
			jaro*0.15 +
			phoneticSim*0.20
	}

	phoneticWeight := math.Min(0.4, float64(utf8.RuneCountInString(expectedClean))/20)
	return content*0.40 +
		exact*0.20 +
		a.LengthScore*0.15 +
		a.KeywordCoverage*0.15 +
		jaro*phoneticWeight
}

// comparePhonemes converts both texts to phoneme strings and returns their
// alignment ratio. ok is false when the backend is unavailable or either
// conversion produced nothing, in which case phoneme signals are skipped.
func (s *Scorer) comparePhonemes(ctx context.Context, candidate, expected, language string) (cp, ep string, sim float64, ok bool) {
	cp, err := s.g2p.Phonemes(ctx, textnorm.Lenient(candidate), language)
	if err != nil {
		logPhonemeError(err)
		return "", "", 0, false
	}
	ep, err = s.g2p.Phonemes(ctx, textnorm.Lenient(expected), language)
	if err != nil {
		logPhonemeError(err)
		return "", "", 0, false
	}
	if cp == "" || ep == "" {
		return "", "", 0, false
	}
	return cp, ep, seqRatio(cp, ep), true
}

func logPhonemeError(err error) {
	// Unavailability is expected on hosts without a phoneme backend and
	// only worth a debug line; anything else deserves attention.
	if errors.Is(err, g2p.ErrUnavailable) {
		slog.Debug("similarity: phoneme backend unavailable", "err", err)
		return
	}
	slog.Warn("similarity: phoneme conversion failed", "err", err)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
