// Package rating turns a similarity analysis into the coarse 1-4 mastery
// rating consumed by the spaced-repetition scheduler, together with a
// learner-facing feedback message in Portuguese.
package rating

import (
	"github.com/fonoletra/fonoletra/internal/similarity"
)

// Mode identifies the evaluation flavour. It selects the correctness
// threshold and the feedback catalogue.
type Mode string

const (
	// ModePhoneme evaluates a spoken phoneme or syllable.
	ModePhoneme Mode = "phoneme"
	// ModeSpelling evaluates a word spelled out letter by letter.
	ModeSpelling Mode = "spelling"
	// ModeSpeech evaluates a free spoken response.
	ModeSpeech Mode = "speech"
	// ModeText evaluates a typed response with no audio involved.
	ModeText Mode = "text"
)

// FeedbackType is the coarse outcome category reported to the caller.
type FeedbackType string

const (
	FeedbackCorrect   FeedbackType = "correct"
	FeedbackPartial   FeedbackType = "partial"
	FeedbackIncorrect FeedbackType = "incorrect"
	FeedbackNoAudio   FeedbackType = "no_audio"
	FeedbackSTTFailed FeedbackType = "stt_failed"
)

// Thresholds holds the tunable decision boundaries. Zero values are
// replaced by [DefaultThresholds] at engine construction.
type Thresholds struct {
	// Correct is the composite score at which a response counts as
	// correct, per mode.
	Correct map[Mode]float64 `yaml:"correct"`

	// PartialFloor is the composite score below which feedback degrades
	// from partial to incorrect.
	PartialFloor float64 `yaml:"partial_floor"`

	// Short-target phoneme-mode disjunction bounds. Short sound targets
	// are accepted on any one strong signal because transcription of
	// isolated phonemes is noisy.
	ShortPhoneticSimilarity float64 `yaml:"short_phonetic_similarity"`
	ShortJaroWinkler        float64 `yaml:"short_jaro_winkler"`
	ShortContent            float64 `yaml:"short_content"`
}

// DefaultThresholds returns the stock decision boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Correct: map[Mode]float64{
			ModePhoneme:  60,
			ModeSpelling: 75,
			ModeSpeech:   75,
			ModeText:     75,
		},
		PartialFloor:            40,
		ShortPhoneticSimilarity: 75,
		ShortJaroWinkler:        70,
		ShortContent:            60,
	}
}

// Result is the rated outcome for one analysis.
type Result struct {
	Rating          int
	IsCorrect       bool
	FeedbackType    FeedbackType
	FeedbackMessage string
}

// Engine derives ratings and feedback. It is read-only after construction
// and safe for concurrent use.
type Engine struct {
	thresholds Thresholds
}

// NewEngine returns an [Engine] with the given thresholds; zero-valued
// fields fall back to [DefaultThresholds].
func NewEngine(t Thresholds) *Engine {
	def := DefaultThresholds()
	if t.Correct == nil {
		t.Correct = def.Correct
	} else {
		for m, v := range def.Correct {
			if _, ok := t.Correct[m]; !ok {
				t.Correct[m] = v
			}
		}
	}
	if t.PartialFloor == 0 {
		t.PartialFloor = def.PartialFloor
	}
	if t.ShortPhoneticSimilarity == 0 {
		t.ShortPhoneticSimilarity = def.ShortPhoneticSimilarity
	}
	if t.ShortJaroWinkler == 0 {
		t.ShortJaroWinkler = def.ShortJaroWinkler
	}
	if t.ShortContent == 0 {
		t.ShortContent = def.ShortContent
	}
	return &Engine{thresholds: t}
}

// Rate evaluates an analysis for the given mode. shortTarget marks
// phoneme-mode requests whose expected answer is a short sound target,
// which widens the correctness decision. thresholdOverride, when positive,
// replaces the configured per-mode correctness threshold for this call.
func (e *Engine) Rate(mode Mode, a similarity.Analysis, shortTarget bool, thresholdOverride float64) Result {
	threshold := e.thresholds.Correct[mode]
	if thresholdOverride > 0 {
		threshold = thresholdOverride
	}

	r := Result{
		Rating:    deriveRating(a),
		IsCorrect: e.isCorrect(mode, a, shortTarget, threshold),
	}
	r.FeedbackType, r.FeedbackMessage = e.feedback(mode, a, r)
	return r
}

// deriveRating applies the ordered rating rules; the first match wins.
func deriveRating(a similarity.Analysis) int {
	switch {
	case a.G2PUsed && a.PhoneticSimilarity >= 90:
		return 4
	case a.CompositeScore >= 90 && a.ContentSimilarity >= 88:
		return 4
	case a.CompositeScore >= 75 && a.ContentSimilarity >= 70:
		return 3
	case a.CompositeScore >= 50,
		a.ContentSimilarity >= 60 && a.LengthRatio >= 0.5:
		return 2
	default:
		return 1
	}
}

func (e *Engine) isCorrect(mode Mode, a similarity.Analysis, shortTarget bool, threshold float64) bool {
	if mode == ModePhoneme && shortTarget {
		return a.PhoneticMatch ||
			(a.G2PUsed && a.PhoneticSimilarity >= e.thresholds.ShortPhoneticSimilarity) ||
			a.JaroWinklerSimilarity >= e.thresholds.ShortJaroWinkler ||
			a.ContentSimilarity >= e.thresholds.ShortContent
	}
	return a.CompositeScore >= threshold
}

func (e *Engine) feedback(mode Mode, a similarity.Analysis, r Result) (FeedbackType, string) {
	switch mode {
	case ModePhoneme:
		switch {
		case r.IsCorrect:
			return FeedbackCorrect, "Muito bem!"
		case a.CompositeScore >= e.thresholds.PartialFloor:
			return FeedbackPartial, "Quase lá! Tenta outra vez!"
		default:
			return FeedbackIncorrect, "Vamos tentar de novo!"
		}
	case ModeSpelling:
		switch {
		case a.ContentSimilarity >= 80:
			return FeedbackCorrect, "Muito bem! Soletrado corretamente!"
		case a.ContentSimilarity >= 50:
			return FeedbackPartial, "Quase! Algumas letras estão certas."
		default:
			return FeedbackIncorrect, "Vamos tentar de novo!"
		}
	default:
		ft := FeedbackIncorrect
		if r.IsCorrect {
			ft = FeedbackCorrect
		} else if a.CompositeScore >= e.thresholds.PartialFloor {
			ft = FeedbackPartial
		}
		return ft, ratingMessage(r.Rating, a)
	}
}

// ratingMessage is the generic catalogue keyed on the derived rating, with
// diagnostic variants chosen from the analysis signals.
func ratingMessage(rating int, a similarity.Analysis) string {
	switch rating {
	case 4:
		return "Excelente! Resposta quase perfeita."
	case 3:
		if a.ExactSimilarity < 85 {
			return "Muito bem! Atenção a pequenos detalhes."
		}
		return "Muito bem! Resposta correta."
	case 2:
		switch {
		case a.LengthRatio < 0.6:
			return "Resposta incompleta. Tenta incluir mais."
		case a.KeywordCoverage < 60:
			return "Faltam alguns conceitos. Revê o conteúdo."
		default:
			return "Resposta parcial. Continua a praticar."
		}
	default:
		if a.LengthRatio < 0.3 {
			return "Resposta muito incompleta."
		}
		return "Resposta incorreta. Estuda novamente."
	}
}

// NoAudio is the terminal result when the quality gate found no voice in
// the clip.
func NoAudio(mode Mode) Result {
	msg := "Não consigo ouvir nada. Fala mais perto do microfone!"
	if mode == ModeSpelling {
		msg = "Não consigo ouvir. Fala mais alto!"
	}
	return Result{Rating: 1, FeedbackType: FeedbackNoAudio, FeedbackMessage: msg}
}

// STTFailed is the terminal result when transcription produced no text.
func STTFailed(mode Mode) Result {
	msg := "Não consegui entender. Tenta falar mais devagar!"
	if mode == ModeSpelling {
		msg = "Não consegui entender. Soletra mais devagar!"
	}
	return Result{Rating: 1, FeedbackType: FeedbackSTTFailed, FeedbackMessage: msg}
}
