package rating_test

import (
	"strings"
	"testing"

	"github.com/fonoletra/fonoletra/internal/rating"
	"github.com/fonoletra/fonoletra/internal/similarity"
)

// ── rating derivation ────────────────────────────────────────────────────────

func TestRate_RatingTable(t *testing.T) {
	e := rating.NewEngine(rating.Thresholds{})

	tests := []struct {
		name string
		a    similarity.Analysis
		want int
	}{
		{
			name: "phonetic confirmation overrides mediocre composite",
			a:    similarity.Analysis{G2PUsed: true, PhoneticSimilarity: 92, CompositeScore: 60, ContentSimilarity: 55},
			want: 4,
		},
		{
			name: "high composite and content",
			a:    similarity.Analysis{CompositeScore: 95, ContentSimilarity: 90},
			want: 4,
		},
		{
			name: "high composite but low content stays below 4",
			a:    similarity.Analysis{CompositeScore: 95, ContentSimilarity: 80, LengthRatio: 1},
			want: 3,
		},
		{
			name: "good composite",
			a:    similarity.Analysis{CompositeScore: 80, ContentSimilarity: 75},
			want: 3,
		},
		{
			name: "mid composite",
			a:    similarity.Analysis{CompositeScore: 55, ContentSimilarity: 40},
			want: 2,
		},
		{
			name: "low composite rescued by content and length",
			a:    similarity.Analysis{CompositeScore: 45, ContentSimilarity: 65, LengthRatio: 0.7},
			want: 2,
		},
		{
			name: "poor response",
			a:    similarity.Analysis{CompositeScore: 30, ContentSimilarity: 20, LengthRatio: 0.4},
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Rate(rating.ModeSpeech, tt.a, false, 0)
			if got.Rating != tt.want {
				t.Errorf("Rating = %d, want %d", got.Rating, tt.want)
			}
		})
	}
}

// ── correctness decision ─────────────────────────────────────────────────────

func TestRate_IsCorrectThreshold(t *testing.T) {
	e := rating.NewEngine(rating.Thresholds{})

	a := similarity.Analysis{CompositeScore: 76, ContentSimilarity: 76}
	if r := e.Rate(rating.ModeSpeech, a, false, 0); !r.IsCorrect {
		t.Errorf("IsCorrect = false at composite 76 with default threshold 75")
	}

	a.CompositeScore = 74
	if r := e.Rate(rating.ModeSpeech, a, false, 0); r.IsCorrect {
		t.Errorf("IsCorrect = true at composite 74 with default threshold 75")
	}
}

func TestRate_ThresholdOverride(t *testing.T) {
	e := rating.NewEngine(rating.Thresholds{})

	a := similarity.Analysis{CompositeScore: 60, ContentSimilarity: 60}
	if r := e.Rate(rating.ModeSpeech, a, false, 50); !r.IsCorrect {
		t.Errorf("IsCorrect = false with per-request threshold 50")
	}
	if r := e.Rate(rating.ModeSpeech, a, false, 90); r.IsCorrect {
		t.Errorf("IsCorrect = true with per-request threshold 90")
	}
}

func TestRate_ShortPhonemeDisjunction(t *testing.T) {
	e := rating.NewEngine(rating.Thresholds{})

	tests := []struct {
		name string
		a    similarity.Analysis
		want bool
	}{
		{"phonetic match alone", similarity.Analysis{PhoneticMatch: true}, true},
		{"phoneme similarity alone", similarity.Analysis{G2PUsed: true, PhoneticSimilarity: 80}, true},
		{"jaro alone", similarity.Analysis{JaroWinklerSimilarity: 72}, true},
		{"content alone", similarity.Analysis{ContentSimilarity: 65}, true},
		{"all signals weak", similarity.Analysis{JaroWinklerSimilarity: 50, ContentSimilarity: 40, CompositeScore: 80}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Rate(rating.ModePhoneme, tt.a, true, 0)
			if got.IsCorrect != tt.want {
				t.Errorf("IsCorrect = %v, want %v", got.IsCorrect, tt.want)
			}
		})
	}
}

// ── feedback selection ───────────────────────────────────────────────────────

func TestRate_FeedbackTypes(t *testing.T) {
	e := rating.NewEngine(rating.Thresholds{})

	r := e.Rate(rating.ModePhoneme, similarity.Analysis{PhoneticMatch: true, CompositeScore: 100, ContentSimilarity: 100}, true, 0)
	if r.FeedbackType != rating.FeedbackCorrect {
		t.Errorf("FeedbackType = %q, want correct", r.FeedbackType)
	}

	r = e.Rate(rating.ModePhoneme, similarity.Analysis{CompositeScore: 45}, true, 0)
	if r.FeedbackType != rating.FeedbackPartial {
		t.Errorf("FeedbackType = %q, want partial at composite 45", r.FeedbackType)
	}

	r = e.Rate(rating.ModePhoneme, similarity.Analysis{CompositeScore: 20}, true, 0)
	if r.FeedbackType != rating.FeedbackIncorrect {
		t.Errorf("FeedbackType = %q, want incorrect at composite 20", r.FeedbackType)
	}
}

func TestRate_SpellingFeedbackKeyedOnContent(t *testing.T) {
	e := rating.NewEngine(rating.Thresholds{})

	r := e.Rate(rating.ModeSpelling, similarity.Analysis{ContentSimilarity: 85, CompositeScore: 80}, false, 0)
	if r.FeedbackType != rating.FeedbackCorrect {
		t.Errorf("FeedbackType = %q, want correct at content 85", r.FeedbackType)
	}

	r = e.Rate(rating.ModeSpelling, similarity.Analysis{ContentSimilarity: 60, CompositeScore: 50}, false, 0)
	if r.FeedbackType != rating.FeedbackPartial {
		t.Errorf("FeedbackType = %q, want partial at content 60", r.FeedbackType)
	}

	r = e.Rate(rating.ModeSpelling, similarity.Analysis{ContentSimilarity: 30, CompositeScore: 20}, false, 0)
	if r.FeedbackType != rating.FeedbackIncorrect {
		t.Errorf("FeedbackType = %q, want incorrect at content 30", r.FeedbackType)
	}
}

func TestRate_SpeechMessages(t *testing.T) {
	e := rating.NewEngine(rating.Thresholds{})

	// Rating 3 with a literal mismatch mentions the details.
	r := e.Rate(rating.ModeSpeech, similarity.Analysis{CompositeScore: 80, ContentSimilarity: 75, ExactSimilarity: 60}, false, 0)
	if r.Rating != 3 {
		t.Fatalf("Rating = %d, want 3", r.Rating)
	}
	if !strings.Contains(r.FeedbackMessage, "detalhes") {
		t.Errorf("FeedbackMessage = %q, want the small-details variant", r.FeedbackMessage)
	}

	// Rating 2 with a short answer asks for more.
	r = e.Rate(rating.ModeSpeech, similarity.Analysis{CompositeScore: 55, LengthRatio: 0.5}, false, 0)
	if !strings.Contains(r.FeedbackMessage, "incompleta") {
		t.Errorf("FeedbackMessage = %q, want the incomplete variant", r.FeedbackMessage)
	}

	// Rating 1 with almost nothing said.
	r = e.Rate(rating.ModeSpeech, similarity.Analysis{CompositeScore: 10, LengthRatio: 0.2}, false, 0)
	if !strings.Contains(r.FeedbackMessage, "muito incompleta") {
		t.Errorf("FeedbackMessage = %q, want the very-incomplete variant", r.FeedbackMessage)
	}
}

// ── terminal states ──────────────────────────────────────────────────────────

func TestNoAudio(t *testing.T) {
	r := rating.NoAudio(rating.ModePhoneme)
	if r.Rating != 1 || r.FeedbackType != rating.FeedbackNoAudio {
		t.Errorf("NoAudio = %+v, want rating 1 / no_audio", r)
	}
	if r.IsCorrect {
		t.Errorf("IsCorrect = true for no_audio")
	}
}

func TestSTTFailed(t *testing.T) {
	r := rating.STTFailed(rating.ModeSpelling)
	if r.Rating != 1 || r.FeedbackType != rating.FeedbackSTTFailed {
		t.Errorf("STTFailed = %+v, want rating 1 / stt_failed", r)
	}
	if !strings.Contains(r.FeedbackMessage, "Soletra") {
		t.Errorf("FeedbackMessage = %q, want the spelling variant", r.FeedbackMessage)
	}
}
