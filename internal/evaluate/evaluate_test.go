package evaluate_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/fonoletra/fonoletra/internal/evaluate"
	"github.com/fonoletra/fonoletra/internal/observe"
	"github.com/fonoletra/fonoletra/internal/rating"
	"github.com/fonoletra/fonoletra/internal/review"
	reviewmock "github.com/fonoletra/fonoletra/internal/review/mock"
	"github.com/fonoletra/fonoletra/internal/similarity"
	"github.com/fonoletra/fonoletra/internal/ttscache"
	"github.com/fonoletra/fonoletra/pkg/audio"
	"github.com/fonoletra/fonoletra/pkg/provider/stt"
	sttmock "github.com/fonoletra/fonoletra/pkg/provider/stt/mock"
	ttsmock "github.com/fonoletra/fonoletra/pkg/provider/tts/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	return m
}

func newOrchestrator(t *testing.T, sttP stt.Provider, sub review.Submitter, opts ...evaluate.Option) *evaluate.Orchestrator {
	t.Helper()
	opts = append(opts, evaluate.WithMetrics(testMetrics(t)))
	return evaluate.New(sttP, similarity.NewScorer(), rating.NewEngine(rating.Thresholds{}), sub, opts...)
}

// voicedClip returns a WAV of a 440 Hz tone, loud enough to pass the
// acoustic gate.
func voicedClip(t *testing.T) *audio.Clip {
	t.Helper()
	const (
		rate = 16000
		secs = 1
	)
	data := make([]byte, rate*secs*2)
	for i := 0; i < rate*secs; i++ {
		sample := int16(0.5 * 32767 * math.Sin(2*math.Pi*440*float64(i)/rate))
		data[2*i] = byte(uint16(sample))
		data[2*i+1] = byte(uint16(sample) >> 8)
	}
	buf := audio.Buffer{Data: data, SampleRate: rate, Channels: 1}
	return &audio.Clip{Data: audio.EncodeWAV(buf), Format: "wav"}
}

// silentClip returns a WAV of pure silence, which the gate rejects.
func silentClip(t *testing.T) *audio.Clip {
	t.Helper()
	buf := audio.Buffer{Data: make([]byte, 16000*2), SampleRate: 16000, Channels: 1}
	return &audio.Clip{Data: audio.EncodeWAV(buf), Format: "wav"}
}

// ── typed-text mode ──────────────────────────────────────────────────────────

func TestEvaluate_TextMode(t *testing.T) {
	sub := &reviewmock.Submitter{}
	o := newOrchestrator(t, &sttmock.Provider{}, sub)

	res, err := o.Evaluate(t.Context(), evaluate.Request{
		Mode:          rating.ModeText,
		FlashcardID:   "card-1",
		Expected:      "bola",
		Text:          "bola",
		TimeSpent:     7,
		Authorization: "Bearer tok",
	})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if !res.IsCorrect || res.Rating != 4 {
		t.Errorf("result = correct=%v rating=%d, want correct rating 4", res.IsCorrect, res.Rating)
	}
	if res.SimilarityScore != 100 || res.CompositeScore != 100 {
		t.Errorf("scores = %v/%v, want 100/100", res.SimilarityScore, res.CompositeScore)
	}
	if res.FeedbackType != rating.FeedbackCorrect {
		t.Errorf("FeedbackType = %q, want correct", res.FeedbackType)
	}
	if res.DetailedAnalysis == nil {
		t.Errorf("DetailedAnalysis missing")
	}
	if res.AcousticAnalysis != nil {
		t.Errorf("AcousticAnalysis present for typed text")
	}

	if sub.CallCount() != 1 {
		t.Fatalf("review submitted %d times, want 1", sub.CallCount())
	}
	call := sub.Calls[0]
	if call.Submission.FlashcardID != "card-1" || call.Submission.Rating != 4 || call.Submission.TimeSpent != 7 {
		t.Errorf("submission = %+v", call.Submission)
	}
	if call.Authorization != "Bearer tok" {
		t.Errorf("authorization = %q, want passthrough", call.Authorization)
	}
}

// ── spoken modes ─────────────────────────────────────────────────────────────

func TestEvaluate_SpeechMode(t *testing.T) {
	sttP := &sttmock.Provider{Result: stt.Transcript{
		Text:  "bola",
		Words: []stt.Word{{Word: "bola", Probability: 0.9}},
	}}
	sub := &reviewmock.Submitter{}
	o := newOrchestrator(t, sttP, sub)

	res, err := o.Evaluate(t.Context(), evaluate.Request{
		Mode:        rating.ModeSpeech,
		FlashcardID: "card-1",
		Expected:    "bola",
		Audio:       voicedClip(t),
	})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if res.Transcription != "bola" {
		t.Errorf("Transcription = %q, want bola", res.Transcription)
	}
	if res.Rating != 4 || !res.IsCorrect {
		t.Errorf("rating = %d correct=%v, want 4/true", res.Rating, res.IsCorrect)
	}
	if res.ConfidenceScore != 0.9 {
		t.Errorf("ConfidenceScore = %v, want 0.9", res.ConfidenceScore)
	}
	if res.AcousticAnalysis == nil || !res.AcousticAnalysis.HasVoice {
		t.Errorf("AcousticAnalysis = %+v, want voiced profile", res.AcousticAnalysis)
	}

	if len(sttP.Calls) != 1 {
		t.Fatalf("stt called %d times, want 1", len(sttP.Calls))
	}
	if sttP.Calls[0].Language != "pt" {
		t.Errorf("language = %q, want default pt", sttP.Calls[0].Language)
	}
	if f := sttP.Calls[0].Buffer.Format(); f.SampleRate != 16000 || f.Channels != 1 {
		t.Errorf("stt saw %+v, want enhanced 16 kHz mono", f)
	}
}

func TestEvaluate_NoVoiceSkipsTranscription(t *testing.T) {
	sttP := &sttmock.Provider{}
	sub := &reviewmock.Submitter{}
	o := newOrchestrator(t, sttP, sub)

	res, err := o.Evaluate(t.Context(), evaluate.Request{
		Mode:        rating.ModePhoneme,
		FlashcardID: "card-1",
		Expected:    "pa",
		Audio:       silentClip(t),
	})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if res.FeedbackType != rating.FeedbackNoAudio {
		t.Errorf("FeedbackType = %q, want no_audio", res.FeedbackType)
	}
	if res.Rating != 1 || res.IsCorrect {
		t.Errorf("rating = %d correct=%v, want 1/false", res.Rating, res.IsCorrect)
	}
	if res.Transcription != "" {
		t.Errorf("Transcription = %q, want empty", res.Transcription)
	}
	if len(sttP.Calls) != 0 {
		t.Errorf("stt called %d times, want 0", len(sttP.Calls))
	}
	if sub.CallCount() != 1 {
		t.Errorf("review submitted %d times, want 1 (terminal states still report)", sub.CallCount())
	}
}

func TestEvaluate_TranscriptionFailureFoldsToSTTFailed(t *testing.T) {
	tests := []struct {
		name string
		stt  *sttmock.Provider
	}{
		{"provider error", &sttmock.Provider{Err: errors.New("server down")}},
		{"empty transcript", &sttmock.Provider{Result: stt.Transcript{Text: "  "}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &reviewmock.Submitter{}
			o := newOrchestrator(t, tt.stt, sub)

			res, err := o.Evaluate(t.Context(), evaluate.Request{
				Mode:        rating.ModeSpeech,
				FlashcardID: "card-1",
				Expected:    "bola",
				Audio:       voicedClip(t),
			})
			if err != nil {
				t.Fatalf("Evaluate() error = %v, want terminal state instead", err)
			}
			if res.FeedbackType != rating.FeedbackSTTFailed {
				t.Errorf("FeedbackType = %q, want stt_failed", res.FeedbackType)
			}
			if res.Rating != 1 {
				t.Errorf("Rating = %d, want 1", res.Rating)
			}
			if sub.CallCount() != 1 {
				t.Errorf("review submitted %d times, want 1", sub.CallCount())
			}
		})
	}
}

func TestEvaluate_UndecodableAudioIsNoAudio(t *testing.T) {
	sub := &reviewmock.Submitter{}
	o := newOrchestrator(t, &sttmock.Provider{}, sub)

	res, err := o.Evaluate(t.Context(), evaluate.Request{
		Mode:        rating.ModeSpeech,
		FlashcardID: "card-1",
		Expected:    "bola",
		Audio:       &audio.Clip{Data: []byte("RIFFgarbage"), Format: "wav"},
	})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if res.FeedbackType != rating.FeedbackNoAudio {
		t.Errorf("FeedbackType = %q, want no_audio for undecodable input", res.FeedbackType)
	}
	if res.AcousticAnalysis == nil || res.AcousticAnalysis.Err == "" {
		t.Errorf("AcousticAnalysis = %+v, want decode error recorded", res.AcousticAnalysis)
	}
}

// ── spelling expansion ───────────────────────────────────────────────────────

func TestEvaluate_SpellingExpandsWholeWord(t *testing.T) {
	sttP := &sttmock.Provider{Result: stt.Transcript{Text: "bola"}}
	sub := &reviewmock.Submitter{}
	o := newOrchestrator(t, sttP, sub)

	res, err := o.Evaluate(t.Context(), evaluate.Request{
		Mode:        rating.ModeSpelling,
		FlashcardID: "card-1",
		Expected:    "b o l a",
		Audio:       voicedClip(t),
	})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if res.Transcription != "bola" {
		t.Errorf("Transcription = %q, want the raw transcript", res.Transcription)
	}
	if res.NormalizedTranscription != "b o l a" {
		t.Errorf("NormalizedTranscription = %q, want letters separated", res.NormalizedTranscription)
	}
	if res.SimilarityScore != 100 {
		t.Errorf("SimilarityScore = %v, want 100 after expansion", res.SimilarityScore)
	}
	if res.FeedbackType != rating.FeedbackCorrect {
		t.Errorf("FeedbackType = %q, want correct", res.FeedbackType)
	}
}

// ── review submission failure ────────────────────────────────────────────────

func TestEvaluate_ReviewFailurePropagates(t *testing.T) {
	sub := &reviewmock.Submitter{Err: review.ErrUnavailable}
	o := newOrchestrator(t, &sttmock.Provider{}, sub)

	_, err := o.Evaluate(t.Context(), evaluate.Request{
		Mode:        rating.ModeText,
		FlashcardID: "card-1",
		Expected:    "bola",
		Text:        "bola",
	})
	if !errors.Is(err, review.ErrUnavailable) {
		t.Errorf("Evaluate() error = %v, want ErrUnavailable", err)
	}
}

// ── feedback audio ───────────────────────────────────────────────────────────

func TestEvaluate_FeedbackAudioURL(t *testing.T) {
	cache, err := ttscache.New(t.TempDir(), &ttsmock.Provider{})
	if err != nil {
		t.Fatalf("ttscache.New() error = %v", err)
	}

	sttP := &sttmock.Provider{Result: stt.Transcript{Text: "pa"}}
	o := newOrchestrator(t, sttP, &reviewmock.Submitter{}, evaluate.WithFeedbackAudio(cache))

	res, err := o.Evaluate(t.Context(), evaluate.Request{
		Mode:        rating.ModePhoneme,
		FlashcardID: "card-1",
		Expected:    "pa",
		Audio:       voicedClip(t),
	})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if res.FeedbackAudioURL == "" {
		t.Fatalf("FeedbackAudioURL empty with a TTS cache configured")
	}
	if !strings.HasPrefix(res.FeedbackAudioURL, "/audio/") {
		t.Errorf("FeedbackAudioURL = %q, want /audio/ prefix", res.FeedbackAudioURL)
	}
}

// ── invalid requests ─────────────────────────────────────────────────────────

func TestEvaluate_InvalidRequests(t *testing.T) {
	o := newOrchestrator(t, &sttmock.Provider{}, &reviewmock.Submitter{})

	if _, err := o.Evaluate(t.Context(), evaluate.Request{Mode: "karaoke"}); err == nil {
		t.Errorf("unknown mode accepted")
	}
	if _, err := o.Evaluate(t.Context(), evaluate.Request{Mode: rating.ModeSpeech, Expected: "x"}); err == nil {
		t.Errorf("spoken mode without audio accepted")
	}
}
