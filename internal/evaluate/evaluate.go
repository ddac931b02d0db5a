// Package evaluate orchestrates one response evaluation end to end: audio
// enhancement, acoustic quality gating, transcription, similarity scoring,
// rating, and review submission.
//
// Each evaluation is request-scoped and stateless; an [Orchestrator] is
// safe for concurrent use. The per-request state machine is
//
//	received → (enhance → quality-gate) → transcribe → normalize →
//	score → rate → report
//
// with early exits to the no_audio and stt_failed terminal states. Typed
// text skips straight to scoring. Every terminal state, early or not,
// reports its rating to the review backend; a failed report is the one
// collaborator failure that surfaces as an error, because losing a review
// update silently would corrupt the spaced-repetition schedule.
package evaluate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fonoletra/fonoletra/internal/observe"
	"github.com/fonoletra/fonoletra/internal/rating"
	"github.com/fonoletra/fonoletra/internal/review"
	"github.com/fonoletra/fonoletra/internal/similarity"
	"github.com/fonoletra/fonoletra/internal/textnorm"
	"github.com/fonoletra/fonoletra/internal/ttscache"
	"github.com/fonoletra/fonoletra/pkg/audio"
	"github.com/fonoletra/fonoletra/pkg/audio/acoustic"
	"github.com/fonoletra/fonoletra/pkg/provider/stt"
	"github.com/fonoletra/fonoletra/pkg/provider/tts"
)

// defaultLanguage is the evaluation language when a request does not name
// one.
const defaultLanguage = "pt"

// Request carries one evaluation. Exactly one of Audio or Text is
// consulted, depending on Mode.
type Request struct {
	Mode        rating.Mode
	FlashcardID string
	// SubID addresses a sub-item of a compound flashcard; may be empty.
	SubID string
	// Expected is the reference answer.
	Expected string
	// Language is a BCP-47 code; defaults to Portuguese.
	Language string
	// Threshold, when positive, overrides the configured correctness
	// threshold for this request only.
	Threshold float64
	// TimeSpent is whole seconds the learner spent, reported to the
	// scheduler verbatim.
	TimeSpent int
	// Authorization is the caller's token, passed through to the review
	// backend untouched.
	Authorization string

	// Audio is the learner's recording for the spoken modes.
	Audio *audio.Clip
	// Text is the learner's typed response for [rating.ModeText].
	Text string
}

// Result is the terminal evaluation outcome. It is never mutated after
// construction.
type Result struct {
	Transcription string `json:"transcription"`
	// NormalizedTranscription is the form the comparison actually ran on
	// when it differs from the raw transcript, e.g. the letter-expanded
	// text in spelling mode.
	NormalizedTranscription string               `json:"normalized_transcription,omitempty"`
	IsCorrect               bool                 `json:"is_correct"`
	SimilarityScore         float64              `json:"similarity_score"`
	CompositeScore          float64              `json:"composite_score"`
	ConfidenceScore         float64              `json:"confidence_score"`
	ExpectedText            string               `json:"expected_text"`
	Rating                  int                  `json:"rating"`
	FeedbackType            rating.FeedbackType  `json:"feedback_type"`
	FeedbackMessage         string               `json:"feedback_message"`
	FeedbackAudioURL        string               `json:"feedback_audio_url,omitempty"`
	DetailedAnalysis        *similarity.Analysis `json:"detailed_analysis,omitempty"`
	AcousticAnalysis        *acoustic.Profile    `json:"acoustic_analysis,omitempty"`
}

// Option is a functional option for configuring an [Orchestrator].
type Option func(*Orchestrator)

// WithFeedbackAudio equips the orchestrator with a TTS cache for spoken
// feedback. Without one, results carry no feedback audio URL.
func WithFeedbackAudio(c *ttscache.Cache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithEnhancer replaces the default audio enhancer.
func WithEnhancer(e *audio.Enhancer) Option {
	return func(o *Orchestrator) { o.enhancer = e }
}

// WithMetrics replaces the default metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithDefaultLanguage sets the language applied to requests that do not
// name one. Default Portuguese.
func WithDefaultLanguage(lang string) Option {
	return func(o *Orchestrator) {
		if lang != "" {
			o.language = lang
		}
	}
}

// Orchestrator runs evaluations. Read-only after construction and safe for
// concurrent use.
type Orchestrator struct {
	stt      stt.Provider
	scorer   *similarity.Scorer
	engine   *rating.Engine
	review   review.Submitter
	enhancer *audio.Enhancer
	cache    *ttscache.Cache
	metrics  *observe.Metrics
	language string
}

// New returns an [Orchestrator] over the given collaborators.
func New(sttProvider stt.Provider, scorer *similarity.Scorer, engine *rating.Engine, submitter review.Submitter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		stt:      sttProvider,
		scorer:   scorer,
		engine:   engine,
		review:   submitter,
		enhancer: audio.NewEnhancer(),
		language: defaultLanguage,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// Evaluate runs one request to a terminal state. The returned error is
// non-nil only for invalid input or a failed review submission; every
// audio- or transcription-level shortfall folds into a terminal feedback
// category instead.
func (o *Orchestrator) Evaluate(ctx context.Context, req Request) (Result, error) {
	ctx, span := observe.StartSpan(ctx, "evaluate "+string(req.Mode))
	defer span.End()

	if req.Language == "" {
		req.Language = o.language
	}
	start := time.Now()
	o.metrics.ActiveEvaluations.Add(ctx, 1)
	defer func() {
		o.metrics.ActiveEvaluations.Add(ctx, -1)
		o.metrics.EvaluationDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("mode", string(req.Mode))))
	}()

	var res Result
	var err error
	switch req.Mode {
	case rating.ModeText:
		res, err = o.evaluateText(ctx, req)
	case rating.ModePhoneme, rating.ModeSpelling, rating.ModeSpeech:
		res, err = o.evaluateAudio(ctx, req)
	default:
		return Result{}, fmt.Errorf("unknown evaluation mode %q", req.Mode)
	}
	if err != nil {
		return Result{}, err
	}

	o.metrics.RecordEvaluation(ctx, string(req.Mode), string(res.FeedbackType))
	return res, nil
}

func (o *Orchestrator) evaluateText(ctx context.Context, req Request) (Result, error) {
	analysis := o.scorer.Analyze(ctx, req.Text, req.Expected, false, req.Language)
	rated := o.engine.Rate(req.Mode, analysis, false, req.Threshold)

	res := o.scoredResult(req, req.Text, 0, analysis, rated)
	if err := o.submitReview(ctx, req, rated.Rating); err != nil {
		return Result{}, err
	}
	return res, nil
}

func (o *Orchestrator) evaluateAudio(ctx context.Context, req Request) (Result, error) {
	if req.Audio == nil || len(req.Audio.Data) == 0 {
		return Result{}, fmt.Errorf("mode %s requires audio", req.Mode)
	}

	profile := o.prepare(ctx, req)
	if !profile.HasVoice {
		observe.Logger(ctx).Info("no voice detected",
			"mode", req.Mode, "flashcard_id", req.FlashcardID)
		return o.terminal(ctx, req, rating.NoAudio(req.Mode), &profile.Profile, true)
	}

	transcription := o.transcribe(ctx, req, profile.buffer)
	if strings.TrimSpace(transcription.Text) == "" {
		observe.Logger(ctx).Info("transcription empty",
			"mode", req.Mode, "flashcard_id", req.FlashcardID)
		return o.terminal(ctx, req, rating.STTFailed(req.Mode), &profile.Profile, true)
	}

	raw := strings.TrimSpace(transcription.Text)
	candidate := raw
	if req.Mode == rating.ModeSpelling {
		candidate = expandSpelling(raw)
	}

	usePhonetic := req.Mode == rating.ModePhoneme || req.Mode == rating.ModeSpelling
	analysis := o.scorer.Analyze(ctx, candidate, req.Expected, usePhonetic, req.Language)

	shortTarget := req.Mode == rating.ModePhoneme && similarity.ShortTarget(req.Expected)
	rated := o.engine.Rate(req.Mode, analysis, shortTarget, req.Threshold)

	res := o.scoredResult(req, raw, transcription.Confidence(), analysis, rated)
	if candidate != raw {
		res.NormalizedTranscription = candidate
	}
	res.AcousticAnalysis = &profile.Profile
	res.FeedbackAudioURL = o.feedbackAudio(ctx, req, rated.FeedbackMessage, false)

	if err := o.submitReview(ctx, req, rated.Rating); err != nil {
		return Result{}, err
	}
	return res, nil
}

// gatedProfile pairs the acoustic profile with the enhanced buffer it was
// computed on, so the transcription stage reuses the same audio.
type gatedProfile struct {
	acoustic.Profile
	buffer audio.Buffer
}

// prepare decodes and enhances the clip and runs the acoustic gate. Any
// decode failure yields a voiceless profile so the caller folds it into
// the no_audio terminal state.
func (o *Orchestrator) prepare(ctx context.Context, req Request) gatedProfile {
	buf, err := audio.Decode(ctx, *req.Audio)
	if err != nil {
		observe.Logger(ctx).Warn("audio decode failed", "err", err)
		return gatedProfile{Profile: acoustic.FailedProfile(err)}
	}

	enhanceStart := time.Now()
	enhanced := o.enhancer.Process(buf)
	o.metrics.EnhanceDuration.Record(ctx, time.Since(enhanceStart).Seconds())

	return gatedProfile{Profile: acoustic.Analyze(enhanced), buffer: enhanced}
}

// transcribe calls the STT provider. Failures are logged and fold into an
// empty transcript; there are no retries.
func (o *Orchestrator) transcribe(ctx context.Context, req Request, buf audio.Buffer) stt.Transcript {
	sttStart := time.Now()
	transcript, err := o.stt.Transcribe(ctx, buf, req.Language)
	o.metrics.STTDuration.Record(ctx, time.Since(sttStart).Seconds())
	if err != nil {
		o.metrics.RecordProviderError(ctx, "whisper", "stt")
		observe.Logger(ctx).Warn("transcription failed", "err", err)
		return stt.Transcript{}
	}
	return transcript
}

// terminal finishes a request in an early-exit state: synthesizes spoken
// feedback, reports the fixed rating, and builds the zero-score result.
func (o *Orchestrator) terminal(ctx context.Context, req Request, rated rating.Result, profile *acoustic.Profile, slow bool) (Result, error) {
	res := Result{
		ExpectedText:     req.Expected,
		Rating:           rated.Rating,
		FeedbackType:     rated.FeedbackType,
		FeedbackMessage:  rated.FeedbackMessage,
		FeedbackAudioURL: o.feedbackAudio(ctx, req, rated.FeedbackMessage, slow),
		AcousticAnalysis: profile,
	}
	if err := o.submitReview(ctx, req, rated.Rating); err != nil {
		return Result{}, err
	}
	return res, nil
}

func (o *Orchestrator) scoredResult(req Request, candidate string, confidence float64, analysis similarity.Analysis, rated rating.Result) Result {
	a := analysis
	return Result{
		Transcription:    candidate,
		IsCorrect:        rated.IsCorrect,
		SimilarityScore:  analysis.ContentSimilarity,
		CompositeScore:   analysis.CompositeScore,
		ConfidenceScore:  confidence,
		ExpectedText:     req.Expected,
		Rating:           rated.Rating,
		FeedbackType:     rated.FeedbackType,
		FeedbackMessage:  rated.FeedbackMessage,
		DetailedAnalysis: &a,
	}
}

// feedbackAudio synthesizes the feedback message through the TTS cache.
// Best effort: any failure is logged and the result simply carries no
// audio URL.
func (o *Orchestrator) feedbackAudio(ctx context.Context, req Request, message string, slow bool) string {
	if o.cache == nil || message == "" {
		return ""
	}
	ttsStart := time.Now()
	name, hit, err := o.cache.Get(ctx, tts.Request{Text: message, Language: req.Language, Slow: slow})
	o.metrics.TTSDuration.Record(ctx, time.Since(ttsStart).Seconds())
	if err != nil {
		o.metrics.RecordProviderError(ctx, "coqui", "tts")
		observe.Logger(ctx).Warn("feedback synthesis failed", "err", err)
		return ""
	}
	o.metrics.RecordCacheRequest(ctx, hit)
	return "/audio/" + name
}

func (o *Orchestrator) submitReview(ctx context.Context, req Request, score int) error {
	err := o.review.Submit(ctx, review.Submission{
		FlashcardID: req.FlashcardID,
		SubID:       req.SubID,
		Rating:      score,
		TimeSpent:   req.TimeSpent,
	}, req.Authorization)
	if err != nil {
		o.metrics.RecordReviewSubmission(ctx, "error")
		return fmt.Errorf("submitting review for %s: %w", req.FlashcardID, err)
	}
	o.metrics.RecordReviewSubmission(ctx, "ok")
	return nil
}

// expandSpelling turns a whole word back into a letter sequence so that a
// learner who said the word instead of spelling it is still compared
// letter by letter against the expected sequence.
func expandSpelling(transcript string) string {
	clean := textnorm.Lenient(transcript)
	if clean == "" || strings.ContainsRune(clean, ' ') {
		return clean
	}
	runes := []rune(clean)
	if len(runes) <= 1 {
		return clean
	}
	letters := make([]string, len(runes))
	for i, r := range runes {
		letters[i] = string(r)
	}
	return strings.Join(letters, " ")
}
