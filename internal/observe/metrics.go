// Package observe provides application-wide observability primitives for
// Fonoletra: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Fonoletra
// metrics.
const meterName = "github.com/fonoletra/fonoletra"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// EvaluationDuration tracks end-to-end evaluation latency. Use with
	// attribute: attribute.String("mode", ...)
	EvaluationDuration metric.Float64Histogram

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// EnhanceDuration tracks audio enhancement latency.
	EnhanceDuration metric.Float64Histogram

	// --- Counters ---

	// Evaluations counts completed evaluations. Use with attributes:
	//   attribute.String("mode", ...), attribute.String("feedback_type", ...)
	Evaluations metric.Int64Counter

	// ReviewSubmissions counts review submissions to the scheduling
	// backend. Use with attribute: attribute.String("status", ...)
	ReviewSubmissions metric.Int64Counter

	// CacheRequests counts TTS cache lookups. Use with attribute:
	//   attribute.String("result", "hit"|"miss")
	CacheRequests metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveEvaluations tracks the number of evaluations in flight.
	ActiveEvaluations metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// audio-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.EvaluationDuration, err = m.Float64Histogram("fonoletra.evaluation.duration",
		metric.WithDescription("End-to-end evaluation latency by mode."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.STTDuration, err = m.Float64Histogram("fonoletra.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("fonoletra.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EnhanceDuration, err = m.Float64Histogram("fonoletra.enhance.duration",
		metric.WithDescription("Latency of audio enhancement."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Evaluations, err = m.Int64Counter("fonoletra.evaluations",
		metric.WithDescription("Completed evaluations by mode and feedback type."),
	); err != nil {
		return nil, err
	}
	if met.ReviewSubmissions, err = m.Int64Counter("fonoletra.review.submissions",
		metric.WithDescription("Review submissions to the scheduling backend by status."),
	); err != nil {
		return nil, err
	}
	if met.CacheRequests, err = m.Int64Counter("fonoletra.tts_cache.requests",
		metric.WithDescription("TTS cache lookups by result."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("fonoletra.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveEvaluations, err = m.Int64UpDownCounter("fonoletra.active_evaluations",
		metric.WithDescription("Number of evaluations currently in flight."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("fonoletra.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordEvaluation records one completed evaluation with the standard
// attribute set.
func (m *Metrics) RecordEvaluation(ctx context.Context, mode, feedbackType string) {
	m.Evaluations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("mode", mode),
			attribute.String("feedback_type", feedbackType),
		),
	)
}

// RecordReviewSubmission records one review submission outcome.
func (m *Metrics) RecordReviewSubmission(ctx context.Context, status string) {
	m.ReviewSubmissions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordCacheRequest records one TTS cache lookup as a hit or a miss.
func (m *Metrics) RecordCacheRequest(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheRequests.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
