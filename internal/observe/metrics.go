// Package observe provides application-wide observability primitives for
// Parley: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all Parley metrics.
const meterName = "github.com/parleyio/parley"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// SynthesisDuration tracks text-to-speech synthesis latency.
	SynthesisDuration metric.Float64Histogram

	// PlaybackDuration tracks audio playback time per utterance.
	PlaybackDuration metric.Float64Histogram

	// TranscriptionDuration tracks speech-to-text transcription latency.
	TranscriptionDuration metric.Float64Histogram

	// CaptureDuration tracks recorded utterance length from speech start to
	// stop, including VAD auto-stop.
	CaptureDuration metric.Float64Histogram

	// --- Counters ---

	// Utterances counts processed speech queue utterances. Use with attributes:
	//   attribute.String("backend", ...), attribute.String("outcome", ...)
	// where outcome is one of "played", "cancelled", "failed".
	Utterances metric.Int64Counter

	// FallbackAttempts counts failovers from one backend to the next. Use
	// with attributes:
	//   attribute.String("chain", ...), attribute.String("backend", ...)
	FallbackAttempts metric.Int64Counter

	// DiscardedFrames counts capture frames dropped during the echo guard
	// window while the process (or a sibling) is speaking.
	DiscardedFrames metric.Int64Counter

	// --- Error counters ---

	// BackendErrors counts synthesis and transcription backend errors. Use
	// with attributes:
	//   attribute.String("backend", ...), attribute.String("kind", ...)
	BackendErrors metric.Int64Counter

	// --- Gauges ---

	// QueueDepth tracks the number of utterances waiting in the speech queue.
	QueueDepth metric.Int64UpDownCounter

	// CaptureActive tracks whether a capture session is live (0 or 1).
	CaptureActive metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
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
	if met.SynthesisDuration, err = m.Float64Histogram("parley.synthesis.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PlaybackDuration, err = m.Float64Histogram("parley.playback.duration",
		metric.WithDescription("Audio playback time per utterance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("parley.transcription.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CaptureDuration, err = m.Float64Histogram("parley.capture.duration",
		metric.WithDescription("Recorded utterance length from speech start to stop."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Utterances, err = m.Int64Counter("parley.utterances",
		metric.WithDescription("Total speech queue utterances by backend and outcome."),
	); err != nil {
		return nil, err
	}
	if met.FallbackAttempts, err = m.Int64Counter("parley.fallback.attempts",
		metric.WithDescription("Total failovers from one backend to the next by chain and backend."),
	); err != nil {
		return nil, err
	}
	if met.DiscardedFrames, err = m.Int64Counter("parley.capture.discarded_frames",
		metric.WithDescription("Capture frames dropped during the echo guard window."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.BackendErrors, err = m.Int64Counter("parley.backend.errors",
		metric.WithDescription("Total backend errors by backend and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.QueueDepth, err = m.Int64UpDownCounter("parley.queue.depth",
		metric.WithDescription("Number of utterances waiting in the speech queue."),
	); err != nil {
		return nil, err
	}
	if met.CaptureActive, err = m.Int64UpDownCounter("parley.capture.active",
		metric.WithDescription("Whether a capture session is live."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("parley.http.request.duration",
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// RecordUtterance is a convenience method that records an utterance counter
// increment with the standard attribute set.
func (m *Metrics) RecordUtterance(ctx context.Context, backend, outcome string) {
	m.Utterances.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordFallback is a convenience method that records a fallback attempt
// counter increment.
func (m *Metrics) RecordFallback(ctx context.Context, chain, backend string) {
	m.FallbackAttempts.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("chain", chain),
			attribute.String("backend", backend),
		),
	)
}

// RecordBackendError is a convenience method that records a backend error
// counter increment.
func (m *Metrics) RecordBackendError(ctx context.Context, backend, kind string) {
	m.BackendErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("kind", kind),
		),
	)
}
