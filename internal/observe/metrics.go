// Package observe provides application-wide observability primitives for
// murmur: OpenTelemetry metrics, tracing, structured logging helpers, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all murmur metrics.
const meterName = "github.com/murmur-app/murmur"

// Metrics holds all OpenTelemetry metric instruments for the daemon.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per segment stage ---

	// SegmentDuration tracks the full record→trigger latency of one
	// listening segment. Attribute: variant ("foreground"|"background").
	SegmentDuration metric.Float64Histogram

	// TranscriptionDuration tracks STT round-trip latency.
	TranscriptionDuration metric.Float64Histogram

	// VerificationDuration tracks speaker-verification round-trip latency.
	VerificationDuration metric.Float64Histogram

	// DispatchDuration tracks alert dispatch latency (including retries).
	DispatchDuration metric.Float64Histogram

	// --- Counters ---

	// Segments counts completed segment cycles. Attributes:
	//   variant ("foreground"|"background"),
	//   outcome ("no_match"|"rejected_speaker"|"triggered"|"error"|"skipped")
	Segments metric.Int64Counter

	// Triggers counts fired alerts. Attribute: slot ("redFlag"|"emergency").
	Triggers metric.Int64Counter

	// ServiceErrors counts external service failures. Attributes:
	//   service ("stt"|"speaker"|"dispatch"|"uplink"), kind.
	ServiceErrors metric.Int64Counter

	// --- Gauges ---

	// ListeningActive is 1 while the listening state is Enabled.
	ListeningActive metric.Int64UpDownCounter

	// RecordingActive is 1 while a recording session is live.
	RecordingActive metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks control API request processing time. Use
	// with attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// a pipeline whose segments span several seconds of wall clock.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SegmentDuration, err = m.Float64Histogram("murmur.segment.duration",
		metric.WithDescription("Full duration of one listening segment cycle."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("murmur.transcription.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.VerificationDuration, err = m.Float64Histogram("murmur.verification.duration",
		metric.WithDescription("Latency of speaker verification."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DispatchDuration, err = m.Float64Histogram("murmur.dispatch.duration",
		metric.WithDescription("Latency of alert dispatch, retries included."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Segments, err = m.Int64Counter("murmur.segments",
		metric.WithDescription("Completed listening segment cycles by variant and outcome."),
	); err != nil {
		return nil, err
	}
	if met.Triggers, err = m.Int64Counter("murmur.triggers",
		metric.WithDescription("Fired safe-word alerts by slot."),
	); err != nil {
		return nil, err
	}
	if met.ServiceErrors, err = m.Int64Counter("murmur.service.errors",
		metric.WithDescription("External service failures by service and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ListeningActive, err = m.Int64UpDownCounter("murmur.listening.active",
		metric.WithDescription("1 while active listening is enabled."),
	); err != nil {
		return nil, err
	}
	if met.RecordingActive, err = m.Int64UpDownCounter("murmur.recording.active",
		metric.WithDescription("1 while a recording session is live."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("murmur.http.request.duration",
		metric.WithDescription("Control API request latency by method and path."),
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

// RecordServiceError records an external service failure with the standard
// attribute set.
func (m *Metrics) RecordServiceError(ctx context.Context, service, kind string) {
	m.ServiceErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("service", service),
			attribute.String("kind", kind),
		),
	)
}

// RecordSegment records a completed segment cycle with its variant and
// outcome.
func (m *Metrics) RecordSegment(ctx context.Context, variant, outcome string) {
	m.Segments.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("variant", variant),
			attribute.String("outcome", outcome),
		),
	)
}
