// Package observe provides application-wide observability primitives for
// dualscribe: OpenTelemetry metrics, distributed tracing, structured logging,
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

// meterName is the instrumentation scope name used for all dualscribe metrics.
const meterName = "github.com/dualscribe/dualscribe"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TranscriptionDuration tracks per-provider STT latency.
	TranscriptionDuration metric.Float64Histogram

	// ArbitrationDuration tracks LLM arbitration latency.
	ArbitrationDuration metric.Float64Histogram

	// --- Dictation outcome instruments ---

	// ChangeScorePercent tracks the distribution of change scores between
	// the two transcripts (0–100).
	ChangeScorePercent metric.Int64Histogram

	// MergeMarkers counts disagreement markers emitted by the merger.
	MergeMarkers metric.Int64Counter

	// HomophoneMarkers counts markers diagnosed as likely homophones.
	HomophoneMarkers metric.Int64Counter

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ArbitrationFallbacks counts arbitrations that degraded to
	// transcript A because the LLM reply was unusable.
	ArbitrationFallbacks metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveDictations tracks the number of dictations currently in flight.
	ActiveDictations metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Batch
// transcription of a dictation can take well over a minute.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// scoreBuckets defines histogram bucket boundaries for the change score,
// aligned with the green/yellow/red bands.
var scoreBuckets = []float64{
	0, 5, 15, 25, 35, 60, 100,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranscriptionDuration, err = m.Float64Histogram("dualscribe.transcription.duration",
		metric.WithDescription("Latency of speech-to-text transcription by provider."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ArbitrationDuration, err = m.Float64Histogram("dualscribe.arbitration.duration",
		metric.WithDescription("Latency of LLM arbitration."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ChangeScorePercent, err = m.Int64Histogram("dualscribe.change_score.percent",
		metric.WithDescription("Change score between the two transcripts (0-100)."),
		metric.WithUnit("%"),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.MergeMarkers, err = m.Int64Counter("dualscribe.merge.markers",
		metric.WithDescription("Total disagreement markers emitted by the merger."),
	); err != nil {
		return nil, err
	}
	if met.HomophoneMarkers, err = m.Int64Counter("dualscribe.merge.homophone_markers",
		metric.WithDescription("Total markers diagnosed as likely homophones."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("dualscribe.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ArbitrationFallbacks, err = m.Int64Counter("dualscribe.arbitration.fallbacks",
		metric.WithDescription("Total arbitrations that fell back to transcript A."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("dualscribe.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveDictations, err = m.Int64UpDownCounter("dualscribe.active_dictations",
		metric.WithDescription("Number of dictations currently in flight."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("dualscribe.http.request.duration",
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

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordTranscription records one STT call: its latency histogram sample and
// the request counter with the outcome status.
func (m *Metrics) RecordTranscription(ctx context.Context, provider string, seconds float64, status string) {
	m.TranscriptionDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
	m.RecordProviderRequest(ctx, provider, "stt", status)
}

// RecordMergeOutcome records the marker counts of one merge.
func (m *Metrics) RecordMergeOutcome(ctx context.Context, markers, homophones int) {
	if markers > 0 {
		m.MergeMarkers.Add(ctx, int64(markers))
	}
	if homophones > 0 {
		m.HomophoneMarkers.Add(ctx, int64(homophones))
	}
}
