// Package observe provides application-wide observability primitives for the
// pronunciation scoring service: OpenTelemetry metrics, distributed tracing,
// structured logging, and HTTP middleware that ties them together.
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

// meterName is the instrumentation scope name used for all pronunciation
// scoring metrics.
const meterName = "github.com/speechlab/pronounce"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage (spec §5) ---

	// DecodeDuration tracks CTC decode latency: acoustic-model inference plus
	// greedy-collapse, per audio window.
	DecodeDuration metric.Float64Histogram

	// AlignDuration tracks the weighted edit-distance alignment step's latency.
	AlignDuration metric.Float64Histogram

	// ScoreDuration tracks the latency of one full evaluation call
	// (reference generation, decoding, filtering, alignment, scoring and
	// dialect arbitration), as recorded by the streaming ingest endpoint.
	ScoreDuration metric.Float64Histogram

	// NarrationDuration tracks feedback-narrator (LLM) call latency.
	NarrationDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// DialectPicks counts how often each dialect's reference wins the
	// per-word arbitration (§4.H). Use with attribute:
	//   attribute.String("dialect", ...)
	DialectPicks metric.Int64Counter

	// ReferenceMismatches counts evaluations where the dialect arbiter fell
	// back to whole-sentence comparison because references disagreed on
	// word count (§4.H).
	ReferenceMismatches metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live streaming-ingest sessions
	// (internal/ingest).
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for per-word and per-utterance scoring latencies.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.DecodeDuration, err = m.Float64Histogram("pronounce.decode.duration",
		metric.WithDescription("Latency of acoustic-model inference plus CTC collapse per audio window."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AlignDuration, err = m.Float64Histogram("pronounce.align.duration",
		metric.WithDescription("Latency of the weighted edit-distance alignment step."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ScoreDuration, err = m.Float64Histogram("pronounce.score.duration",
		metric.WithDescription("Latency of a full evaluation call, from reference generation through dialect arbitration."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.NarrationDuration, err = m.Float64Histogram("pronounce.narration.duration",
		metric.WithDescription("Latency of feedback-narrator LLM calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("pronounce.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.DialectPicks, err = m.Int64Counter("pronounce.dialect.picks",
		metric.WithDescription("Total per-word wins by dialect in arbitration."),
	); err != nil {
		return nil, err
	}
	if met.ReferenceMismatches, err = m.Int64Counter("pronounce.dialect.reference_mismatches",
		metric.WithDescription("Total evaluations that fell back to whole-sentence dialect comparison."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("pronounce.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("pronounce.active_sessions",
		metric.WithDescription("Number of live streaming-ingest sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("pronounce.http.request.duration",
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

// RecordDialectPick is a convenience method that records which dialect won a
// word's arbitration.
func (m *Metrics) RecordDialectPick(ctx context.Context, dialect string) {
	m.DialectPicks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("dialect", dialect)),
	)
}

// RecordReferenceMismatch records a fallback to whole-sentence dialect comparison.
func (m *Metrics) RecordReferenceMismatch(ctx context.Context) {
	m.ReferenceMismatches.Add(ctx, 1)
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
