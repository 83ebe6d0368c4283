// Package observe provides application-wide observability for fantasma:
// OpenTelemetry metrics with a Prometheus exporter bridge so the pipeline can
// be scraped via the standard /metrics endpoint.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all fantasma metrics.
const meterName = "github.com/fantasma-ai/fantasma"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks LLM completion latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// RouteDuration tracks end-to-end routing latency, from transcript to
	// answer.
	RouteDuration metric.Float64Histogram

	// --- Wake detection ---

	// WakeScore records the per-frame wake-word scores.
	WakeScore metric.Float64Histogram

	// WakeTriggers counts wake-word activations.
	WakeTriggers metric.Int64Counter

	// --- Counters ---

	// SkillInvocations counts skill handler runs. Use with attributes:
	//   attribute.String("skill", ...), attribute.String("status", ...)
	SkillInvocations metric.Int64Counter

	// CacheLookups counts response-cache lookups. Use with attribute:
	//   attribute.String("result", "hit"|"miss")
	CacheLookups metric.Int64Counter

	// BargeIns counts voice requests that superseded an in-flight one.
	BargeIns metric.Int64Counter

	// DroppedFrames counts audio frames dropped by the bounded queue.
	DroppedFrames metric.Int64Counter

	// --- Gauges ---

	// ActiveRequests tracks requests currently being processed.
	ActiveRequests metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// scoreBuckets covers the 0..1 wake score range.
var scoreBuckets = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("fantasma.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("fantasma.llm.duration",
		metric.WithDescription("Latency of LLM completion."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("fantasma.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RouteDuration, err = m.Float64Histogram("fantasma.route.duration",
		metric.WithDescription("End-to-end routing latency, transcript to answer."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.WakeScore, err = m.Float64Histogram("fantasma.wake.score",
		metric.WithDescription("Per-frame wake-word scores."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.WakeTriggers, err = m.Int64Counter("fantasma.wake.triggers",
		metric.WithDescription("Total wake-word activations."),
	); err != nil {
		return nil, err
	}
	if met.SkillInvocations, err = m.Int64Counter("fantasma.skill.invocations",
		metric.WithDescription("Total skill handler runs by skill and status."),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("fantasma.cache.lookups",
		metric.WithDescription("Total response-cache lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.BargeIns, err = m.Int64Counter("fantasma.barge_ins",
		metric.WithDescription("Total voice requests that superseded an in-flight one."),
	); err != nil {
		return nil, err
	}
	if met.DroppedFrames, err = m.Int64Counter("fantasma.audio.dropped_frames",
		metric.WithDescription("Total audio frames dropped by the bounded queue."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveRequests, err = m.Int64UpDownCounter("fantasma.active_requests",
		metric.WithDescription("Requests currently being processed."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("fantasma.http.request.duration",
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

// RecordSkill records one skill handler run.
func (m *Metrics) RecordSkill(ctx context.Context, skill, status string) {
	m.SkillInvocations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("skill", skill),
			attribute.String("status", status),
		),
	)
}

// RecordCacheLookup records a response-cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)),
	)
}
