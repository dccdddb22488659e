// Package observe provides application-wide observability primitives for
// voicenav: OpenTelemetry metrics, distributed tracing, trace-aware logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so they can be scraped from
// /metrics. A package-level default [Metrics] instance ([DefaultMetrics]) is
// provided for convenience; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voicenav metrics.
const meterName = "github.com/MrWong99/voicenav"

// Metrics holds all OpenTelemetry metric instruments for the application.
// The underlying OTel types handle their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ClassifyDuration tracks end-to-end intent classification latency.
	// Attribute: source ("llm" | "pattern").
	ClassifyDuration metric.Float64Histogram

	// LLMDuration tracks a single LLM round trip. Attribute: purpose
	// ("classify" | "content").
	LLMDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time by method and
	// route pattern.
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ---

	// Commands counts resolved commands by intent, source and status.
	Commands metric.Int64Counter

	// LLMFallbacks counts pattern-classifier fallbacks by reason
	// ("error" | "low_confidence" | "unavailable").
	LLMFallbacks metric.Int64Counter

	// ProviderErrors counts backend errors by provider and kind.
	ProviderErrors metric.Int64Counter

	// BreakerTransitions counts circuit-breaker state changes by breaker
	// name and target state.
	BreakerTransitions metric.Int64Counter

	// EmailReconstructions counts reconstruction attempts by outcome
	// ("rebuilt" | "unchanged").
	EmailReconstructions metric.Int64Counter

	// EmailFlushes counts email-buffer flushes by trigger
	// ("complete" | "quiet").
	EmailFlushes metric.Int64Counter

	// RankMisses counts target-ranking passes that found no candidate, by
	// mode ("click" | "fill" | "toggle").
	RankMisses metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of sessions held in memory.
	ActiveSessions metric.Int64UpDownCounter

	// DispatchSubscribers tracks connected action-stream subscribers.
	DispatchSubscribers metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) tuned for
// a command path where a slow LLM answer is abandoned after a few seconds.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ClassifyDuration, err = m.Float64Histogram("voicenav.classify.duration",
		metric.WithDescription("Latency of intent classification by source."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("voicenav.llm.duration",
		metric.WithDescription("Latency of a single LLM round trip."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voicenav.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if met.Commands, err = m.Int64Counter("voicenav.commands",
		metric.WithDescription("Resolved voice commands by intent, source and status."),
	); err != nil {
		return nil, err
	}
	if met.LLMFallbacks, err = m.Int64Counter("voicenav.llm.fallbacks",
		metric.WithDescription("Pattern-classifier fallbacks by reason."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("voicenav.provider.errors",
		metric.WithDescription("Backend errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("voicenav.breaker.transitions",
		metric.WithDescription("Circuit breaker state changes."),
	); err != nil {
		return nil, err
	}
	if met.EmailReconstructions, err = m.Int64Counter("voicenav.email.reconstructions",
		metric.WithDescription("Spoken email reconstruction attempts by outcome."),
	); err != nil {
		return nil, err
	}
	if met.EmailFlushes, err = m.Int64Counter("voicenav.email.flushes",
		metric.WithDescription("Email fragment buffer flushes by trigger."),
	); err != nil {
		return nil, err
	}
	if met.RankMisses, err = m.Int64Counter("voicenav.target.rank.misses",
		metric.WithDescription("Target ranking passes without a match."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("voicenav.sessions.active",
		metric.WithDescription("Sessions currently held in memory."),
	); err != nil {
		return nil, err
	}
	if met.DispatchSubscribers, err = m.Int64UpDownCounter("voicenav.dispatch.subscribers",
		metric.WithDescription("Connected action stream subscribers."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordCommand increments the command counter.
func (m *Metrics) RecordCommand(ctx context.Context, intent, source, status string) {
	m.Commands.Add(ctx, 1, metric.WithAttributes(
		attribute.String("intent", intent),
		attribute.String("source", source),
		attribute.String("status", status),
	))
}

// RecordFallback increments the LLM fallback counter.
func (m *Metrics) RecordFallback(ctx context.Context, reason string) {
	m.LLMFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordProviderError increments the provider error counter.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}

// RecordBreakerTransition increments the breaker transition counter. Its
// signature matches resilience.CircuitBreakerConfig.OnStateChange once the
// states are stringified.
func (m *Metrics) RecordBreakerTransition(name, to string) {
	m.BreakerTransitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("breaker", name),
		attribute.String("state", to),
	))
}

// RecordEmail increments the email reconstruction counter.
func (m *Metrics) RecordEmail(ctx context.Context, outcome string) {
	m.EmailReconstructions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordEmailFlush increments the email buffer flush counter.
func (m *Metrics) RecordEmailFlush(ctx context.Context, trigger string) {
	m.EmailFlushes.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", trigger)))
}

// RecordRankMiss increments the ranking miss counter.
func (m *Metrics) RecordRankMiss(ctx context.Context, mode string) {
	m.RankMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}
