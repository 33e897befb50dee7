// Package observe provides application-wide observability primitives for
// Everloom: OpenTelemetry metrics and the Prometheus exporter bridge that
// makes them scrapeable.
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

// meterName is the instrumentation scope name used for all Everloom metrics.
const meterName = "github.com/emberwick/everloom"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// StageDuration tracks per-stage turn pipeline latency. Use with
	// attribute:
	//   attribute.String("stage", ...)
	StageDuration metric.Float64Histogram

	// TurnDuration tracks end-to-end turn latency.
	TurnDuration metric.Float64Histogram

	// Turns counts completed turns. Use with attributes:
	//   attribute.String("mode", ...), attribute.String("outcome", ...)
	Turns metric.Int64Counter

	// ProviderRequests counts LLM provider calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts LLM provider errors by provider.
	ProviderErrors metric.Int64Counter

	// StateRequests counts translator requests by how the applier disposed
	// of them. Use with attribute:
	//   attribute.String("disposition", ...) — accepted, skipped, or dropped.
	StateRequests metric.Int64Counter

	// ActiveDialogues tracks whether a conversation is in progress (0 or 1
	// per running game).
	ActiveDialogues metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// LLM completion latencies.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("everloom.stage.duration",
		metric.WithDescription("Latency of one turn pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TurnDuration, err = m.Float64Histogram("everloom.turn.duration",
		metric.WithDescription("End-to-end latency of one turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Turns, err = m.Int64Counter("everloom.turns",
		metric.WithDescription("Completed turns by mode and outcome."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("everloom.provider.requests",
		metric.WithDescription("Total provider API requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("everloom.provider.errors",
		metric.WithDescription("Total provider errors by provider."),
	); err != nil {
		return nil, err
	}
	if met.StateRequests, err = m.Int64Counter("everloom.state.requests",
		metric.WithDescription("Translator state requests by applier disposition."),
	); err != nil {
		return nil, err
	}

	if met.ActiveDialogues, err = m.Int64UpDownCounter("everloom.active_dialogues",
		metric.WithDescription("Number of conversations currently in progress."),
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

// RecordStage records the latency of one pipeline stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, seconds float64) {
	m.StageDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordTurn records one completed turn with its mode and outcome.
func (m *Metrics) RecordTurn(ctx context.Context, mode string, success bool, seconds float64) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.Turns.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("mode", mode),
			attribute.String("outcome", outcome),
		),
	)
	m.TurnDuration.Record(ctx, seconds)
}

// RecordProviderRequest records one provider call and, on failure, the
// matching error counter increment.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.ProviderErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("provider", provider)),
		)
	}
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordStateRequests records an applier report's dispositions.
func (m *Metrics) RecordStateRequests(ctx context.Context, accepted, skipped, dropped int) {
	add := func(disposition string, n int) {
		if n == 0 {
			return
		}
		m.StateRequests.Add(ctx, int64(n),
			metric.WithAttributes(attribute.String("disposition", disposition)),
		)
	}
	add("accepted", accepted)
	add("skipped", skipped)
	add("dropped", dropped)
}

// DialogueStarted and DialogueEnded move the active-dialogue gauge.
func (m *Metrics) DialogueStarted(ctx context.Context) { m.ActiveDialogues.Add(ctx, 1) }

// DialogueEnded decrements the active-dialogue gauge.
func (m *Metrics) DialogueEnded(ctx context.Context) { m.ActiveDialogues.Add(ctx, -1) }
