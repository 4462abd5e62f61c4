package observe

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments for the resilience layer.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: recording is best-effort and must not panic.
type Metrics struct {
	meter metric.Meter

	circuitTransitions metric.Int64Counter
	retryAttempts      metric.Int64Counter
	throttled          metric.Int64Counter
	quotaFactor        metric.Float64Gauge

	cacheHits     metric.Int64Counter
	cacheMisses   metric.Int64Counter
	cacheShared   metric.Int64Counter
	cacheFailOpen metric.Int64Counter

	poolOpen    metric.Int64Gauge
	poolIdle    metric.Int64Gauge
	poolInUse   metric.Int64Gauge
	poolWaiting metric.Int64Gauge
	poolUsage   metric.Float64Gauge
}

// NewMetrics creates the resilience instrument set on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{meter: meter}

	var err error
	if m.circuitTransitions, err = meter.Int64Counter(
		"circuit.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	); err != nil {
		return nil, err
	}

	if m.retryAttempts, err = meter.Int64Counter(
		"retry.attempts",
		metric.WithDescription("Attempts made by the retry executor"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, err
	}

	if m.throttled, err = meter.Int64Counter(
		"ratelimit.throttled",
		metric.WithDescription("Requests rejected by the admission limiter"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}

	if m.quotaFactor, err = meter.Float64Gauge(
		"ratelimit.factor",
		metric.WithDescription("Adaptive quota factor applied to the last admission decision"),
	); err != nil {
		return nil, err
	}

	if m.cacheHits, err = meter.Int64Counter(
		"cache.singleflight.hit",
		metric.WithDescription("Cache reads served from the remote store"),
		metric.WithUnit("{read}"),
	); err != nil {
		return nil, err
	}

	if m.cacheMisses, err = meter.Int64Counter(
		"cache.singleflight.miss",
		metric.WithDescription("Cache misses that triggered an upstream fetch"),
		metric.WithUnit("{read}"),
	); err != nil {
		return nil, err
	}

	if m.cacheShared, err = meter.Int64Counter(
		"cache.singleflight.shared",
		metric.WithDescription("Cache misses that piggybacked on an in-flight fetch"),
		metric.WithUnit("{read}"),
	); err != nil {
		return nil, err
	}

	if m.cacheFailOpen, err = meter.Int64Counter(
		"cache.singleflight.failopen",
		metric.WithDescription("Direct fetches while the cache backend was unavailable"),
		metric.WithUnit("{read}"),
	); err != nil {
		return nil, err
	}

	if m.poolOpen, err = meter.Int64Gauge(
		"pool.connections.open",
		metric.WithDescription("Open connections in the pool"),
		metric.WithUnit("{connection}"),
	); err != nil {
		return nil, err
	}
	if m.poolIdle, err = meter.Int64Gauge(
		"pool.connections.idle",
		metric.WithDescription("Idle connections in the pool"),
		metric.WithUnit("{connection}"),
	); err != nil {
		return nil, err
	}
	if m.poolInUse, err = meter.Int64Gauge(
		"pool.connections.in_use",
		metric.WithDescription("Connections currently checked out"),
		metric.WithUnit("{connection}"),
	); err != nil {
		return nil, err
	}
	if m.poolWaiting, err = meter.Int64Gauge(
		"pool.connections.waiting",
		metric.WithDescription("Requests that waited for a connection since the last sample"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.poolUsage, err = meter.Float64Gauge(
		"pool.usage_ratio",
		metric.WithDescription("Open connections over the pool maximum"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordCircuitTransition records a breaker state transition.
func (m *Metrics) RecordCircuitTransition(ctx context.Context, circuit, from, to string) {
	m.circuitTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("circuit", circuit),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordRetryAttempt records one attempt of a guarded operation.
func (m *Metrics) RecordRetryAttempt(ctx context.Context, operation string, attempt int) {
	m.retryAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("retry", attempt > 1),
	))
}

// RecordThrottled records a request rejected by the admission limiter.
func (m *Metrics) RecordThrottled(ctx context.Context, route string) {
	m.throttled.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", route),
	))
}

// RecordQuotaFactor records the adaptive factor applied to an admission decision.
func (m *Metrics) RecordQuotaFactor(ctx context.Context, factor float64) {
	m.quotaFactor.Record(ctx, factor)
}

// RecordCacheHit records a read served from the remote store.
func (m *Metrics) RecordCacheHit(ctx context.Context) { m.cacheHits.Add(ctx, 1) }

// RecordCacheMiss records a miss that triggered an upstream fetch.
func (m *Metrics) RecordCacheMiss(ctx context.Context) { m.cacheMisses.Add(ctx, 1) }

// RecordCacheShared records a miss that joined an in-flight fetch.
func (m *Metrics) RecordCacheShared(ctx context.Context) { m.cacheShared.Add(ctx, 1) }

// RecordCacheFailOpen records a direct fetch while the store was down.
func (m *Metrics) RecordCacheFailOpen(ctx context.Context) { m.cacheFailOpen.Add(ctx, 1) }

// RecordPool records one pool sample.
func (m *Metrics) RecordPool(ctx context.Context, pool string, open, idle, inUse, waiting int, usageRatio float64) {
	opt := metric.WithAttributes(attribute.String("pool", pool))
	m.poolOpen.Record(ctx, int64(open), opt)
	m.poolIdle.Record(ctx, int64(idle), opt)
	m.poolInUse.Record(ctx, int64(inUse), opt)
	m.poolWaiting.Record(ctx, int64(waiting), opt)
	m.poolUsage.Record(ctx, usageRatio, opt)
}

// MetricsHandler returns the Prometheus scrape handler for the default
// registry, which the prometheus exporter feeds.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
