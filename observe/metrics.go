package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Metric instrument names.
const (
	MetricOperationTotal    = "asyncquery.op.total"
	MetricOperationErrors   = "asyncquery.op.errors"
	MetricOperationDuration = "asyncquery.op.duration_ms"
	MetricCacheHits         = "asyncquery.cache.hits"
	MetricSuperseded        = "asyncquery.fetch.superseded"
)

// Metrics records query and mutation metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordOperation records one fetch or mutation with its duration and outcome.
	RecordOperation(ctx context.Context, meta OperationMeta, duration time.Duration, err error)

	// RecordCacheHit records a fresh entry served without calling the fetcher.
	RecordCacheHit(ctx context.Context, meta OperationMeta)

	// RecordSuperseded records a fetch result discarded because its query moved on.
	RecordSuperseded(ctx context.Context, meta OperationMeta)
}

type metricsImpl struct {
	totalCount      metric.Int64Counter
	errorCount      metric.Int64Counter
	durationHist    metric.Float64Histogram
	cacheHits       metric.Int64Counter
	supersededCount metric.Int64Counter
}

// NewMetrics creates Metrics backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		MetricOperationTotal,
		metric.WithDescription("Total number of fetch and mutation calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		MetricOperationErrors,
		metric.WithDescription("Total number of failed fetch and mutation calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		MetricOperationDuration,
		metric.WithDescription("Fetch and mutation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		MetricCacheHits,
		metric.WithDescription("Fresh cache entries served without fetching"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	supersededCount, err := meter.Int64Counter(
		MetricSuperseded,
		metric.WithDescription("Fetch results discarded by a deactivated query"),
		metric.WithUnit("{result}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:      totalCount,
		errorCount:      errorCount,
		durationHist:    durationHist,
		cacheHits:       cacheHits,
		supersededCount: supersededCount,
	}, nil
}

func (m *metricsImpl) RecordOperation(ctx context.Context, meta OperationMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.attributes()...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordCacheHit(ctx context.Context, meta OperationMeta) {
	m.cacheHits.Add(ctx, 1, metric.WithAttributes(meta.attributes()...))
}

func (m *metricsImpl) RecordSuperseded(ctx context.Context, meta OperationMeta) {
	m.supersededCount.Add(ctx, 1, metric.WithAttributes(meta.attributes()...))
}

type noopMetrics struct{}

// NewNoopMetrics returns Metrics that record nothing.
func NewNoopMetrics() Metrics {
	return noopMetrics{}
}

func (noopMetrics) RecordOperation(context.Context, OperationMeta, time.Duration, error) {}
func (noopMetrics) RecordCacheHit(context.Context, OperationMeta)                       {}
func (noopMetrics) RecordSuperseded(context.Context, OperationMeta)                     {}
