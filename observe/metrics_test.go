package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumOf returns the total of an int64 counter, or -1 when it was never recorded.
func sumOf(rm metricdata.ResourceMetrics, name string) int64 {
	m := findMetric(rm, name)
	if m == nil {
		return -1
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		return -1
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_RecordOperation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	meta := OperationMeta{Kind: KindFetch, Name: "books", Key: `["books"]`}

	m.RecordOperation(ctx, meta, 12*time.Millisecond, nil)
	m.RecordOperation(ctx, meta, 3*time.Millisecond, errors.New("boom"))

	rm := collect(t, reader)
	if got := sumOf(rm, MetricOperationTotal); got != 2 {
		t.Errorf("%s = %d, want 2", MetricOperationTotal, got)
	}
	if got := sumOf(rm, MetricOperationErrors); got != 1 {
		t.Errorf("%s = %d, want 1", MetricOperationErrors, got)
	}

	dur := findMetric(rm, MetricOperationDuration)
	if dur == nil {
		t.Fatalf("%s not found", MetricOperationDuration)
	}
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 {
		t.Fatalf("duration data = %T, want one histogram data point", dur.Data)
	}
	if hist.DataPoints[0].Count != 2 || hist.DataPoints[0].Sum != 15 {
		t.Errorf("duration count/sum = %d/%v, want 2/15", hist.DataPoints[0].Count, hist.DataPoints[0].Sum)
	}
}

func TestMetrics_Attributes(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordOperation(context.Background(),
		OperationMeta{Kind: KindMutate, Name: "cart.add", ID: "call-1"}, time.Millisecond, nil)

	rm := collect(t, reader)
	sum := findMetric(rm, MetricOperationTotal).Data.(metricdata.Sum[int64])
	attrs := sum.DataPoints[0].Attributes

	if v, ok := attrs.Value(attribute.Key("op.kind")); !ok || v.AsString() != "mutate" {
		t.Errorf("op.kind = %v, want mutate", v.AsString())
	}
	if v, ok := attrs.Value(attribute.Key("op.name")); !ok || v.AsString() != "cart.add" {
		t.Errorf("op.name = %v, want cart.add", v.AsString())
	}
	for _, k := range []attribute.Key{"op.id", "query.key"} {
		if attrs.HasValue(k) {
			t.Errorf("%s present as metric attribute", k)
		}
	}
}

func TestMetrics_CacheHitsAndSuperseded(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	meta := OperationMeta{Kind: KindFetch, Name: "books"}

	m.RecordCacheHit(ctx, meta)
	m.RecordCacheHit(ctx, meta)
	m.RecordSuperseded(ctx, meta)

	rm := collect(t, reader)
	if got := sumOf(rm, MetricCacheHits); got != 2 {
		t.Errorf("%s = %d, want 2", MetricCacheHits, got)
	}
	if got := sumOf(rm, MetricSuperseded); got != 1 {
		t.Errorf("%s = %d, want 1", MetricSuperseded, got)
	}
	if got := sumOf(rm, MetricOperationTotal); got != -1 {
		t.Errorf("%s recorded %d, want nothing", MetricOperationTotal, got)
	}
}

func TestNoopMetrics_NoPanic(t *testing.T) {
	m := NewNoopMetrics()
	ctx := context.Background()
	m.RecordOperation(ctx, OperationMeta{}, time.Second, errors.New("x"))
	m.RecordCacheHit(ctx, OperationMeta{})
	m.RecordSuperseded(ctx, OperationMeta{})
}
