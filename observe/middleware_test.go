package observe

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

type harness struct {
	mw     *Middleware
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
	logs   *bytes.Buffer
}

func newHarness(t *testing.T, level string) harness {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	metrics, reader := newTestMetrics(t)
	logs := &bytes.Buffer{}
	return harness{
		mw:     NewMiddleware(NewTracer(tp.Tracer("test")), metrics, NewLoggerWithWriter(level, logs)),
		spans:  spans,
		reader: reader,
		logs:   logs,
	}
}

// TestMiddleware_SuccessPath verifies successful execution records telemetry.
func TestMiddleware_SuccessPath(t *testing.T) {
	h := newHarness(t, "debug")
	meta := OperationMeta{Kind: KindFetch, Name: "books", Key: `["books"]`}

	wrapped := h.mw.Wrap(func(ctx context.Context, got OperationMeta) (any, error) {
		if got != meta {
			t.Errorf("inner meta = %+v, want %+v", got, meta)
		}
		return []string{"Dune"}, nil
	})
	result, err := wrapped(context.Background(), meta)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if books, _ := result.([]string); len(books) != 1 || books[0] != "Dune" {
		t.Errorf("result = %v, want [Dune]", result)
	}

	spans := h.spans.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "query.fetch.books" {
		t.Errorf("span name = %q, want query.fetch.books", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("span status = %v, want Ok", spans[0].Status().Code)
	}

	rm := collect(t, h.reader)
	if got := sumOf(rm, MetricOperationTotal); got != 1 {
		t.Errorf("%s = %d, want 1", MetricOperationTotal, got)
	}
	if got := sumOf(rm, MetricOperationErrors); got != -1 {
		t.Errorf("%s = %d, want unrecorded", MetricOperationErrors, got)
	}

	entries := decodeEntries(t, h.logs)
	if len(entries) != 1 || entries[0]["msg"] != "fetch completed" || entries[0]["level"] != "debug" {
		t.Fatalf("log entries = %v, want one debug 'fetch completed'", entries)
	}
	if _, ok := entries[0]["duration_ms"].(float64); !ok {
		t.Errorf("duration_ms = %v, want a number", entries[0]["duration_ms"])
	}
}

// TestMiddleware_ErrorPath verifies failed execution records error telemetry.
func TestMiddleware_ErrorPath(t *testing.T) {
	h := newHarness(t, "info")
	boom := errors.New("upstream unavailable")
	meta := OperationMeta{Kind: KindMutate, Name: "cart.add"}

	_, err := h.mw.Wrap(func(context.Context, OperationMeta) (any, error) {
		return nil, boom
	})(context.Background(), meta)
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want the inner error unchanged", err)
	}

	spans := h.spans.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "query.mutate.cart.add" {
		t.Errorf("span name = %q, want query.mutate.cart.add", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Error || spans[0].Status().Description != boom.Error() {
		t.Errorf("span status = %+v, want Error %q", spans[0].Status(), boom.Error())
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected the error to be recorded as a span event")
	}

	rm := collect(t, h.reader)
	if got := sumOf(rm, MetricOperationErrors); got != 1 {
		t.Errorf("%s = %d, want 1", MetricOperationErrors, got)
	}

	entries := decodeEntries(t, h.logs)
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0]["msg"] != "mutate failed" || entries[0]["level"] != "warn" {
		t.Errorf("log = %v, want warn 'mutate failed'", entries[0])
	}
	if entries[0]["error"] != boom.Error() {
		t.Errorf("error field = %v, want %q", entries[0]["error"], boom.Error())
	}
}

// TestMiddleware_PropagatesSpanContext verifies the inner function sees the span.
func TestMiddleware_PropagatesSpanContext(t *testing.T) {
	h := newHarness(t, "error")

	_, _ = h.mw.Wrap(func(ctx context.Context, _ OperationMeta) (any, error) {
		if !trace.SpanFromContext(ctx).SpanContext().IsValid() {
			t.Error("inner context carries no valid span")
		}
		return nil, nil
	})(context.Background(), OperationMeta{Kind: KindFetch})
}

func TestInstrument_TypedResult(t *testing.T) {
	h := newHarness(t, "error")

	run := Instrument(h.mw, OperationMeta{Kind: KindFetch, Name: "count"}, func(context.Context) (int, error) {
		return 42, nil
	})
	n, err := run(context.Background())
	if err != nil || n != 42 {
		t.Fatalf("run() = (%d, %v), want (42, nil)", n, err)
	}
	if got := len(h.spans.Ended()); got != 1 {
		t.Errorf("spans = %d, want 1", got)
	}
}

func TestInstrument_ZeroValueOnError(t *testing.T) {
	h := newHarness(t, "error")
	boom := errors.New("boom")

	run := Instrument(h.mw, OperationMeta{Kind: KindMutate}, func(context.Context) (string, error) {
		return "partial", boom
	})
	s, err := run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	if s != "partial" {
		t.Errorf("result = %q, want the inner result passed through", s)
	}
}

func TestMiddleware_NilIsPassthrough(t *testing.T) {
	var mw *Middleware
	ctx := context.Background()
	meta := OperationMeta{Kind: KindFetch, Name: "books"}

	calls := 0
	fn := func(context.Context) (int, error) {
		calls++
		return 7, nil
	}
	if n, err := Instrument(mw, meta, fn)(ctx); err != nil || n != 7 {
		t.Errorf("Instrument(nil) = (%d, %v), want (7, nil)", n, err)
	}
	if _, err := mw.Wrap(func(context.Context, OperationMeta) (any, error) {
		calls++
		return nil, nil
	})(ctx, meta); err != nil {
		t.Errorf("Wrap(nil) error = %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}

	mw.RecordCacheHit(ctx, meta)
	mw.RecordSuperseded(ctx, meta)
	if mw.Logger() == nil {
		t.Error("Logger() on nil Middleware returned nil")
	}
}

func TestMiddleware_CacheHitAndSuperseded(t *testing.T) {
	h := newHarness(t, "debug")
	ctx := context.Background()
	meta := OperationMeta{Kind: KindFetch, Name: "books", Key: `["books"]`}

	h.mw.RecordCacheHit(ctx, meta)
	h.mw.RecordSuperseded(ctx, meta)

	rm := collect(t, h.reader)
	if got := sumOf(rm, MetricCacheHits); got != 1 {
		t.Errorf("%s = %d, want 1", MetricCacheHits, got)
	}
	if got := sumOf(rm, MetricSuperseded); got != 1 {
		t.Errorf("%s = %d, want 1", MetricSuperseded, got)
	}

	entries := decodeEntries(t, h.logs)
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	for i, msg := range []string{"cache hit", "fetch result superseded"} {
		if entries[i]["msg"] != msg || entries[i]["query.key"] != `["books"]` {
			t.Errorf("entry %d = %v, want %q with query.key", i, entries[i], msg)
		}
	}
	if got := len(h.spans.Ended()); got != 0 {
		t.Errorf("spans = %d, want none for cache bookkeeping", got)
	}
}

func TestNewMiddleware_NilComponents(t *testing.T) {
	mw := NewMiddleware(nil, nil, nil)
	result, err := mw.Wrap(func(context.Context, OperationMeta) (any, error) {
		return "ok", nil
	})(context.Background(), OperationMeta{})
	if err != nil || result != "ok" {
		t.Fatalf("Wrap() = (%v, %v), want (ok, nil)", result, err)
	}
}

func TestMiddlewareFromObserver(t *testing.T) {
	if _, err := MiddlewareFromObserver(nil); !errors.Is(err, ErrNilObserver) {
		t.Errorf("MiddlewareFromObserver(nil) error = %v, want ErrNilObserver", err)
	}

	obs, err := NewObserver(context.Background(), Config{ServiceName: "asyncquery-test"})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}
	mw, err := MiddlewareFromObserver(obs)
	if err != nil || mw == nil {
		t.Fatalf("MiddlewareFromObserver() = (%v, %v), want a middleware", mw, err)
	}
}
