package observe

import (
	"context"
	"io"
	"testing"
)

func BenchmarkLogger_Info(b *testing.B) {
	logger := NewLoggerWithWriter("info", io.Discard)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info(ctx, "benchmark message", Field{Key: "iteration", Value: i})
	}
}

// BenchmarkLogger_WithOperation_ThenLog measures the per-call logging pattern.
func BenchmarkLogger_WithOperation_ThenLog(b *testing.B) {
	logger := NewLoggerWithWriter("info", io.Discard)
	ctx := context.Background()
	meta := OperationMeta{Kind: KindFetch, Name: "books", Key: `["books",1]`}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.WithOperation(meta).Info(ctx, "fetch completed")
	}
}

func BenchmarkMiddleware_Noop(b *testing.B) {
	mw := NewMiddleware(nil, nil, nil)
	ctx := context.Background()
	meta := OperationMeta{Kind: KindFetch, Name: "books"}
	run := Instrument(mw, meta, func(context.Context) (int, error) { return 1, nil })

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = run(ctx)
	}
}

func BenchmarkMiddleware_Nil(b *testing.B) {
	ctx := context.Background()
	run := Instrument(nil, OperationMeta{Kind: KindFetch}, func(context.Context) (int, error) { return 1, nil })

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = run(ctx)
	}
}
