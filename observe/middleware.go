package observe

import (
	"context"
	"time"
)

// ExecuteFunc is the signature Middleware wraps.
type ExecuteFunc func(ctx context.Context, meta OperationMeta) (any, error)

// Middleware wraps fetch and mutation calls with tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe ExecuteFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from wrapped function are recorded and propagated unchanged.
//   - Nil: a nil *Middleware is valid and instruments nothing.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
// Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NewNoopTracer()
	}
	if metrics == nil {
		metrics = NewNoopMetrics()
	}
	if logger == nil {
		logger = NewNoopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Wrap wraps an ExecuteFunc with tracing, metrics, and logging.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	if m == nil {
		return fn
	}
	return func(ctx context.Context, meta OperationMeta) (any, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		result, err := fn(ctx, meta)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordOperation(ctx, meta, duration, err)

		opLogger := m.logger.WithOperation(meta)
		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000},
		}
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			opLogger.Warn(ctx, string(meta.Kind)+" failed", fields...)
		} else {
			opLogger.Debug(ctx, string(meta.Kind)+" completed", fields...)
		}

		return result, err
	}
}

// Instrument wraps a typed operation with m. A nil m returns fn unchanged.
func Instrument[T any](m *Middleware, meta OperationMeta, fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	if m == nil {
		return fn
	}
	wrapped := m.Wrap(func(ctx context.Context, _ OperationMeta) (any, error) {
		return fn(ctx)
	})
	return func(ctx context.Context) (T, error) {
		result, err := wrapped(ctx, meta)
		typed, _ := result.(T)
		return typed, err
	}
}

// RecordCacheHit records a fresh cache entry served to a query.
func (m *Middleware) RecordCacheHit(ctx context.Context, meta OperationMeta) {
	if m == nil {
		return
	}
	m.metrics.RecordCacheHit(ctx, meta)
	m.logger.WithOperation(meta).Debug(ctx, "cache hit")
}

// RecordSuperseded records a fetch result a deactivated query discarded.
func (m *Middleware) RecordSuperseded(ctx context.Context, meta OperationMeta) {
	if m == nil {
		return
	}
	m.metrics.RecordSuperseded(ctx, meta)
	m.logger.WithOperation(meta).Debug(ctx, "fetch result superseded")
}

// Logger returns the middleware's logger, or a no-op logger for a nil Middleware.
func (m *Middleware) Logger() Logger {
	if m == nil {
		return NewNoopLogger()
	}
	return m.logger
}
