package observe

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// OperationKind distinguishes cached reads from one-shot writes.
type OperationKind string

const (
	// KindFetch is a fetcher invocation made on behalf of a query.
	KindFetch OperationKind = "fetch"
	// KindMutate is a mutation function invocation.
	KindMutate OperationKind = "mutate"
)

// OperationMeta describes one fetch or mutation for telemetry purposes.
type OperationMeta struct {
	Kind OperationKind // fetch or mutate
	Name string        // Logical name, e.g. "books" (optional)
	Key  string        // Canonical query key (fetch only)
	ID   string        // Per-call ID; spans and logs only, never a metric label
}

// NewOperationID returns a fresh random call ID.
func NewOperationID() string {
	return uuid.NewString()
}

// OperationName returns Name, or "anonymous" when it is empty.
func (m OperationMeta) OperationName() string {
	if m.Name == "" {
		return "anonymous"
	}
	return m.Name
}

// SpanName returns the deterministic span name for this operation.
// Format: query.<kind>.<name>
func (m OperationMeta) SpanName() string {
	kind := m.Kind
	if kind == "" {
		kind = KindFetch
	}
	return "query." + string(kind) + "." + m.OperationName()
}

func (m OperationMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("op.kind", string(m.Kind)),
		attribute.String("op.name", m.OperationName()),
	}
	if m.Key != "" {
		attrs = append(attrs, attribute.String("query.key", m.Key))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with operation-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a fetch or mutation.
	StartSpan(ctx context.Context, meta OperationMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta OperationMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("op.error", false))
	if meta.ID != "" {
		attrs = append(attrs, attribute.String("op.id", meta.ID))
	}
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("op.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NewNoopTracer returns a Tracer whose spans are never recorded.
func NewNoopTracer() Tracer {
	return &tracerImpl{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
}
