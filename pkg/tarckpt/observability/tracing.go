package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer uses the global OTel tracer provider.
var tracer = otel.Tracer("tarckpt")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartSessionSpan starts a span covering a whole writing session.
	StartSessionSpan(ctx context.Context, sessionID, archivePath string) (context.Context, trace.Span)

	// StartTaskSpan starts a span for one task; it should be a child of the
	// session span.
	StartTaskSpan(ctx context.Context, index, files int) (context.Context, trace.Span)

	// StartExtractSpan starts a span for an extraction scan.
	StartExtractSpan(ctx context.Context, archivePath string, index int) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses the global OTel tracer
// provider. Configure it with otel.SetTracerProvider before use.
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

func (m *otelSpanManager) StartSessionSpan(ctx context.Context, sessionID, archivePath string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "tarckpt.session",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("archive.path", archivePath),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) StartTaskSpan(ctx context.Context, index, files int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "tarckpt.task",
		trace.WithAttributes(
			attribute.Int("checkpoint.index", index),
			attribute.Int("checkpoint.files", files),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) StartExtractSpan(ctx context.Context, archivePath string, index int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "tarckpt.extract",
		trace.WithAttributes(
			attribute.String("archive.path", archivePath),
			attribute.Int("checkpoint.index", index),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
