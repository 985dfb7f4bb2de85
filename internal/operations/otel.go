package operations

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pvinsight/internal/infrastructure"
)

const (
	TracerName = "pvinsight.operation"
)

// OperationTracer instruments runs and steps with spans and business metrics.
type OperationTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.BusinessMetrics
}

// NewOperationTracer creates a tracer; metrics may be nil.
func NewOperationTracer(metrics *infrastructure.BusinessMetrics) *OperationTracer {
	return &OperationTracer{
		tracer:  otel.Tracer(TracerName),
		metrics: metrics,
	}
}

// TraceRun starts the span of a whole run.
func (t *OperationTracer) TraceRun(ctx context.Context, runID string, req OperationRequest) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "operation.run."+req.Tool,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", runID),
			attribute.String("operation.tool", req.Tool),
			attribute.Int("operation.inputs", len(req.Inputs)),
		),
	)
}

// TraceStep starts the span of one step.
func (t *OperationTracer) TraceStep(ctx context.Context, runID, tool, stepID string, attempt int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "operation.step."+stepID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", runID),
			attribute.String("operation.tool", tool),
			attribute.String("step.id", stepID),
			attribute.Int("step.attempt", attempt),
		),
	)
}

// EndStep closes a step span and records its duration.
func (t *OperationTracer) EndStep(ctx context.Context, span trace.Span, tool, stepID string, duration time.Duration, err error) {
	span.SetAttributes(attribute.Float64("step.duration_seconds", duration.Seconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("error.type", string(GetErrorType(err))))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
	t.metrics.RecordStep(ctx, tool, stepID, duration, err == nil)
}

// EndRun closes a run span and records the run.
func (t *OperationTracer) EndRun(ctx context.Context, span trace.Span, state *OperationState, err error) {
	duration := state.Duration()
	span.SetAttributes(
		attribute.String("operation.status", string(state.GetStatus())),
		attribute.Float64("operation.duration_seconds", duration.Seconds()),
		attribute.Bool("operation.alert", state.Alert()),
		attribute.Int("operation.outputs", len(state.Outputs().Files)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
	t.metrics.RecordRun(ctx, state.Tool, duration, err)
}
