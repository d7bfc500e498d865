package monitoring

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	SamplingRate   float64
}

// TracingManager handles tracing of ledger operations
type TracingManager struct {
	tracer   trace.Tracer
	config   *TracingConfig
	provider *sdktrace.TracerProvider
}

// NewTracingManager creates a new tracing manager. Extra provider options,
// such as a span processor, are appended to the defaults.
func NewTracingManager(config *TracingConfig, opts ...sdktrace.TracerProviderOption) (*TracingManager, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providerOpts := append([]sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SamplingRate))),
	}, opts...)
	tp := sdktrace.NewTracerProvider(providerOpts...)

	return &TracingManager{
		tracer:   tp.Tracer(config.ServiceName),
		config:   config,
		provider: tp,
	}, nil
}

// StartOperationSpan starts a span for a ledger operation
func (tm *TracingManager) StartOperationSpan(ctx context.Context, operation, caller string) (context.Context, trace.Span) {
	return tm.tracer.Start(ctx, "ledger."+operation,
		trace.WithAttributes(
			attribute.String("ledger.operation", operation),
			attribute.String("ledger.caller", caller),
		),
	)
}

// EndOperationSpan records the outcome of a ledger operation and ends the span
func (tm *TracingManager) EndOperationSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("ledger.outcome", OutcomeFailure))
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.String("ledger.outcome", OutcomeSuccess))
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Shutdown flushes and stops the tracer provider
func (tm *TracingManager) Shutdown(ctx context.Context) error {
	return tm.provider.Shutdown(ctx)
}

// TraceIDFromContext extracts trace ID from context
func TraceIDFromContext(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
