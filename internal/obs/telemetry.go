package obs

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry owns the process-wide tracer provider and its shutdown hook.
type Telemetry struct {
	provider *sdktrace.TracerProvider
}

// InitTelemetry wires an OTLP/gRPC exporter into a batch span processor
// and installs it as the global tracer provider. When endpoint is empty,
// telemetry stays disabled and every Tracer(ctx) call falls back to the
// package no-op tracer.
func InitTelemetry(ctx context.Context, serviceName, endpoint string, enabled bool) (*Telemetry, error) {
	if !enabled || endpoint == "" {
		return &Telemetry{}, nil
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("build otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(provider)

	return &Telemetry{provider: provider}, nil
}

// Tracer returns the process-wide tracer for name, taken from whatever
// provider InitTelemetry installed (or the global no-op if disabled).
func (t *Telemetry) Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Shutdown flushes and stops the tracer provider; a no-op when telemetry
// was never enabled.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}

	return t.provider.Shutdown(ctx)
}
