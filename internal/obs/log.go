// Package obs bundles the logging and tracing context plumbing shared by
// every adapter and service: a zap-backed Logger plus an OpenTelemetry
// tracer, both retrievable from a request-scoped context.Context through a
// single context key.
package obs

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const ctxKey contextKey = "catalog_obs"

type bundle struct {
	logger *zap.SugaredLogger
	tracer trace.Tracer
}

// WithLogger returns a context carrying logger, preserving any tracer
// already attached.
func WithLogger(ctx context.Context, logger *zap.SugaredLogger) context.Context {
	b := bundleFrom(ctx)
	b.logger = logger

	return context.WithValue(ctx, ctxKey, b)
}

// WithTracer returns a context carrying tracer, preserving any logger
// already attached.
func WithTracer(ctx context.Context, tracer trace.Tracer) context.Context {
	b := bundleFrom(ctx)
	b.tracer = tracer

	return context.WithValue(ctx, ctxKey, b)
}

func bundleFrom(ctx context.Context) bundle {
	if b, ok := ctx.Value(ctxKey).(bundle); ok {
		return b
	}

	return bundle{}
}

// Logger extracts the logger from ctx, falling back to a no-op logger so
// callers never need a nil check.
func Logger(ctx context.Context) *zap.SugaredLogger {
	b := bundleFrom(ctx)
	if b.logger != nil {
		return b.logger
	}

	return zap.NewNop().Sugar()
}

// Tracer extracts the tracer from ctx, falling back to the global
// no-op tracer provider's tracer.
func Tracer(ctx context.Context) trace.Tracer {
	b := bundleFrom(ctx)
	if b.tracer != nil {
		return b.tracer
	}

	return otel.Tracer("catalog")
}
