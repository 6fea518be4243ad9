// Package telemetry wires an in-process OpenTelemetry tracer provider so
// request spans exist for internal/log's trace_id/span_id correlation. No
// OTLP exporter is configured: spans are created and sampled but never
// shipped anywhere, which is sufficient for log correlation alone.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Provider owns the process-wide tracer provider.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// NewProvider installs a sampling, exporter-less tracer provider as the
// global OpenTelemetry provider and returns a handle for shutdown.
func NewProvider(serviceName, version string) *Provider {
	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return &Provider{tp: tp}
}

// Shutdown flushes and stops the tracer provider within a bounded timeout.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.tp.Shutdown(shutdownCtx)
}

// Tracer returns a named tracer from the global provider, for components
// that want to start their own spans (the poll cycle, notably).
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
