// Package tracing installs the OpenTelemetry tracer provider used for a run.
package tracing

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName names the tracer the sync run spans come from
const TracerName = "github.com/blackwell-systems/catalog-sync"

// Provider is a tracer provider together with its shutdown hook
type Provider struct {
	trace.TracerProvider
	shutdown func(context.Context) error
}

// Setup returns a provider exporting spans to w as JSON when enabled, and a
// no-op provider otherwise.
func Setup(enabled bool, w io.Writer) (*Provider, error) {
	if !enabled {
		return &Provider{TracerProvider: noop.NewTracerProvider()}, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	return &Provider{TracerProvider: tp, shutdown: tp.Shutdown}, nil
}

// Shutdown flushes pending spans
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.shutdown == nil {
		return nil
	}
	if err := p.shutdown(ctx); err != nil {
		return fmt.Errorf("failed to flush traces: %w", err)
	}
	return nil
}

// Tracer returns the run tracer
func (p *Provider) Tracer() trace.Tracer {
	return p.TracerProvider.Tracer(TracerName)
}
