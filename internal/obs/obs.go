// Package obs wires up process-wide OpenTelemetry tracing and metrics
// providers. The engine's instrumented package (sqlstore) acquires its
// tracer/meter handles from the global otel providers via otel.Tracer/
// otel.Meter, so configuring the global providers here is enough to make
// every span and counter it emits actually go somewhere.
package obs

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Shutdown flushes and stops every provider Init configured.
type Shutdown func(context.Context) error

// Init configures global trace and metric providers that write
// human-readable output to w. Intended for `ihash serve --trace` and local
// debugging; a production deployment would swap these exporters for an
// OTLP one without touching any of the instrumented call sites.
func Init(w io.Writer) (Shutdown, error) {
	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("obs: new trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))
	otel.SetTracerProvider(tp)

	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("obs: new metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)))
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return err
		}
		return mp.Shutdown(ctx)
	}, nil
}
