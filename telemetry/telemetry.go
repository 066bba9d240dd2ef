// Package telemetry wires the OpenTelemetry tracer the rest of the module
// uses to instrument multi-step operations (recipe compilation, partition
// plans and commits, subprocess invocations).
package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies spans emitted by this module in a trace backend.
const TracerName = "github.com/flaurencin/partrecipe"

// GetTracer returns the global tracer registered under TracerName. Until
// NewExporter/otel.SetTracerProvider is called (the CLI only does so when
// --trace-enabled is set), this is otel's no-op tracer provider — spans
// started against it are free.
func GetTracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// NewExporter builds a jaeger-backed trace provider pointed at the given
// collector endpoint, tagged with the service name for this module.
func NewExporter(endpoint string) (*tracesdk.TracerProvider, error) {
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)))
	if err != nil {
		return nil, err
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(resource.NewWithAttributes(
			"",
			attribute.String("service.name", "partrecipe"),
		)),
	)

	return tp, nil
}
