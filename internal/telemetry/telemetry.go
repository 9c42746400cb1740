// Package telemetry wires the optional OTLP tracer provider. Every peer of
// a ring reports under the same service name; the node's advertised
// address becomes the service instance id, which is how spans from
// different peers of one lookup chain are told apart in the backend.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// Config holds configuration for OpenTelemetry.
type Config struct {
	Enabled        bool    `env:"OTEL_ENABLED" env-default:"false"`
	ServiceName    string  `env:"OTEL_SERVICE_NAME" env-default:"chordnode"`
	ServiceVersion string  `env:"OTEL_SERVICE_VERSION" env-default:"0.0.1"`
	Environment    string  `env:"APP_ENV" env-default:"development"`
	Endpoint       string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"localhost:4317"`
	// SampleRatio bounds the share of lookup chains traced; a busy ring
	// produces one span per hop, so full sampling is for debugging only.
	SampleRatio float64 `env:"OTEL_SAMPLE_RATIO" env-default:"1.0" validate:"gte=0,lte=1"`
}

// Init initializes the tracer provider for one node and returns a shutdown
// function. When tracing is disabled it returns a no-op shutdown.
func Init(cfg Config, nodeAddr string) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			semconv.ServiceInstanceIDKey.String(nodeAddr),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	// Parent-based sampling keeps a lookup chain all-or-nothing: once the
	// first hop decides, downstream peers follow its span context.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}
