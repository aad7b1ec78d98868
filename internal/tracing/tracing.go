// Package tracing installs the global OpenTelemetry tracer provider.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config selects the OTLP collector and sampling.
type Config struct {
	Endpoint    string
	Insecure    bool
	ServiceName string
	Version     string
	SampleRatio float64
}

// ShutdownFunc flushes pending spans and stops the provider.
type ShutdownFunc func(ctx context.Context) error

// Option customizes the provider built by Setup.
type Option func(*[]sdktrace.TracerProviderOption)

// WithSpanProcessor adds a span processor alongside the exporter.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(opts *[]sdktrace.TracerProviderOption) {
		*opts = append(*opts, sdktrace.WithSpanProcessor(sp))
	}
}

// Setup installs a tracer provider exporting to cfg.Endpoint over OTLP gRPC.
// With an empty endpoint and no options the global no-op provider is kept.
func Setup(ctx context.Context, cfg Config, opts ...Option) (ShutdownFunc, error) {
	if cfg.Endpoint == "" && len(opts) == 0 {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	}

	if cfg.Endpoint != "" {
		clientOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("creating OTLP trace exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}

	for _, opt := range opts {
		opt(&tpOpts)
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}
