package cmd

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/ticobot/ticobot/config"
)

const tracerShutdownTimeout = 5 * time.Second

// setupTracing installs an OTLP/HTTP trace exporter as the global tracer
// provider. The returned function flushes and shuts the exporter down; it is
// a no-op when tracing is disabled.
func setupTracing(ctx context.Context, cfg *config.Config) func() {
	if !cfg.OpenTelemetry.Enabled {
		return func() {}
	}

	opts := []otlptracehttp.Option{}
	if cfg.OpenTelemetry.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.OpenTelemetry.Endpoint))
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		log.Fatalf("Failed to create OTLP trace exporter: %v", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("ticobot"),
			semconv.ServiceVersion(config.Version),
		)),
	)
	otel.SetTracerProvider(provider)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), tracerShutdownTimeout,
		)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Error shutting down tracer provider: %v", err)
		}
	}
}
