package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

const (
	TracerName  = "tasktracker"
	ServiceName = "tasktracker"
)

// Span attribute keys shared by the engine and the HTTP layer.
var (
	AttrRepoID    = attribute.Key("tasktracker.repo.id")
	AttrTaskID    = attribute.Key("tasktracker.task.id")
	AttrCompleted = attribute.Key("tasktracker.task.completed")
	AttrOutcome   = attribute.Key("tasktracker.update.outcome")
)

// TracingConfig selects the span exporter: "none", "stdout" or "otlp-http".
type TracingConfig struct {
	Exporter string
	Endpoint string
	Version  string
	// Writer receives stdout exporter output; defaults to os.Stdout.
	Writer io.Writer
}

// Tracing owns the tracer provider; Shutdown must be called on exit.
type Tracing struct {
	Tracer   trace.Tracer
	shutdown func(context.Context) error
}

// NoopTracer returns a tracer that records nothing.
func NoopTracer() trace.Tracer {
	return nooptrace.NewTracerProvider().Tracer(TracerName)
}

// InitTracing installs a global tracer provider for the configured exporter.
// With exporter "none" (or empty) it returns a no-op tracer.
func InitTracing(ctx context.Context, cfg TracingConfig) (*Tracing, error) {
	if cfg.Exporter == "" || cfg.Exporter == "none" {
		return &Tracing{Tracer: NoopTracer(), shutdown: func(context.Context) error { return nil }}, nil
	}
	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return &Tracing{Tracer: tp.Tracer(TracerName), shutdown: tp.Shutdown}, nil
}

func (t *Tracing) Shutdown(ctx context.Context) error {
	if t == nil || t.shutdown == nil {
		return nil
	}
	return t.shutdown(ctx)
}

func newExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "stdout":
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		return stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	case "otlp-http":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4318"
		}
		return otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}
}
