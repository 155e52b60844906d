// Package trace owns the process tracer provider. Spans started inside a
// trade run carry the run id, so one run can be followed across the engine,
// order and page layers.
package trace

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultServiceName = "alpha-volume-bot"

	// RunIDKey tags every span started within a trade run.
	RunIDKey = attribute.Key("run.id")
	// RoundKey tags spans of one buy/sell round.
	RoundKey = attribute.Key("round.seq")
)

type Options struct {
	ServiceName string
	Version     string
}

var (
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
	enabled        bool
)

type runKey struct{}

// Init installs a stdout exporter unless LOG_TRACING_ENABLED is "false".
func Init(opts Options) error {
	if getEnv("LOG_TRACING_ENABLED", "true") != "true" {
		enabled = false
		return nil
	}
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return err
	}
	return install(opts, sdktrace.NewBatchSpanProcessor(exporter))
}

func install(opts Options, sp sdktrace.SpanProcessor) error {
	if opts.ServiceName == "" {
		opts.ServiceName = DefaultServiceName
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(opts.Version),
	}
	// Two bots on one host are told apart by instance.
	if host, err := os.Hostname(); err == nil {
		attrs = append(attrs, semconv.HostName(host))
	}
	attrs = append(attrs, semconv.ProcessPID(os.Getpid()))

	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		return err
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	tracer = tracerProvider.Tracer(opts.ServiceName)
	enabled = true
	return nil
}

func Shutdown(ctx context.Context) error {
	if tracerProvider != nil {
		return tracerProvider.Shutdown(ctx)
	}
	return nil
}

// WithRun marks ctx as belonging to a trade run.
func WithRun(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runKey{}, runID)
}

// RunID returns the run id set by WithRun.
func RunID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(runKey{}).(string)
	return id, ok && id != ""
}

// StartSpan starts a span, tagging it with the run id when ctx carries one.
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !enabled || tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	if id, ok := RunID(ctx); ok {
		opts = append(opts, trace.WithAttributes(RunIDKey.String(id)))
	}
	return tracer.Start(ctx, spanName, opts...)
}

// StartRound starts the span of one buy/sell round.
func StartRound(ctx context.Context, seq int) (context.Context, trace.Span) {
	return StartSpan(ctx, "engine.Round", trace.WithAttributes(RoundKey.Int(seq)))
}

func Enabled() bool {
	return enabled
}

func GetTraceFields(ctx context.Context) (traceID, spanID string, ok bool) {
	if !enabled {
		return "", "", false
	}
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return "", "", false
	}
	return span.SpanContext().TraceID().String(),
		span.SpanContext().SpanID().String(),
		true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
