package logger

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"alpha-volume-bot/internal/trace"
)

var (
	// Global logger instance, usable before Init
	globalLogger = slog.Default()
	logLevel     slog.Level
	// Debug lines and source locations are only emitted when detailed
	detailedLogging bool
)

// Init configures the global logger from LOG_LEVEL, LOG_FORMAT and
// LOG_DETAILED. Trace ids are attached once trace.Init has run.
func Init() error {
	logLevel = parseLogLevel(getEnvOrDefault("LOG_LEVEL", "INFO"))
	detailedLogging = getEnvOrDefault("LOG_DETAILED", "false") == "true"

	// Source is added in logWithTrace so decorators can report the wrapped caller.
	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if getEnvOrDefault("LOG_FORMAT", "json") == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
	return nil
}

// SetHandler replaces the output handler, keeping the level settings.
func SetHandler(h slog.Handler) {
	globalLogger = slog.New(h)
}

// parseLogLevel converts string log level to slog.Level
func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getTraceAttrs extracts trace ID and span ID from context for logging
func getTraceAttrs(ctx context.Context) []any {
	traceID, spanID, ok := trace.GetTraceFields(ctx)
	if !ok {
		return nil
	}
	return []any{"trace_id", traceID, "span_id", spanID}
}

// Debug logs a debug message
func Debug(ctx context.Context, msg string, args ...any) {
	if !detailedLogging {
		return
	}
	logWithTrace(ctx, slog.LevelDebug, msg, 2, args...)
}

// Info logs an info message
func Info(ctx context.Context, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelInfo, msg, 2, args...)
}

// Warn logs a warning message
func Warn(ctx context.Context, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelWarn, msg, 2, args...)
}

// Error logs an error message
func Error(ctx context.Context, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelError, msg, 2, args...)
}

// ErrorWithErr logs an error message with an error object
func ErrorWithErr(ctx context.Context, msg string, err error, args ...any) {
	recordError(ctx, err)

	allArgs := append([]any{"error", err}, args...)
	logWithTrace(ctx, slog.LevelError, msg, 2, allArgs...)
}

// DebugSkip logs a debug message attributed to a caller further up the stack.
// Decorators use it so the source points at the wrapped call site.
func DebugSkip(ctx context.Context, skip int, msg string, args ...any) {
	if !detailedLogging {
		return
	}
	logWithTrace(ctx, slog.LevelDebug, msg, 2+skip, args...)
}

// InfoSkip logs an info message, skipping extra frames for the source
func InfoSkip(ctx context.Context, skip int, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelInfo, msg, 2+skip, args...)
}

// ErrorWithErrSkip logs an error, skipping extra frames for the source
func ErrorWithErrSkip(ctx context.Context, skip int, msg string, err error, args ...any) {
	recordError(ctx, err)

	allArgs := append([]any{"error", err}, args...)
	logWithTrace(ctx, slog.LevelError, msg, 2+skip, allArgs...)
}

// logWithTrace logs a message with trace ID and span ID if available
// skip parameter indicates how many stack frames to skip to get the actual caller
func logWithTrace(ctx context.Context, level slog.Level, msg string, skip int, args ...any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if traceAttrs := getTraceAttrs(ctx); traceAttrs != nil {
		args = append(traceAttrs, args...)
	}

	// Add source information if detailed logging is enabled
	if detailedLogging {
		// Skip frames: runtime.Caller -> logWithTrace -> wrapper (Debug/Info/etc) -> actual caller
		// So we need to skip 'skip' frames to get to the actual caller
		if pc, file, line, ok := runtime.Caller(skip); ok {
			fn := runtime.FuncForPC(pc)
			if fn != nil {
				args = append(args, "source", slog.GroupValue(
					slog.String("function", fn.Name()),
					slog.String("file", file),
					slog.Int("line", line),
				))
			}
		}
	}

	globalLogger.Log(ctx, level, msg, args...)
}

// Order logs an order result (always logged regardless of level)
func Order(ctx context.Context, side, price, volume, status string, fields ...any) {
	addEvent(ctx, "order_finished",
		attribute.String("side", side),
		attribute.String("price", price),
		attribute.String("volume", volume),
		attribute.String("status", status),
	)

	allFields := append([]any{
		"type", "ORDER",
		"side", side,
		"price", price,
		"volume", volume,
		"status", status,
	}, fields...)
	logWithTrace(ctx, slog.LevelInfo, "Order finished", 2, allFields...)
}

// Round logs a finished buy/sell round
func Round(ctx context.Context, seq, target int, buyStatus, sellStatus string, fields ...any) {
	addEvent(ctx, "round_finished",
		attribute.Int("seq", seq),
		attribute.Int("target", target),
		attribute.String("buy_status", buyStatus),
		attribute.String("sell_status", sellStatus),
	)

	allFields := append([]any{
		"type", "ROUND",
		"seq", seq,
		"target", target,
		"buy_status", buyStatus,
		"sell_status", sellStatus,
	}, fields...)
	logWithTrace(ctx, slog.LevelInfo, "Round finished", 2, allFields...)
}

// Halt logs the end of a run
func Halt(ctx context.Context, outcome string, completed, target int, fields ...any) {
	addEvent(ctx, "run_halted",
		attribute.String("outcome", outcome),
		attribute.Int("completed_rounds", completed),
		attribute.Int("target_rounds", target),
	)

	allFields := append([]any{
		"type", "HALT",
		"outcome", outcome,
		"completed_rounds", completed,
		"target_rounds", target,
	}, fields...)
	level := slog.LevelInfo
	if outcome != "completed" {
		level = slog.LevelWarn
	}
	logWithTrace(ctx, level, "Run halted", 2, allFields...)
}

func activeSpan(ctx context.Context) (oteltrace.Span, bool) {
	if !trace.Enabled() || ctx == nil {
		return nil, false
	}
	span := oteltrace.SpanFromContext(ctx)
	return span, span.SpanContext().IsValid()
}

func recordError(ctx context.Context, err error) {
	if span, ok := activeSpan(ctx); ok {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func addEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	if span, ok := activeSpan(ctx); ok {
		span.AddEvent(name, oteltrace.WithAttributes(attrs...))
	}
}
