package logger

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	tr "grid-backtester/internal/trace"
)

var (
	// Global logger instance
	globalLogger = slog.Default()
	// Log level controlled by environment variable
	logLevel slog.Level
	// Whether detailed logging is enabled
	detailedLogging bool
)

// LogConfig holds logging configuration
type LogConfig struct {
	Level           string // DEBUG, INFO, WARN, ERROR
	Format          string // json or text
	DetailedLogging bool   // Enable detailed logs
}

// Init initializes the global logger based on environment variables
func Init() error {
	return InitWithConfig(LoadConfigFromEnv())
}

// LoadConfigFromEnv loads logging configuration from environment variables
func LoadConfigFromEnv() LogConfig {
	return LogConfig{
		Level:           getEnvOrDefault("LOG_LEVEL", "INFO"),
		Format:          getEnvOrDefault("LOG_FORMAT", "json"),
		DetailedLogging: getEnvOrDefault("LOG_DETAILED", "false") == "true",
	}
}

// InitWithConfig initializes the logger with specific configuration
func InitWithConfig(config LogConfig) error {
	logLevel = parseLogLevel(config.Level)
	detailedLogging = config.DetailedLogging

	// Source is added manually in logWithTrace to get the real caller
	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: false,
	}

	var handler slog.Handler
	if config.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
	return nil
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

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
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

// InfoSkip logs an info message attributing it skip frames further up the stack.
// Used by the observability wrappers.
func InfoSkip(ctx context.Context, skip int, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelInfo, msg, 2+skip, args...)
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
	errorWithErr(ctx, msg, err, 3, args...)
}

// ErrorWithErrSkip is ErrorWithErr for wrappers.
func ErrorWithErrSkip(ctx context.Context, skip int, msg string, err error, args ...any) {
	errorWithErr(ctx, msg, err, 3+skip, args...)
}

func errorWithErr(ctx context.Context, msg string, err error, skip int, args ...any) {
	// Record error in span if present
	if tr.Enabled() {
		span := trace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}

	allArgs := append([]any{"error", err}, args...)
	logWithTrace(ctx, slog.LevelError, msg, skip, allArgs...)
}

// logWithTrace logs a message with trace ID and span ID if available.
// skip is the number of stack frames between runtime.Caller and the real caller.
func logWithTrace(ctx context.Context, level slog.Level, msg string, skip int, args ...any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if traceID, spanID, ok := tr.GetTraceFields(ctx); ok {
		args = append([]any{"trace_id", traceID, "span_id", spanID}, args...)
	}

	if detailedLogging {
		if pc, file, line, ok := runtime.Caller(skip); ok {
			if fn := runtime.FuncForPC(pc); fn != nil {
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

// OperationTimer measures an operation with an OpenTelemetry span
type OperationTimer struct {
	ctx    context.Context
	span   trace.Span
	start  time.Time
	fields []any
}

// StartOperation starts timing an operation with an OpenTelemetry span
func StartOperation(ctx context.Context, operation string, fields ...any) *OperationTimer {
	ctx, span := tr.StartSpan(ctx, operation)
	if tr.Enabled() {
		span.SetAttributes(toAttributes(fields)...)
	}

	Debug(ctx, "Operation started", append([]any{"operation", operation}, fields...)...)

	return &OperationTimer{
		ctx:    ctx,
		span:   span,
		start:  time.Now(),
		fields: fields,
	}
}

// End completes the operation timer and logs the duration
func (ot *OperationTimer) End(additionalFields ...any) {
	duration := time.Since(ot.start)

	if tr.Enabled() {
		ot.span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
		ot.span.SetAttributes(toAttributes(additionalFields)...)
		ot.span.SetStatus(codes.Ok, "completed")
		ot.span.End()
	}

	fields := append(append([]any{}, ot.fields...), "duration_ms", duration.Milliseconds())
	fields = append(fields, additionalFields...)
	Debug(ot.ctx, "Operation completed", fields...)
}

// EndWithError completes the operation timer with an error
func (ot *OperationTimer) EndWithError(err error, additionalFields ...any) {
	duration := time.Since(ot.start)

	if tr.Enabled() {
		ot.span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
		ot.span.RecordError(err)
		ot.span.SetStatus(codes.Error, err.Error())
		ot.span.End()
	}

	fields := append(append([]any{}, ot.fields...), "duration_ms", duration.Milliseconds(), "error", err)
	fields = append(fields, additionalFields...)
	logWithTrace(ot.ctx, slog.LevelError, "Operation failed", 2, fields...)
}

// GetContext returns the context with the span
func (ot *OperationTimer) GetContext() context.Context {
	return ot.ctx
}

func toAttributes(fields []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		switch v := fields[i+1].(type) {
		case string:
			attrs = append(attrs, attribute.String(key, v))
		case int:
			attrs = append(attrs, attribute.Int(key, v))
		case int64:
			attrs = append(attrs, attribute.Int64(key, v))
		case uint64:
			attrs = append(attrs, attribute.Int64(key, int64(v)))
		case float64:
			attrs = append(attrs, attribute.Float64(key, v))
		case bool:
			attrs = append(attrs, attribute.Bool(key, v))
		}
	}
	return attrs
}

// Trade logs an executed grid signal. Emitted only with detailed logging on,
// a long backtest produces one per signal.
func Trade(ctx context.Context, symbol, side string, level int, amount, price float64, fields ...any) {
	if tr.Enabled() {
		span := trace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			span.AddEvent("trade_executed", trace.WithAttributes(
				attribute.String("symbol", symbol),
				attribute.String("side", side),
				attribute.Int("level", level),
				attribute.Float64("amount", amount),
				attribute.Float64("price", price),
			))
		}
	}

	allFields := append([]any{
		"type", "TRADE",
		"symbol", symbol,
		"side", side,
		"level", level,
		"amount", amount,
		"price", price,
	}, fields...)
	Debug(ctx, "Trade executed", allFields...)
}

// Risk logs a clamp, rejection or skipped-sample event
func Risk(ctx context.Context, symbol, eventType string, fields ...any) {
	if tr.Enabled() {
		span := trace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			span.AddEvent("risk_event", trace.WithAttributes(
				attribute.String("symbol", symbol),
				attribute.String("event_type", eventType),
			))
		}
	}

	allFields := append([]any{
		"type", "RISK",
		"symbol", symbol,
		"event_type", eventType,
	}, fields...)
	logWithTrace(ctx, slog.LevelWarn, "Risk event", 2, allFields...)
}

// IsDebugEnabled returns whether debug logging is enabled
func IsDebugEnabled() bool {
	return detailedLogging
}
