package trace

import (
	"context"
	"io"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "grid-backtester"

var (
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
	enabled        bool
)

// TraceConfig selects where spans go. A nil Writer means stdout.
type TraceConfig struct {
	Enabled     bool
	Pretty      bool
	SampleRatio float64
	Writer      io.Writer
}

func LoadConfigFromEnv() TraceConfig {
	ratio, err := strconv.ParseFloat(getEnv("LOG_TRACING_SAMPLE_RATIO", "1"), 64)
	if err != nil {
		ratio = 1
	}
	return TraceConfig{
		Enabled:     getEnv("LOG_TRACING_ENABLED", "false") == "true",
		Pretty:      getEnv("LOG_TRACING_PRETTY", "true") == "true",
		SampleRatio: ratio,
	}
}

func Init() error {
	return InitWithConfig(LoadConfigFromEnv())
}

func InitWithConfig(cfg TraceConfig) error {
	enabled = cfg.Enabled
	if !enabled {
		return nil
	}

	opts := []stdouttrace.Option{}
	if cfg.Pretty {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	if cfg.Writer != nil {
		opts = append(opts, stdouttrace.WithWriter(cfg.Writer))
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		enabled = false
		return err
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		enabled = false
		return err
	}

	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(tracerProvider)
	tracer = otel.Tracer(serviceName)
	return nil
}

// Shutdown flushes pending spans and disables tracing.
func Shutdown(ctx context.Context) error {
	if tracerProvider == nil {
		return nil
	}
	err := tracerProvider.Shutdown(ctx)
	tracerProvider, tracer, enabled = nil, nil, false
	return err
}

// StartSpan returns the parent span unchanged when tracing is off.
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !enabled || tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName, opts...)
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
