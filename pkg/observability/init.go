package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// Providers is what a command needs to emit telemetry.
type Providers struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger *slog.Logger

	// Shutdown flushes pending telemetry. Call it once before exit.
	Shutdown func(ctx context.Context) error
}

// Init builds the logger and, when cfg.Export is enabled, OTLP trace and
// metric pipelines registered as the global providers. Without an endpoint
// the tracer and meter are no-ops.
func Init(cfg Config) (Providers, error) {
	logger := NewLogger(cfg)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Export.Enabled() {
		return Providers{
			Tracer:   nooptrace.NewTracerProvider().Tracer(scopeName),
			Meter:    noopmetric.NewMeterProvider().Meter(scopeName),
			Logger:   logger,
			Shutdown: func(context.Context) error { return nil },
		}, nil
	}

	ctx := context.Background()

	res, err := newResource(ctx, cfg)
	if err != nil {
		return Providers{}, err
	}

	tp, err := newTracerProvider(ctx, cfg, res, logger)
	if err != nil {
		return Providers{}, err
	}

	mp, err := newMeterProvider(ctx, cfg.Export, res)
	if err != nil {
		return Providers{}, errors.Join(err, tp.Shutdown(ctx))
	}

	var tracing trace.TracerProvider = tp
	if !cfg.Export.AuthorSpans {
		tracing = NewFilteringTracerProvider(tp)
	}

	otel.SetTracerProvider(tracing)
	otel.SetMeterProvider(mp)

	timeout := cfg.shutdownTimeout()

	return Providers{
		Tracer: tracing.Tracer(scopeName),
		Meter:  mp.Meter(scopeName),
		Logger: logger,
		Shutdown: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
		},
	}, nil
}

// NewLogger builds the slog logger described by cfg.Log.
func NewLogger(cfg Config) *slog.Logger {
	var out io.Writer = os.Stderr
	if cfg.Log.Output != nil {
		out = cfg.Log.Output
	}

	opts := &slog.HandlerOptions{Level: cfg.Log.Level}

	var handler slog.Handler = slog.NewTextHandler(out, opts)
	if cfg.Log.JSON {
		handler = slog.NewJSONHandler(out, opts)
	}

	return slog.New(NewTracingHandler(handler, cfg.ServiceName, cfg.Environment, cfg.Mode))
}

// Sampler picks the trace sampler for an export configuration. Remote parents
// are honored unless every run is forced on.
func Sampler(export Export) sdktrace.Sampler {
	switch {
	case export.SampleAll:
		return sdktrace.AlwaysSample()
	case export.SampleRatio > 0 && export.SampleRatio < 1:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(export.SampleRatio))
	default:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		attribute.String("code996.mode", string(cfg.Mode)),
	}

	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}

	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}

	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	return res, nil
}

func newTracerProvider(
	ctx context.Context, cfg Config, res *resource.Resource, logger *slog.Logger,
) (*sdktrace.TracerProvider, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Export.Endpoint)}
	if cfg.Export.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	if len(cfg.Export.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Export.Headers))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	// Redactions are logged only while debugging traces.
	var redactLog *slog.Logger
	if cfg.Export.SampleAll {
		redactLog = logger
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(NewRedactingProcessor(sdktrace.NewBatchSpanProcessor(exporter), redactLog)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(cfg.Export)),
	), nil
}

func newMeterProvider(ctx context.Context, export Export, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(export.Endpoint)}
	if export.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	if len(export.Headers) > 0 {
		opts = append(opts, otlpmetricgrpc.WithHeaders(export.Headers))
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	), nil
}
