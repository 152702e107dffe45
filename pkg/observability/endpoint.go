package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// Routes of the metrics endpoint.
const (
	MetricsPath = "/metrics"
	HealthPath  = "/healthz"
)

// PrometheusExporter owns a MeterProvider whose instruments are scraped over
// HTTP instead of pushed over OTLP.
type PrometheusExporter struct {
	handler  http.Handler
	provider *sdkmetric.MeterProvider
}

// NewPrometheusExporter creates an exporter on its own registry.
func NewPrometheusExporter() (*PrometheusExporter, error) {
	registry := prometheus.NewRegistry()

	reader, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return &PrometheusExporter{
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}, nil
}

// Meter returns the meter whose instruments are scraped.
func (p *PrometheusExporter) Meter() metric.Meter {
	return p.provider.Meter(scopeName)
}

// Shutdown releases the meter provider.
func (p *PrometheusExporter) Shutdown(ctx context.Context) error {
	err := p.provider.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown prometheus provider: %w", err)
	}

	return nil
}

// MetricsHandler serves the scrape route and a health route. Each route is
// traced with tracer and counted on red under its own operation name, so the
// endpoint reports its own scrapes. A nil tracer records no spans.
func MetricsHandler(exporter *PrometheusExporter, tracer trace.Tracer, red *REDMetrics) http.Handler {
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer(scopeName)
	}

	health := http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
	})

	mux := http.NewServeMux()
	mux.Handle("GET "+MetricsPath, instrumentRoute(MetricsPath, tracer, red, exporter.handler))
	mux.Handle("GET "+HealthPath, instrumentRoute(HealthPath, tracer, red, health))

	return mux
}

func instrumentRoute(route string, tracer trace.Tracer, red *REDMetrics, next http.Handler) http.Handler {
	op := "http " + route

	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		start := time.Now()

		ctx := otel.GetTextMapPropagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))

		ctx, span := tracer.Start(ctx, req.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(req.Method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()

		done := red.TrackInflight(ctx, op)
		defer done()

		rec := &statusRecorder{ResponseWriter: rw}
		next.ServeHTTP(rec, req.WithContext(ctx))

		status := StatusOK
		if rec.code() >= http.StatusInternalServerError {
			status = StatusError

			span.SetStatus(codes.Error, http.StatusText(rec.code()))
		}

		span.SetAttributes(semconv.HTTPResponseStatusCode(rec.code()))
		red.RecordRequest(ctx, op, status, time.Since(start))
	})
}

// statusRecorder remembers the first status code written.
type statusRecorder struct {
	http.ResponseWriter

	status int
}

func (r *statusRecorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}

	return r.status
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}

	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(buf []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}

	n, err := r.ResponseWriter.Write(buf)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}

	return n, nil
}
