package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// SpanAuthor is the per-author span started inside a ranking fan-out. A
// ranking over a large history starts one per contributor, so it is dropped
// unless verbose tracing is requested.
const SpanAuthor = "code996.analysis.author"

// filteringTracerProvider wraps a real TracerProvider and replaces hot-path
// spans with no-op spans.
type filteringTracerProvider struct {
	embedded.TracerProvider

	delegate        trace.TracerProvider
	noop            trace.TracerProvider
	suppressedSpans map[string]bool
}

// NewFilteringTracerProvider wraps delegate so that per-author spans are
// dropped while the structural run spans are kept.
func NewFilteringTracerProvider(delegate trace.TracerProvider) trace.TracerProvider {
	return &filteringTracerProvider{
		delegate:        delegate,
		noop:            nooptrace.NewTracerProvider(),
		suppressedSpans: map[string]bool{SpanAuthor: true},
	}
}

// Tracer returns a tracer that drops suppressed span names.
func (f *filteringTracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return &filteringTracer{
		delegate: f.delegate.Tracer(name, opts...),
		noop:     f.noop.Tracer(name, opts...),
		suppress: f.suppressedSpans,
	}
}

type filteringTracer struct {
	embedded.Tracer

	delegate trace.Tracer
	noop     trace.Tracer
	suppress map[string]bool
}

// Start creates a span, returning a noop span for suppressed names.
func (f *filteringTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if f.suppress[name] {
		return f.noop.Start(ctx, name, opts...)
	}

	return f.delegate.Start(ctx, name, opts...)
}
