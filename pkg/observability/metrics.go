package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Request outcome labels.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

const (
	attrOp     = "op"
	attrStatus = "status"
)

// secondsBuckets spans a small repository answered in milliseconds up to a
// ranking over a large monorepo that takes minutes.
var secondsBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// instruments creates instruments on one meter and remembers the first
// failure, so a constructor checks a single error at the end.
type instruments struct {
	meter metric.Meter
	err   error
}

func (in *instruments) counter(name, description, unit string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	in.keep(name, err)

	return c
}

func (in *instruments) gauge(name, description, unit string) metric.Int64UpDownCounter {
	g, err := in.meter.Int64UpDownCounter(name, metric.WithDescription(description), metric.WithUnit(unit))
	in.keep(name, err)

	return g
}

func (in *instruments) seconds(name, description string) metric.Float64Histogram {
	h, err := in.meter.Float64Histogram(name,
		metric.WithDescription(description),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(secondsBuckets...),
	)
	in.keep(name, err)

	return h
}

func (in *instruments) keep(name string, err error) {
	if err != nil && in.err == nil {
		in.err = &InstrumentError{Name: name, Err: err}
	}
}

// InstrumentError reports an instrument the meter refused to create.
type InstrumentError struct {
	Name string
	Err  error
}

func (e *InstrumentError) Error() string {
	return "create " + e.Name + ": " + e.Err.Error()
}

func (e *InstrumentError) Unwrap() error {
	return e.Err
}

// REDMetrics counts rate, errors and duration of the requests a long-running
// code996 process serves: MCP tool calls and metrics endpoint scrapes.
type REDMetrics struct {
	requests metric.Int64Counter
	errors   metric.Int64Counter
	inflight metric.Int64UpDownCounter
	duration metric.Float64Histogram
}

// NewREDMetrics creates the request instruments on mt.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	in := &instruments{meter: mt}

	rm := &REDMetrics{
		requests: in.counter("code996.requests.total", "Requests served", "{request}"),
		errors:   in.counter("code996.errors.total", "Requests that failed", "{error}"),
		inflight: in.gauge("code996.inflight.requests", "Requests in progress", "{request}"),
		duration: in.seconds("code996.request.duration.seconds", "Request duration"),
	}

	if in.err != nil {
		return nil, in.err
	}

	return rm, nil
}

// RecordRequest records one finished request. A nil receiver records nothing.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, elapsed time.Duration) {
	if rm == nil {
		return
	}

	opAttr := attribute.String(attrOp, op)

	rm.requests.Add(ctx, 1, metric.WithAttributes(opAttr, attribute.String(attrStatus, status)))
	rm.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(opAttr, attribute.String(attrStatus, status)))

	if status == StatusError {
		rm.errors.Add(ctx, 1, metric.WithAttributes(opAttr))
	}
}

// TrackInflight counts op as in progress until the returned func is called.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	if rm == nil {
		return func() {}
	}

	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflight.Add(ctx, 1, attrs)

	return func() { rm.inflight.Add(ctx, -1, attrs) }
}
