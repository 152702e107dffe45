package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Analysis run operations.
const (
	OpAnalyze = "analyze"
	OpRank    = "rank"
	OpTrend   = "trend"
)

const resultInsufficient = "insufficient"

// AnalysisStats summarizes one analyze, rank or trend run.
type AnalysisStats struct {
	// Op is OpAnalyze, OpRank or OpTrend.
	Op string
	// WindowMode is how the analysis window was chosen.
	WindowMode string
	// Commits is the number of commits classified.
	Commits int
	// Authors is the number of authors that produced statistics.
	Authors int
	// FailedAuthors is the number of authors dropped after a fetch error.
	FailedAuthors int
	// Months is the number of trend points.
	Months int
	// Insufficient marks a run skipped for a too small sample.
	Insufficient bool
	// Failed marks a run that ended in an error.
	Failed   bool
	Duration time.Duration
}

func (s AnalysisStats) result() string {
	switch {
	case s.Failed:
		return StatusError
	case s.Insufficient:
		return resultInsufficient
	default:
		return StatusOK
	}
}

// SpanAttributes describes the run on its span. Only the fields that apply
// to the operation are included.
func (s AnalysisStats) SpanAttributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("analysis.op", s.Op),
		attribute.Int("analysis.commits", s.Commits),
		attribute.String("analysis.result", s.result()),
	}

	if s.WindowMode != "" {
		attrs = append(attrs, attribute.String("window.mode", s.WindowMode))
	}

	switch s.Op {
	case OpRank:
		attrs = append(attrs,
			attribute.Int("analysis.authors", s.Authors),
			attribute.Int("analysis.failed_authors", s.FailedAuthors))
	case OpTrend:
		attrs = append(attrs, attribute.Int("analysis.months", s.Months))
	}

	return attrs
}

// AnalysisMetrics holds the instruments fed by finished analysis runs.
type AnalysisMetrics struct {
	commits  metric.Int64Counter
	authors  metric.Int64Counter
	failed   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewAnalysisMetrics creates the analysis instruments on mt.
func NewAnalysisMetrics(mt metric.Meter) (*AnalysisMetrics, error) {
	in := &instruments{meter: mt}

	am := &AnalysisMetrics{
		commits:  in.counter("code996.analysis.commits.total", "Commits classified", "{commit}"),
		authors:  in.counter("code996.analysis.authors.total", "Authors with computed statistics", "{author}"),
		failed:   in.counter("code996.analysis.authors.failed.total", "Authors dropped after a data source error", "{author}"),
		duration: in.seconds("code996.analysis.run.duration.seconds", "Analysis run duration"),
	}

	if in.err != nil {
		return nil, in.err
	}

	return am, nil
}

// RecordRun records the statistics of a finished run. A nil receiver
// records nothing.
func (am *AnalysisMetrics) RecordRun(ctx context.Context, stats AnalysisStats) {
	if am == nil {
		return
	}

	op := metric.WithAttributes(attribute.String(attrOp, stats.Op))

	am.commits.Add(ctx, int64(stats.Commits), op)
	am.authors.Add(ctx, int64(stats.Authors), op)
	am.failed.Add(ctx, int64(stats.FailedAuthors), op)
	am.duration.Record(ctx, stats.Duration.Seconds(), metric.WithAttributes(
		attribute.String(attrOp, stats.Op),
		attribute.String("result", stats.result()),
	))
}

// EndRun annotates the run span with stats, marks it failed when failure is
// set and records stats on am. It does not end the span.
func EndRun(ctx context.Context, span trace.Span, am *AnalysisMetrics, stats AnalysisStats, failure error) {
	if failure != nil {
		stats.Failed = true

		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Error())
	}

	span.SetAttributes(stats.SpanAttributes()...)

	am.RecordRun(ctx, stats)
}
