package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/code996/pkg/observability"
)

func newManualMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() { require.NoError(t, mp.Shutdown(context.Background())) })

	return mp, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func sumValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()

	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}

	return total
}

func TestREDMetrics_RecordRequest(t *testing.T) {
	t.Parallel()

	mp, reader := newManualMeter(t)

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	red.RecordRequest(ctx, "code996_rank", observability.StatusOK, 100*time.Millisecond)
	red.RecordRequest(ctx, "code996_rank", observability.StatusError, time.Second)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(2), sumValue(t, findMetric(rm, "code996.requests.total")))
	assert.Equal(t, int64(1), sumValue(t, findMetric(rm, "code996.errors.total")))
	assert.NotNil(t, findMetric(rm, "code996.request.duration.seconds"))
}

func TestREDMetrics_TrackInflight(t *testing.T) {
	t.Parallel()

	mp, reader := newManualMeter(t)

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	done := red.TrackInflight(context.Background(), "code996_analyze")
	assert.Equal(t, int64(1), sumValue(t, findMetric(collectMetrics(t, reader), "code996.inflight.requests")))

	done()
	assert.Equal(t, int64(0), sumValue(t, findMetric(collectMetrics(t, reader), "code996.inflight.requests")))
}

func TestREDMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	var red *observability.REDMetrics

	red.RecordRequest(context.Background(), "op", observability.StatusOK, time.Millisecond)
	red.TrackInflight(context.Background(), "op")()
}

func TestAnalysisMetrics_RecordRun(t *testing.T) {
	t.Parallel()

	mp, reader := newManualMeter(t)

	am, err := observability.NewAnalysisMetrics(mp.Meter("test"))
	require.NoError(t, err)

	am.RecordRun(context.Background(), observability.AnalysisStats{
		Op:            "rank",
		Commits:       46,
		Authors:       2,
		FailedAuthors: 1,
		Duration:      250 * time.Millisecond,
	})

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(46), sumValue(t, findMetric(rm, "code996.analysis.commits.total")))
	assert.Equal(t, int64(2), sumValue(t, findMetric(rm, "code996.analysis.authors.total")))
	assert.Equal(t, int64(1), sumValue(t, findMetric(rm, "code996.analysis.authors.failed.total")))

	duration := findMetric(rm, "code996.analysis.run.duration.seconds")
	require.NotNil(t, duration)

	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestAnalysisMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var am *observability.AnalysisMetrics

	am.RecordRun(context.Background(), observability.AnalysisStats{Op: "trend"})
}

func TestAnalysisStats_SpanAttributes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		stats   observability.AnalysisStats
		want    map[string]any
		missing []string
	}{
		{
			name:    "analyze",
			stats:   observability.AnalysisStats{Op: observability.OpAnalyze, WindowMode: "year", Commits: 120},
			want:    map[string]any{"analysis.op": "analyze", "analysis.commits": int64(120), "analysis.result": "ok", "window.mode": "year"},
			missing: []string{"analysis.authors", "analysis.months"},
		},
		{
			name:    "rank",
			stats:   observability.AnalysisStats{Op: observability.OpRank, Commits: 46, Authors: 2, FailedAuthors: 1},
			want:    map[string]any{"analysis.authors": int64(2), "analysis.failed_authors": int64(1)},
			missing: []string{"window.mode", "analysis.months"},
		},
		{
			name:    "insufficient trend",
			stats:   observability.AnalysisStats{Op: observability.OpTrend, Months: 6, Insufficient: true},
			want:    map[string]any{"analysis.months": int64(6), "analysis.result": "insufficient"},
			missing: []string{"analysis.authors"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := make(map[string]any)
			for _, kv := range tt.stats.SpanAttributes() {
				got[string(kv.Key)] = kv.Value.AsInterface()
			}

			for key, want := range tt.want {
				assert.Equal(t, want, got[key], key)
			}

			for _, key := range tt.missing {
				assert.NotContains(t, got, key)
			}
		})
	}
}

func TestEndRun_MarksFailedRuns(t *testing.T) {
	t.Parallel()

	spans := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(spans))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	mp, reader := newManualMeter(t)

	am, err := observability.NewAnalysisMetrics(mp.Meter("test"))
	require.NoError(t, err)

	tracer := tp.Tracer("test")
	ctx := context.Background()

	_, ok := tracer.Start(ctx, "code996.analysis.analyze")
	observability.EndRun(ctx, ok, am, observability.AnalysisStats{Op: observability.OpAnalyze, Commits: 30}, nil)
	ok.End()

	_, failed := tracer.Start(ctx, "code996.analysis.trend")
	observability.EndRun(ctx, failed, am, observability.AnalysisStats{Op: observability.OpTrend}, errors.New("bad revision"))
	failed.End()

	got := spans.GetSpans()
	require.Len(t, got, 2)

	assert.Equal(t, codes.Unset, got[0].Status.Code)
	assert.Equal(t, "ok", spanAttrMap(got[0])["analysis.result"])
	assert.Empty(t, got[0].Events)

	assert.Equal(t, codes.Error, got[1].Status.Code)
	assert.Equal(t, "bad revision", got[1].Status.Description)
	assert.Equal(t, "error", spanAttrMap(got[1])["analysis.result"])
	require.Len(t, got[1].Events, 1)

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(30), sumValue(t, findMetric(rm, "code996.analysis.commits.total")))

	duration := findMetric(rm, "code996.analysis.run.duration.seconds")
	require.NotNil(t, duration)

	hist, isHist := duration.Data.(metricdata.Histogram[float64])
	require.True(t, isHist)

	results := make(map[string]uint64)

	for _, dp := range hist.DataPoints {
		result, _ := dp.Attributes.Value("result")
		results[result.AsString()] += dp.Count
	}

	assert.Equal(t, map[string]uint64{"ok": 1, "error": 1}, results)
}
