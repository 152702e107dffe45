package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/code996/pkg/observability"
)

func TestFilteringTracerProvider_DropsAuthorSpans(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	base := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	tracer := observability.NewFilteringTracerProvider(base).Tracer("code996.analysis")

	ctx, run := tracer.Start(context.Background(), "code996.analysis.rank")
	_, author := tracer.Start(ctx, observability.SpanAuthor)
	author.End()
	run.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "code996.analysis.rank", spans[0].Name)
}
