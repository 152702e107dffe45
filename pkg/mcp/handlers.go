package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/code996/pkg/analysis"
	"github.com/Sumatoshi-tech/code996/pkg/gitlib"
	"github.com/Sumatoshi-tech/code996/pkg/identity"
	"github.com/Sumatoshi-tech/code996/pkg/observability"
)

// runner opens a repository per call and runs one analysis on it.
type runner struct {
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *observability.AnalysisMetrics
	settings analysis.Settings
	merger   *identity.Merger
}

func newRunner(deps ServerDeps) *runner {
	r := &runner{
		logger:   deps.Logger,
		tracer:   deps.Tracer,
		metrics:  deps.AnalysisMetrics,
		settings: analysis.DefaultSettings(),
		merger:   deps.Merger,
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	if deps.Settings != nil {
		r.settings = *deps.Settings
	}

	return r
}

func (r *runner) analyzer(repoPath string) (*analysis.Analyzer, error) {
	err := validateRepoPath(repoPath)
	if err != nil {
		return nil, err
	}

	source, err := gitlib.NewSource(repoPath, r.logger)
	if errors.Is(err, gitlib.ErrNotRepository) {
		return nil, fmt.Errorf("%w: %s", ErrNotGitRepo, repoPath)
	}

	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	opts := []analysis.Option{analysis.WithLogger(r.logger), analysis.WithMetrics(r.metrics)}
	if r.tracer != nil {
		opts = append(opts, analysis.WithTracer(r.tracer))
	}

	if r.merger != nil {
		opts = append(opts, analysis.WithMerger(r.merger))
	}

	return analysis.NewAnalyzer(source, r.settings, opts...), nil
}

// handleAnalyze processes code996_analyze tool calls.
func (r *runner) handleAnalyze(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input AnalyzeInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	analyzer, err := r.analyzer(input.RepoPath)
	if err != nil {
		return errorResult(err)
	}

	rep, err := analyzer.Analyze(ctx, input.options())

	return finish(rep, err)
}

// handleRank processes code996_rank tool calls.
func (r *runner) handleRank(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input RankInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	analyzer, err := r.analyzer(input.RepoPath)
	if err != nil {
		return errorResult(err)
	}

	res, err := analyzer.Rank(ctx, input.options())

	return finish(res, err)
}

// handleTrend processes code996_trend tool calls.
func (r *runner) handleTrend(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input TrendInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	analyzer, err := r.analyzer(input.RepoPath)
	if err != nil {
		return errorResult(err)
	}

	rep, err := analyzer.Trend(ctx, input.options())

	return finish(rep, err)
}

// finish maps an analysis outcome to a tool result. Samples too small to
// score and empty rankings are answers, not tool failures.
func finish(value any, err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	switch {
	case errors.Is(err, analysis.ErrInsufficientSample), errors.Is(err, analysis.ErrNoAuthors):
		return noticeResult(err.Error())
	case err != nil:
		return errorResult(err)
	default:
		return jsonResult(value)
	}
}
