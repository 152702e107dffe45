package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/Sumatoshi-tech/code996/pkg/observability"
	"github.com/Sumatoshi-tech/code996/pkg/overtime"
	"github.com/Sumatoshi-tech/code996/pkg/timerange"
)

// RepoReport is the result of a whole-repository (or single-author) analysis.
type RepoReport struct {
	TimeRange timerange.TimeRange  `json:"time_range"       yaml:"time_range"`
	Author    string               `json:"author,omitempty" yaml:"author,omitempty"`
	Data      overtime.ParsedData  `json:"data"             yaml:"data"`
	Result    overtime.IndexResult `json:"result"           yaml:"result"`
	WorkHours overtime.WorkHours   `json:"work_hours"       yaml:"work_hours"`

	// FirstCommit and LastCommit bound the history in all-time mode.
	FirstCommit time.Time `json:"first_commit,omitzero" yaml:"first_commit,omitempty"`
	LastCommit  time.Time `json:"last_commit,omitzero"  yaml:"last_commit,omitempty"`
}

// Analyze scores the commits in the resolved window, optionally restricted to
// one author. Fewer than MinRepoCommits commits yield *InsufficientSampleError.
func (a *Analyzer) Analyze(ctx context.Context, opts Options) (*RepoReport, error) {
	start := time.Now()

	ctx, span := a.tracer.Start(ctx, spanAnalyze)
	defer span.End()

	report, err := a.analyze(ctx, opts)

	stats := observability.AnalysisStats{Op: observability.OpAnalyze, Duration: time.Since(start)}

	var failure error

	if insufficient, ok := asInsufficient(err); ok {
		stats.Commits = insufficient.Commits
		stats.Insufficient = true
	} else if err != nil {
		failure = err
	}

	if report != nil {
		stats.Commits = report.Data.TotalCommits
		stats.WindowMode = string(report.TimeRange.Mode)
	}

	observability.EndRun(ctx, span, a.metrics, stats, failure)

	if failure != nil {
		return nil, err
	}

	return report, err
}

func (a *Analyzer) analyze(ctx context.Context, opts Options) (*RepoReport, error) {
	tr, err := a.resolve(ctx, opts)
	if err != nil {
		return nil, err
	}

	scope, label, err := a.authorFilter(ctx, opts)
	if err != nil {
		return nil, err
	}

	err = validatePattern(scope.pattern)
	if err != nil {
		return nil, err
	}

	commits, err := a.source.FetchCommits(ctx, a.query(tr, scope, opts))
	if err != nil {
		return nil, fmt.Errorf("fetch commits: %w", err)
	}

	if len(commits) < a.settings.MinRepoCommits {
		scope := "repository"
		if label != "" {
			scope = label
		}

		return nil, &InsufficientSampleError{
			Scope:     scope,
			Commits:   len(commits),
			Required:  a.settings.MinRepoCommits,
			TimeRange: tr,
		}
	}

	report := &RepoReport{TimeRange: tr, Author: label, WorkHours: a.settings.WorkHours}

	since, until := tr.Since, tr.Until
	if tr.Mode == timerange.ModeAllTime {
		report.FirstCommit, report.LastCommit = a.historySpan(ctx)
		since, until = report.FirstCommit, report.LastCommit
	}

	report.Data = overtime.Tally(commits, a.settings.WorkHours, since, until)

	report.Result, err = a.settings.Index.Compute(report.Data.Buckets)
	if err != nil {
		return nil, fmt.Errorf("compute index: %w", err)
	}

	a.logger.DebugContext(ctx, "repository analyzed",
		"commits", report.Data.TotalCommits,
		"index", report.Result.Index996Display,
		"range", tr.String())

	return report, nil
}

// historySpan looks up the first and last commit dates. Lookup failures only
// cost the report its span, so they are logged and skipped.
func (a *Analyzer) historySpan(ctx context.Context) (first, last time.Time) {
	first, err := a.source.FetchFirstCommitDate(ctx)
	if err != nil {
		a.logger.DebugContext(ctx, "first commit date unavailable", "error", err)
	}

	last, err = a.source.FetchLastCommitDate(ctx)
	if err != nil {
		a.logger.DebugContext(ctx, "last commit date unavailable", "error", err)
	}

	return first, last
}
