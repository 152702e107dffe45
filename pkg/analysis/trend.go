package analysis

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Sumatoshi-tech/code996/pkg/observability"
	"github.com/Sumatoshi-tech/code996/pkg/overtime"
	"github.com/Sumatoshi-tech/code996/pkg/timerange"
)

// TrendPoint is one calendar month of a trend.
type TrendPoint struct {
	Month   time.Time             `json:"month"           yaml:"month"`
	Commits int                   `json:"commits"         yaml:"commits"`
	Buckets overtime.BucketCounts `json:"buckets"         yaml:"buckets"`
	Result  overtime.IndexResult  `json:"result,omitzero" yaml:"result,omitempty"`
	// Insufficient marks months below MinTrendCommits; Result is zero for them.
	Insufficient bool `json:"insufficient,omitempty" yaml:"insufficient,omitempty"`
}

// TrendReport is the monthly overtime series over a window.
type TrendReport struct {
	TimeRange timerange.TimeRange `json:"time_range"       yaml:"time_range"`
	Author    string              `json:"author,omitempty" yaml:"author,omitempty"`
	Points    []TrendPoint        `json:"points"           yaml:"points"`
}

// Trend splits the window into calendar months and scores each one. Months
// are keyed by the commit's own local date and listed oldest first; every
// month the window touches gets a point, empty or not.
func (a *Analyzer) Trend(ctx context.Context, opts Options) (*TrendReport, error) {
	start := time.Now()

	ctx, span := a.tracer.Start(ctx, spanTrend)
	defer span.End()

	report, err := a.trend(ctx, opts)

	stats := observability.AnalysisStats{Op: observability.OpTrend, Duration: time.Since(start)}

	var failure error

	if insufficient, ok := asInsufficient(err); ok {
		stats.Commits = insufficient.Commits
		stats.Insufficient = true
	} else if err != nil {
		failure = err
	}

	if report != nil {
		for _, point := range report.Points {
			stats.Commits += point.Commits
		}

		stats.Months = len(report.Points)
		stats.WindowMode = string(report.TimeRange.Mode)
	}

	observability.EndRun(ctx, span, a.metrics, stats, failure)

	if failure != nil {
		return nil, err
	}

	return report, err
}

func (a *Analyzer) trend(ctx context.Context, opts Options) (*TrendReport, error) {
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
		return nil, &InsufficientSampleError{
			Scope:     "trend",
			Commits:   len(commits),
			Required:  a.settings.MinRepoCommits,
			TimeRange: tr,
		}
	}

	byMonth := make(map[time.Time][]overtime.Commit)
	for _, commit := range commits {
		month := monthOf(commit.When)
		byMonth[month] = append(byMonth[month], commit)
	}

	months := monthSpan(tr, byMonth)
	points := make([]TrendPoint, 0, len(months))

	for _, month := range months {
		point, pointErr := a.trendPoint(month, byMonth[month])
		if pointErr != nil {
			return nil, pointErr
		}

		points = append(points, point)
	}

	return &TrendReport{TimeRange: tr, Author: label, Points: points}, nil
}

func (a *Analyzer) trendPoint(month time.Time, commits []overtime.Commit) (TrendPoint, error) {
	data := overtime.Tally(commits, a.settings.WorkHours, month, month.AddDate(0, 1, -1))
	point := TrendPoint{Month: month, Commits: data.TotalCommits, Buckets: data.Buckets}

	if data.TotalCommits < a.settings.MinTrendCommits {
		point.Insufficient = true

		return point, nil
	}

	result, err := a.settings.Index.Compute(data.Buckets)
	if err != nil {
		return TrendPoint{}, fmt.Errorf("compute index for %s: %w", month.Format("2006-01"), err)
	}

	point.Result = result

	return point, nil
}

func monthOf(when time.Time) time.Time {
	return time.Date(when.Year(), when.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// monthSpan lists every month from the window start (or first commit) to the
// window end (or last commit).
func monthSpan(tr timerange.TimeRange, byMonth map[time.Time][]overtime.Commit) []time.Time {
	seen := make([]time.Time, 0, len(byMonth))
	for month := range byMonth {
		seen = append(seen, month)
	}

	slices.SortFunc(seen, func(x, y time.Time) int { return x.Compare(y) })

	if len(seen) == 0 {
		return nil
	}

	first, last := seen[0], seen[len(seen)-1]

	if !tr.Since.IsZero() && monthOf(tr.Since).Before(first) {
		first = monthOf(tr.Since)
	}

	if !tr.Until.IsZero() && monthOf(tr.Until).After(last) {
		last = monthOf(tr.Until)
	}

	var months []time.Time
	for month := first; !month.After(last); month = month.AddDate(0, 1, 0) {
		months = append(months, month)
	}

	return months
}
