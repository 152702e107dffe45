package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/code996/pkg/identity"
	"github.com/Sumatoshi-tech/code996/pkg/observability"
	"github.com/Sumatoshi-tech/code996/pkg/overtime"
	"github.com/Sumatoshi-tech/code996/pkg/ranking"
	"github.com/Sumatoshi-tech/code996/pkg/timerange"
)

// authorSlot is the fan-out result of one author. Each task writes only its own slot.
type authorSlot struct {
	stats overtime.AuthorStats
	ok    bool
	err   error
}

// Rank scores every author active in the window and returns them ordered by
// the requested sort mode. A failing author is logged and dropped without
// affecting the others. An empty result yields ErrNoAuthors.
func (a *Analyzer) Rank(ctx context.Context, opts Options) (*ranking.AuthorRankingResult, error) {
	start := time.Now()

	ctx, span := a.tracer.Start(ctx, spanRank)
	defer span.End()

	result, run, err := a.rank(ctx, opts)

	run.Duration = time.Since(start)

	failure := err
	if errors.Is(err, ErrNoAuthors) {
		failure = nil
	}

	observability.EndRun(ctx, span, a.metrics, run, failure)

	return result, err
}

func (a *Analyzer) rank(ctx context.Context, opts Options) (*ranking.AuthorRankingResult, observability.AnalysisStats, error) {
	run := observability.AnalysisStats{Op: observability.OpRank}

	mode, err := ranking.ParseSortMode(opts.SortBy)
	if err != nil {
		return nil, run, err
	}

	tr, err := a.resolve(ctx, opts)
	if err != nil {
		return nil, run, err
	}

	run.WindowMode = string(tr.Mode)

	authors, err := a.source.FetchAllAuthors(ctx, tr)
	if err != nil {
		return nil, run, fmt.Errorf("list authors: %w", err)
	}

	exclude := newExcludeMatcher(opts.ExcludeAuthors)

	candidates := make([]overtime.AuthorIdentity, 0, len(authors))
	for _, author := range authors {
		if !exclude.match(author) {
			candidates = append(candidates, author)
		}
	}

	slots := a.fanOut(ctx, tr, candidates, opts)

	err = ctx.Err()
	if err != nil {
		return nil, run, fmt.Errorf("rank authors: %w", err)
	}

	stats := make([]overtime.AuthorStats, 0, len(slots))

	for i, slot := range slots {
		switch {
		case slot.err != nil:
			run.FailedAuthors++

			a.logger.WarnContext(ctx, "author analysis failed, skipping",
				"author", candidates[i].String(), "error", slot.err)
		case slot.ok:
			run.Commits += slot.stats.TotalCommits
			stats = append(stats, slot.stats)
		}
	}

	if opts.Merge {
		mergeMap := a.merger.BuildMergeMap(identity.Identities(stats))
		stats = identity.MergeStats(stats, mergeMap)
	}

	kept := stats[:0]
	for _, s := range stats {
		if s.TotalCommits >= a.settings.MinAuthorCommits {
			kept = append(kept, s)
		}
	}

	run.Authors = len(kept)

	if len(kept) == 0 {
		return nil, run, fmt.Errorf("%w in %s (minimum %d commits each)", ErrNoAuthors, tr, a.settings.MinAuthorCommits)
	}

	result := ranking.NewResult(kept, mode, tr, opts.Limit)

	a.logger.DebugContext(ctx, "authors ranked",
		"authors", result.TotalAuthors,
		"failed", run.FailedAuthors,
		"sort_by", string(mode))

	return &result, run, nil
}

// fanOut analyzes every author concurrently, bounded by Concurrency.
func (a *Analyzer) fanOut(
	ctx context.Context, tr timerange.TimeRange, authors []overtime.AuthorIdentity, opts Options,
) []authorSlot {
	slots := make([]authorSlot, len(authors))

	var group errgroup.Group

	group.SetLimit(a.settings.Concurrency)

	for i, author := range authors {
		group.Go(func() error {
			slots[i] = a.analyzeAuthor(ctx, tr, author, opts)

			return nil
		})
	}

	_ = group.Wait() //nolint:errcheck // tasks always return nil; failures stay in their slots.

	return slots
}

func (a *Analyzer) analyzeAuthor(
	ctx context.Context, tr timerange.TimeRange, author overtime.AuthorIdentity, opts Options,
) authorSlot {
	ctx, span := a.tracer.Start(ctx, observability.SpanAuthor)
	defer span.End()

	commits, err := a.source.FetchCommits(ctx, a.query(tr, authorScope{email: author.Email}, opts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return authorSlot{err: err}
	}

	span.SetAttributes(attribute.Int("analysis.commits", len(commits)))

	if len(commits) == 0 {
		return authorSlot{}
	}

	data := overtime.Tally(commits, a.settings.WorkHours, tr.Since, tr.Until)

	index, err := a.settings.Index.Compute(data.Buckets)
	if err != nil {
		return authorSlot{err: err}
	}

	return authorSlot{stats: overtime.NewAuthorStats(author, data, index), ok: true}
}

func asInsufficient(err error) (*InsufficientSampleError, bool) {
	var insufficient *InsufficientSampleError
	if errors.As(err, &insufficient) {
		return insufficient, true
	}

	return nil, false
}
