// Package analysis runs the overtime index pipeline: it resolves the window,
// fetches commits from a Source, classifies them and scores authors.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/code996/pkg/gitlib"
	"github.com/Sumatoshi-tech/code996/pkg/identity"
	"github.com/Sumatoshi-tech/code996/pkg/observability"
	"github.com/Sumatoshi-tech/code996/pkg/overtime"
	"github.com/Sumatoshi-tech/code996/pkg/timerange"
)

// Default sample thresholds.
const (
	DefaultMinRepoCommits   = 20
	DefaultMinAuthorCommits = 5
	DefaultMinTrendCommits  = 10
	DefaultConcurrency      = 8
)

const tracerName = "code996.analysis"

// Span names.
const (
	spanAnalyze = "code996.analysis.analyze"
	spanRank    = "code996.analysis.rank"
	spanTrend   = "code996.analysis.trend"
)

var (
	// ErrInsufficientSample matches every *InsufficientSampleError.
	ErrInsufficientSample = errors.New("insufficient commit sample")
	// ErrNoAuthors is returned when a ranking has nobody left after filtering.
	ErrNoAuthors = errors.New("no authors to rank")
)

// InsufficientSampleError reports a commit set too small to score. It is an
// early-return signal, not a failure: callers print it and exit cleanly.
type InsufficientSampleError struct {
	Scope     string
	Commits   int
	Required  int
	TimeRange timerange.TimeRange
}

func (e *InsufficientSampleError) Error() string {
	return fmt.Sprintf("%s: %d commits in %s, at least %d are needed",
		e.Scope, e.Commits, e.TimeRange, e.Required)
}

// Unwrap lets errors.Is match ErrInsufficientSample.
func (e *InsufficientSampleError) Unwrap() error {
	return ErrInsufficientSample
}

// Source is the commit data source the pipeline reads from.
type Source interface {
	FetchCommits(ctx context.Context, q gitlib.Query) ([]overtime.Commit, error)
	FetchAllAuthors(ctx context.Context, tr timerange.TimeRange) ([]overtime.AuthorIdentity, error)
	FetchFirstCommitDate(ctx context.Context) (time.Time, error)
	FetchLastCommitDate(ctx context.Context) (time.Time, error)
	CurrentUser(ctx context.Context) (overtime.AuthorIdentity, error)
}

// Options are the per-run flags.
type Options struct {
	// Path is the repository location; the caller opens the Source from it.
	Path string

	// Window selection, see timerange.Options.
	AllTime bool
	Days    string
	Year    string
	Since   string
	Until   string

	// Self restricts the analysis to the user configured in the repository.
	Self bool
	// Author is a case-insensitive pattern matched against name or email.
	Author string
	// ExcludeAuthors drops rank candidates whose name or email contains any entry.
	ExcludeAuthors []string
	// Merge folds author aliases before ranking.
	Merge bool
	// SortBy is a ranking.SortMode name; empty means score.
	SortBy string
	// Limit keeps the top N ranked authors; 0 keeps all.
	Limit int

	NoMerges    bool
	FirstParent bool
}

// Window returns the time window flags.
func (o Options) Window() timerange.Options {
	return timerange.Options{
		AllTime: o.AllTime,
		Days:    o.Days,
		Year:    o.Year,
		Since:   o.Since,
		Until:   o.Until,
	}
}

// Settings are the tunables that come from configuration rather than flags.
type Settings struct {
	WorkHours        overtime.WorkHours
	Index            overtime.IndexPolicy
	MinRepoCommits   int
	MinAuthorCommits int
	MinTrendCommits  int
	Concurrency      int
	WindowDays       int
}

// DefaultSettings returns the stock tunables.
func DefaultSettings() Settings {
	return Settings{
		WorkHours:        overtime.DefaultWorkHours(),
		Index:            overtime.DefaultIndexPolicy(),
		MinRepoCommits:   DefaultMinRepoCommits,
		MinAuthorCommits: DefaultMinAuthorCommits,
		MinTrendCommits:  DefaultMinTrendCommits,
		Concurrency:      DefaultConcurrency,
		WindowDays:       timerange.DefaultWindowDays,
	}
}

// Analyzer runs analyses against one Source.
type Analyzer struct {
	source   Source
	settings Settings
	resolver *timerange.Resolver
	merger   *identity.Merger
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *observability.AnalysisMetrics
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

// WithTracer sets the tracer for run and per-author spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(a *Analyzer) { a.tracer = tracer }
}

// WithMetrics records run statistics.
func WithMetrics(metrics *observability.AnalysisMetrics) Option {
	return func(a *Analyzer) { a.metrics = metrics }
}

// WithMerger replaces the identity merger used by Rank.
func WithMerger(merger *identity.Merger) Option {
	return func(a *Analyzer) { a.merger = merger }
}

// WithClock fixes "now" for window resolution.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.resolver.Now = now }
}

// NewAnalyzer returns an analyzer reading from source.
func NewAnalyzer(source Source, settings Settings, opts ...Option) *Analyzer {
	a := &Analyzer{
		source:   source,
		settings: settings,
		resolver: timerange.NewResolver(),
		merger:   identity.NewMerger(),
		logger:   slog.Default(),
		tracer:   nooptrace.NewTracerProvider().Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(a)
	}

	a.resolver.WindowDays = settings.WindowDays
	a.resolver.Logger = a.logger

	if a.settings.Concurrency <= 0 {
		a.settings.Concurrency = DefaultConcurrency
	}

	return a
}

func (a *Analyzer) resolve(ctx context.Context, opts Options) (timerange.TimeRange, error) {
	tr, err := a.resolver.Resolve(ctx, opts.Window(), a.source)
	if err != nil {
		return timerange.TimeRange{}, fmt.Errorf("resolve window: %w", err)
	}

	return tr, nil
}

// authorScope narrows a commit query to one author: by a pattern over name
// and email, or by an exact email.
type authorScope struct {
	pattern string
	email   string
}

// authorFilter returns the author scope of a run and a human label for it.
func (a *Analyzer) authorFilter(ctx context.Context, opts Options) (authorScope, string, error) {
	switch {
	case opts.Self:
		user, err := a.source.CurrentUser(ctx)
		if err != nil {
			return authorScope{}, "", fmt.Errorf("resolve current user: %w", err)
		}

		return authorScope{email: user.Email}, user.String(), nil
	case opts.Author != "":
		return authorScope{pattern: opts.Author}, opts.Author, nil
	default:
		return authorScope{}, "", nil
	}
}

func (a *Analyzer) query(tr timerange.TimeRange, scope authorScope, opts Options) gitlib.Query {
	return gitlib.Query{
		Range:         tr,
		AuthorPattern: scope.pattern,
		AuthorEmail:   scope.email,
		NoMerges:      opts.NoMerges,
		FirstParent:   opts.FirstParent,
	}
}

// excludeMatcher reports whether an identity matches any exclusion entry.
type excludeMatcher []string

func newExcludeMatcher(entries []string) excludeMatcher {
	var m excludeMatcher

	for _, entry := range entries {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry != "" {
			m = append(m, entry)
		}
	}

	return m
}

func (m excludeMatcher) match(ident overtime.AuthorIdentity) bool {
	name := strings.ToLower(ident.Name)
	email := ident.Key()

	for _, entry := range m {
		if strings.Contains(name, entry) || strings.Contains(email, entry) {
			return true
		}
	}

	return false
}

// validatePattern rejects author patterns before any history is walked.
func validatePattern(pattern string) error {
	if pattern == "" {
		return nil
	}

	_, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return fmt.Errorf("%w: %w", gitlib.ErrInvalidAuthorPattern, err)
	}

	return nil
}
