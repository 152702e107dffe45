package timerange

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultWindowDays is the span used by the auto and fallback tiers.
const DefaultWindowDays = 365

var yearPattern = regexp.MustCompile(`^(\d{4})(?:-(\d{4}))?$`)

// Options are the raw window flags as the user typed them.
// The zero value selects automatic resolution.
type Options struct {
	// AllTime analyzes the whole history and wins over every other option.
	AllTime bool
	// Days is a positive integer: the N most recent days ending today.
	Days string
	// Year is "YYYY" or "YYYY-YYYY".
	Year string
	// Since and Until are dates (YYYY-MM-DD or RFC3339); either may be empty.
	Since string
	Until string
}

// LastCommitDateProvider looks up the date of the newest commit.
type LastCommitDateProvider interface {
	FetchLastCommitDate(ctx context.Context) (time.Time, error)
}

// Resolver turns Options into a TimeRange.
type Resolver struct {
	// Now returns the current instant. Nil uses time.Now.
	Now func() time.Time
	// WindowDays is the span of the generic, auto and fallback windows.
	WindowDays int
	// Logger receives tier fallthrough notes. Nil uses slog.Default().
	Logger *slog.Logger
}

// NewResolver returns a resolver using the wall clock and a one-year window.
func NewResolver() *Resolver {
	return &Resolver{Now: time.Now, WindowDays: DefaultWindowDays}
}

// Resolve applies the tiers in priority order: all-time, days, year,
// explicit since/until, last commit date, fallback. Only malformed user
// input produces an error; provider failures fall through to the next tier.
func (r *Resolver) Resolve(ctx context.Context, opts Options, provider LastCommitDateProvider) (TimeRange, error) {
	today := Day(r.now())

	switch {
	case opts.AllTime:
		return TimeRange{Mode: ModeAllTime}, nil
	case strings.TrimSpace(opts.Days) != "":
		days, err := ParseDays(opts.Days)
		if err != nil {
			return TimeRange{}, err
		}

		return CalculateDaysRange(days, today), nil
	case strings.TrimSpace(opts.Year) != "":
		return ParseYearOption(opts.Year)
	case opts.Since != "" || opts.Until != "":
		return r.explicit(opts, today)
	}

	if provider != nil {
		last, err := provider.FetchLastCommitDate(ctx)
		if err == nil && !last.IsZero() {
			return r.fromLastCommit(last), nil
		}

		r.logger().DebugContext(ctx, "last commit date unavailable, using fallback window", "error", err)
	}

	return TimeRange{
		Since: AddDays(today, -r.windowDays()),
		Until: today,
		Mode:  ModeFallback,
		Note:  fmt.Sprintf("no commit date available, analyzing the last %d days", r.windowDays()),
	}, nil
}

// explicit fills a missing bound from the other one: since defaults to
// WindowDays before until, until defaults to today.
func (r *Resolver) explicit(opts Options, today time.Time) (TimeRange, error) {
	tr := TimeRange{Until: today, Mode: ModeCustom}

	if opts.Until != "" {
		until, err := ParseDate(opts.Until)
		if err != nil {
			return TimeRange{}, err
		}

		tr.Until = until
	}

	if opts.Since != "" {
		since, err := ParseDate(opts.Since)
		if err != nil {
			return TimeRange{}, err
		}

		tr.Since = since
	} else {
		tr.Since = AddDays(tr.Until, -r.windowDays())
		if tr.Since.Before(Epoch) {
			tr.Since = Epoch
		}
	}

	if tr.Since.After(tr.Until) {
		return TimeRange{}, &InputError{
			Kind:   ErrInvalidDate,
			Value:  tr.Since.Format(time.DateOnly) + ".." + tr.Until.Format(time.DateOnly),
			Reason: "since is after until",
		}
	}

	return tr, nil
}

func (r *Resolver) fromLastCommit(last time.Time) TimeRange {
	until := Day(last)

	since := AddDays(until, -r.windowDays())
	if since.Before(Epoch) {
		since = Epoch
	}

	return TimeRange{
		Since: since,
		Until: until,
		Mode:  ModeAutoLastCommit,
		Note: fmt.Sprintf("analyzing the %d days up to the last commit on %s",
			r.windowDays(), until.Format(time.DateOnly)),
	}
}

func (r *Resolver) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}

	return r.Now()
}

func (r *Resolver) windowDays() int {
	if r.WindowDays <= 0 {
		return DefaultWindowDays
	}

	return r.WindowDays
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}

	return r.Logger
}

// ParseDays parses a --days value. Only positive integers are accepted.
func ParseDays(raw string) (int, error) {
	value := strings.TrimSpace(raw)

	days, err := strconv.Atoi(value)
	if err != nil {
		return 0, &InputError{Kind: ErrInvalidDays, Value: raw, Reason: "must be a positive integer"}
	}

	if days <= 0 {
		return 0, &InputError{Kind: ErrInvalidDays, Value: raw, Reason: "must be greater than zero"}
	}

	return days, nil
}

// CalculateDaysRange returns the N most recent whole days ending on today,
// both ends included.
func CalculateDaysRange(days int, today time.Time) TimeRange {
	until := Day(today)

	return TimeRange{
		Since: AddDays(until, -(days - 1)),
		Until: until,
		Mode:  ModeCustom,
	}
}

// ParseYearOption parses "YYYY" or "YYYY-YYYY" into a window covering the
// whole calendar year(s).
func ParseYearOption(raw string) (TimeRange, error) {
	value := strings.TrimSpace(raw)

	match := yearPattern.FindStringSubmatch(value)
	if match == nil {
		return TimeRange{}, &InputError{Kind: ErrInvalidYear, Value: raw, Reason: "expected YYYY or YYYY-YYYY"}
	}

	first, _ := strconv.Atoi(match[1])

	last := first
	if match[2] != "" {
		last, _ = strconv.Atoi(match[2])
	}

	if first < Epoch.Year() || last < Epoch.Year() {
		return TimeRange{}, &InputError{Kind: ErrInvalidYear, Value: raw, Reason: "years before 1970 are not supported"}
	}

	if first > last {
		return TimeRange{}, &InputError{Kind: ErrInvalidYear, Value: raw, Reason: "start year is after end year"}
	}

	return TimeRange{
		Since: time.Date(first, time.January, 1, 0, 0, 0, 0, time.UTC),
		Until: time.Date(last, time.December, 31, 0, 0, 0, 0, time.UTC),
		Mode:  ModeCustom,
	}, nil
}

// ParseDate parses YYYY-MM-DD or RFC3339 into a UTC day.
func ParseDate(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)

	parsed, err := time.Parse(time.DateOnly, value)
	if err == nil {
		return parsed, nil
	}

	parsed, err = time.Parse(time.RFC3339, value)
	if err == nil {
		return Day(parsed), nil
	}

	return time.Time{}, &InputError{Kind: ErrInvalidDate, Value: raw, Reason: "expected YYYY-MM-DD"}
}
