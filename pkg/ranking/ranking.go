// Package ranking orders author statistics for display.
package ranking

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/code996/pkg/overtime"
	"github.com/Sumatoshi-tech/code996/pkg/timerange"
)

// Score constants.
const (
	// overtimeCap bounds the absolute overtime bonus.
	overtimeCap = 50
	// overtimeDivisor scales capped overtime commits into bonus points.
	overtimeDivisor = 5.0
	// volumeDecades is the number of log10 decades of commits needed for a
	// full commit-count factor (100 commits).
	volumeDecades = 2.0
)

// SortMode selects the ranking key.
type SortMode string

// Sort modes.
const (
	SortByIndex    SortMode = "index"
	SortByOvertime SortMode = "overtime"
	SortByCommits  SortMode = "commits"
	SortByScore    SortMode = "score"
)

// ErrUnknownSortMode is returned for an unrecognized --by value.
var ErrUnknownSortMode = errors.New("unknown sort mode")

// SortModes lists every accepted mode.
func SortModes() []SortMode {
	return []SortMode{SortByIndex, SortByOvertime, SortByCommits, SortByScore}
}

// ParseSortMode parses a --by value. An empty value selects SortByScore.
func ParseSortMode(raw string) (SortMode, error) {
	value := SortMode(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return SortByScore, nil
	}

	if slices.Contains(SortModes(), value) {
		return value, nil
	}

	return "", fmt.Errorf("%w %q: expected one of index, overtime, commits, score", ErrUnknownSortMode, raw)
}

// Score is the composite ranking key.
//
// Under-saturated authors (negative index) score their index unchanged, so
// they always rank below any author with a non-negative index. Otherwise the
// index is damped for small commit counts and a capped bonus for absolute
// overtime volume is added.
func Score(stats overtime.AuthorStats) float64 {
	if stats.Index996 < 0 {
		return stats.Index996
	}

	factor := min(1, math.Log10(float64(max(1, stats.TotalCommits)))/volumeDecades)
	bonus := float64(min(stats.OvertimeCommits, overtimeCap)) / overtimeDivisor

	return stats.Index996*factor + bonus
}

// Key returns the sort key of stats under mode.
func Key(stats overtime.AuthorStats, mode SortMode) float64 {
	switch mode {
	case SortByIndex:
		return stats.Index996
	case SortByOvertime:
		return float64(stats.OvertimeCommits)
	case SortByCommits:
		return float64(stats.TotalCommits)
	default:
		return Score(stats)
	}
}

// Sort orders stats in place by descending key. Equal keys keep their input
// order.
func Sort(stats []overtime.AuthorStats, mode SortMode) {
	slices.SortStableFunc(stats, func(a, b overtime.AuthorStats) int {
		ka, kb := Key(a, mode), Key(b, mode)

		switch {
		case ka > kb:
			return -1
		case ka < kb:
			return 1
		default:
			return 0
		}
	})
}

// AuthorRankingResult is the ordered ranking handed to rendering.
type AuthorRankingResult struct {
	Authors      []overtime.AuthorStats `json:"authors"       yaml:"authors"`
	TotalAuthors int                    `json:"total_authors" yaml:"total_authors"`
	TimeRange    timerange.TimeRange    `json:"time_range"    yaml:"time_range"`
	SortBy       SortMode               `json:"sort_by"       yaml:"sort_by"`
}

// NewResult sorts stats by mode and wraps them with the analysis window.
// When limit is positive only the first limit authors are kept; TotalAuthors
// still counts all of them.
func NewResult(stats []overtime.AuthorStats, mode SortMode, tr timerange.TimeRange, limit int) AuthorRankingResult {
	authors := slices.Clone(stats)
	Sort(authors, mode)

	total := len(authors)
	if limit > 0 && limit < total {
		authors = authors[:limit]
	}

	return AuthorRankingResult{
		Authors:      authors,
		TotalAuthors: total,
		TimeRange:    tr,
		SortBy:       mode,
	}
}
