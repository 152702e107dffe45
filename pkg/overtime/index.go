package overtime

import (
	"errors"
	"fmt"
	"strconv"
)

// Default index policy parameters.
const (
	DefaultMultiplier             = 3.0
	DefaultSaturationCommits      = 50
	DefaultUnderSaturationPenalty = 20.0

	percentScale = 100
)

// Sentinel errors for index computation.
var (
	ErrEmptySample   = errors.New("no commits to compute an index from")
	ErrInvalidPolicy = errors.New("invalid index policy")
)

// IndexPolicy holds the tunable constants of the composite index.
//
// With ratio r = OvertimeRatio(counts) the index is
//
//	r > 0:  r * Multiplier
//	r = 0:  -UnderSaturationPenalty * (1 - min(1, total/SaturationCommits))
//
// Every r > 0 maps above every r = 0 value and the positive branch is linear
// with a positive slope, so the index is monotonically increasing in r.
type IndexPolicy struct {
	Multiplier             float64 `mapstructure:"multiplier"               json:"multiplier"`
	SaturationCommits      int     `mapstructure:"saturation_commits"       json:"saturation_commits"`
	UnderSaturationPenalty float64 `mapstructure:"under_saturation_penalty" json:"under_saturation_penalty"`
}

// DefaultIndexPolicy returns the stock index constants.
func DefaultIndexPolicy() IndexPolicy {
	return IndexPolicy{
		Multiplier:             DefaultMultiplier,
		SaturationCommits:      DefaultSaturationCommits,
		UnderSaturationPenalty: DefaultUnderSaturationPenalty,
	}
}

// Validate checks the policy constants.
func (p IndexPolicy) Validate() error {
	switch {
	case p.Multiplier <= 0:
		return fmt.Errorf("%w: multiplier must be positive, got %v", ErrInvalidPolicy, p.Multiplier)
	case p.SaturationCommits <= 0:
		return fmt.Errorf("%w: saturation commits must be positive, got %d", ErrInvalidPolicy, p.SaturationCommits)
	case p.UnderSaturationPenalty < 0:
		return fmt.Errorf("%w: penalty must not be negative, got %v", ErrInvalidPolicy, p.UnderSaturationPenalty)
	}

	return nil
}

// AmendedOvertime redistributes weekend volume into the overtime count:
// round(x + y*n/(m+n)), rounding halves up. Integer arithmetic keeps the
// result exact.
func AmendedOvertime(counts BucketCounts) int {
	days := counts.Weekday + counts.Weekend
	if days == 0 {
		return 0
	}

	numerator := counts.OvertimeHour*days + counts.WorkingHour*counts.Weekend

	return (2*numerator + days) / (2 * days)
}

// OvertimeRatio returns the weekend-corrected overtime percentage, rounded up.
// The result lies in [0, 100]; an empty count yields 0.
func OvertimeRatio(counts BucketCounts) float64 {
	total := counts.Total()
	if total == 0 {
		return 0
	}

	amended := AmendedOvertime(counts)

	return float64((amended*percentScale + total - 1) / total)
}

// Compute derives the index result of one commit set. Callers must enforce
// their minimum sample size first; an empty set yields ErrEmptySample.
func (p IndexPolicy) Compute(counts BucketCounts) (IndexResult, error) {
	total := counts.Total()
	if total == 0 {
		return IndexResult{}, ErrEmptySample
	}

	ratio := OvertimeRatio(counts)
	index := p.index(ratio, total)

	return IndexResult{
		Index996:             index,
		Index996Display:      FormatIndex(index),
		OvertimeRatioPercent: ratio,
	}, nil
}

func (p IndexPolicy) index(ratio float64, total int) float64 {
	if ratio > 0 {
		return ratio * p.Multiplier
	}

	if p.SaturationCommits <= 0 {
		return 0
	}

	deficit := 1 - min(1, float64(total)/float64(p.SaturationCommits))
	if deficit <= 0 || p.UnderSaturationPenalty == 0 {
		return 0
	}

	return -p.UnderSaturationPenalty * deficit
}

// FormatIndex renders an index with one decimal place.
func FormatIndex(index float64) string {
	return strconv.FormatFloat(index, 'f', 1, 64)
}
