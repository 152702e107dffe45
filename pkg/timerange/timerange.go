// Package timerange resolves user-facing window options (--days, --year,
// --since/--until, --all-time) into a concrete analysis window.
//
// All arithmetic happens on whole UTC days. Since and Until are the UTC
// midnights of the first and the last included day.
package timerange

import (
	"errors"
	"fmt"
	"time"
)

// Mode tells how a window was chosen.
type Mode string

// Window modes.
const (
	ModeAllTime        Mode = "all-time"
	ModeCustom         Mode = "custom"
	ModeAutoLastCommit Mode = "auto-last-commit"
	ModeFallback       Mode = "fallback"
)

const day = 24 * time.Hour

// Epoch is the earliest date a window may start at.
var Epoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// Input error kinds. Test with errors.Is.
var (
	ErrInvalidDays = errors.New("invalid --days value")
	ErrInvalidYear = errors.New("invalid --year value")
	ErrInvalidDate = errors.New("invalid date")
)

// InputError is a malformed user-supplied window option. It is fatal: the
// value is never defaulted or retried.
type InputError struct {
	Kind   error
	Value  string
	Reason string
}

func (e *InputError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%v %q", e.Kind, e.Value)
	}

	return fmt.Sprintf("%v %q: %s", e.Kind, e.Value, e.Reason)
}

func (e *InputError) Unwrap() error {
	return e.Kind
}

// TimeRange is a resolved analysis window. Since and Until are zero only in
// all-time mode, where they mean "unbounded".
type TimeRange struct {
	Since time.Time `json:"since,omitzero" yaml:"since,omitempty"`
	Until time.Time `json:"until,omitzero" yaml:"until,omitempty"`
	Mode  Mode      `json:"mode"           yaml:"mode"`
	Note  string    `json:"note,omitempty" yaml:"note,omitempty"`
}

// Bounded reports whether the window has both ends.
func (r TimeRange) Bounded() bool {
	return !r.Since.IsZero() && !r.Until.IsZero()
}

// UntilExclusive returns the first instant after the last included day, or
// the zero time for an open end.
func (r TimeRange) UntilExclusive() time.Time {
	if r.Until.IsZero() {
		return time.Time{}
	}

	return r.Until.Add(day)
}

// Contains reports whether an instant falls inside the window.
func (r TimeRange) Contains(when time.Time) bool {
	if !r.Since.IsZero() && when.Before(r.Since) {
		return false
	}

	if !r.Until.IsZero() && !when.Before(r.UntilExclusive()) {
		return false
	}

	return true
}

// Days returns the number of whole days covered, or 0 when unbounded.
func (r TimeRange) Days() int {
	if !r.Bounded() {
		return 0
	}

	return int(r.Until.Sub(r.Since)/day) + 1
}

func (r TimeRange) String() string {
	if !r.Bounded() {
		return "all time"
	}

	return r.Since.Format(time.DateOnly) + " .. " + r.Until.Format(time.DateOnly)
}

// Day truncates an instant to the UTC midnight of its UTC calendar date.
func Day(t time.Time) time.Time {
	u := t.UTC()

	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// AddDays shifts a day by n calendar days.
func AddDays(d time.Time, n int) time.Time {
	return d.AddDate(0, 0, n)
}
