package overtime

import (
	"errors"
	"fmt"
	"time"
)

// Default working hours, [9:00, 18:00) on the committer's local clock.
const (
	DefaultWorkStart = 9
	DefaultWorkEnd   = 18

	hoursPerDay = 24
)

// ErrInvalidWorkHours is returned for a working-hour window that cannot classify anything.
var ErrInvalidWorkHours = errors.New("invalid working hours")

// HourBucket is the working-hours dimension of a classification.
type HourBucket int

// Hour buckets.
const (
	WorkingHour HourBucket = iota
	OvertimeHour
)

// WeekBucket is the calendar-day dimension of a classification.
type WeekBucket int

// Week buckets.
const (
	Weekday WeekBucket = iota
	Weekend
)

// WorkHours is the half-open hour-of-day range [Start, End) regarded as
// normal working time on weekdays.
type WorkHours struct {
	Start int `mapstructure:"start" json:"start" yaml:"start"`
	End   int `mapstructure:"end"   json:"end"   yaml:"end"`
}

// DefaultWorkHours returns the 09:00-18:00 window.
func DefaultWorkHours() WorkHours {
	return WorkHours{Start: DefaultWorkStart, End: DefaultWorkEnd}
}

// Validate checks that the window lies within a day and is not empty.
func (w WorkHours) Validate() error {
	if w.Start < 0 || w.End > hoursPerDay || w.Start >= w.End {
		return fmt.Errorf("%w: %02d:00-%02d:00", ErrInvalidWorkHours, w.Start, w.End)
	}

	return nil
}

// Contains reports whether the hour falls inside the window.
func (w WorkHours) Contains(hour int) bool {
	return hour >= w.Start && hour < w.End
}

// IsWeekend reports whether the day is Saturday or Sunday.
func IsWeekend(day time.Weekday) bool {
	return day == time.Saturday || day == time.Sunday
}

// Classify places a commit timestamp into one cell of each partition.
// The timestamp is read on its own clock, so an author's UTC offset decides
// the hour and the day.
func Classify(when time.Time, hours WorkHours) (HourBucket, WeekBucket) {
	week := Weekday
	if IsWeekend(when.Weekday()) {
		week = Weekend
	}

	hour := OvertimeHour
	if week == Weekday && hours.Contains(when.Hour()) {
		hour = WorkingHour
	}

	return hour, week
}

// Tally classifies every commit and returns the aggregated data for the window.
func Tally(commits []Commit, hours WorkHours, since, until time.Time) ParsedData {
	data := ParsedData{Since: since, Until: until}

	for _, commit := range commits {
		data.add(commit.When, hours)
	}

	return data
}

func (d *ParsedData) add(when time.Time, hours WorkHours) {
	hour, week := Classify(when, hours)

	switch hour {
	case WorkingHour:
		d.Buckets.WorkingHour++
	case OvertimeHour:
		d.Buckets.OvertimeHour++
	}

	switch week {
	case Weekday:
		d.Buckets.Weekday++
	case Weekend:
		d.Buckets.Weekend++
	}

	d.HourHistogram[when.Hour()]++
	d.WeekdayHistogram[when.Weekday()]++
	d.TotalCommits++
}
