// Package overtime classifies commit timestamps into working/overtime and
// weekday/weekend buckets and derives the 996 overtime index from them.
package overtime

import (
	"strings"
	"time"
)

// Commit is a single commit as yielded by a commit data source.
type Commit struct {
	Hash        string
	When        time.Time
	AuthorName  string
	AuthorEmail string
	IsMerge     bool
}

// Identity returns the author identity of the commit.
func (c Commit) Identity() AuthorIdentity {
	return AuthorIdentity{Name: c.AuthorName, Email: c.AuthorEmail}
}

// AuthorIdentity is a distinct name/email pair.
type AuthorIdentity struct {
	Name  string `json:"name"  yaml:"name"`
	Email string `json:"email" yaml:"email"`
}

// Key returns the case-insensitive lookup key of the identity (its lowercase email).
func (a AuthorIdentity) Key() string {
	return strings.ToLower(strings.TrimSpace(a.Email))
}

// String formats the identity the way git prints signatures.
func (a AuthorIdentity) String() string {
	return a.Name + " <" + a.Email + ">"
}

// BucketCounts holds the two complementary partitions of a commit set.
// WorkingHour+OvertimeHour and Weekday+Weekend both equal the commit total.
type BucketCounts struct {
	WorkingHour  int `json:"working_hour"  yaml:"working_hour"`
	OvertimeHour int `json:"overtime_hour" yaml:"overtime_hour"`
	Weekday      int `json:"weekday"       yaml:"weekday"`
	Weekend      int `json:"weekend"       yaml:"weekend"`
}

// Total returns the number of commits counted.
func (b BucketCounts) Total() int {
	return b.WorkingHour + b.OvertimeHour
}

// Add returns the element-wise sum of two bucket counts.
func (b BucketCounts) Add(other BucketCounts) BucketCounts {
	return BucketCounts{
		WorkingHour:  b.WorkingHour + other.WorkingHour,
		OvertimeHour: b.OvertimeHour + other.OvertimeHour,
		Weekday:      b.Weekday + other.Weekday,
		Weekend:      b.Weekend + other.Weekend,
	}
}

// ParsedData is the classified view of one commit set. It is built once by
// Tally and never mutated afterwards.
type ParsedData struct {
	Buckets          BucketCounts `json:"buckets"           yaml:"buckets"`
	TotalCommits     int          `json:"total_commits"     yaml:"total_commits"`
	Since            time.Time    `json:"since"             yaml:"since"`
	Until            time.Time    `json:"until"             yaml:"until"`
	HourHistogram    [24]int      `json:"hour_histogram"    yaml:"hour_histogram"`
	WeekdayHistogram [7]int       `json:"weekday_histogram" yaml:"weekday_histogram"`
}

// IndexResult is the derived overtime index of a commit set.
// Index996 may be negative, which signals under-saturated work.
type IndexResult struct {
	Index996             float64 `json:"index_996"              yaml:"index_996"`
	Index996Display      string  `json:"index_996_display"      yaml:"index_996_display"`
	OvertimeRatioPercent float64 `json:"overtime_ratio_percent" yaml:"overtime_ratio_percent"`
}

// AuthorStats is the per-author result of one analysis run.
type AuthorStats struct {
	Identity             AuthorIdentity `json:"identity"               yaml:"identity"`
	TotalCommits         int            `json:"total_commits"          yaml:"total_commits"`
	Index996             float64        `json:"index_996"              yaml:"index_996"`
	OvertimeRatioPercent float64        `json:"overtime_ratio_percent" yaml:"overtime_ratio_percent"`
	WorkingHourCommits   int            `json:"working_hour_commits"   yaml:"working_hour_commits"`
	OvertimeCommits      int            `json:"overtime_commits"       yaml:"overtime_commits"`
	WeekdayCommits       int            `json:"weekday_commits"        yaml:"weekday_commits"`
	WeekendCommits       int            `json:"weekend_commits"        yaml:"weekend_commits"`
}

// NewAuthorStats assembles author stats from classified data and its index.
func NewAuthorStats(identity AuthorIdentity, data ParsedData, index IndexResult) AuthorStats {
	return AuthorStats{
		Identity:             identity,
		TotalCommits:         data.TotalCommits,
		Index996:             index.Index996,
		OvertimeRatioPercent: index.OvertimeRatioPercent,
		WorkingHourCommits:   data.Buckets.WorkingHour,
		OvertimeCommits:      data.Buckets.OvertimeHour,
		WeekdayCommits:       data.Buckets.Weekday,
		WeekendCommits:       data.Buckets.Weekend,
	}
}

// Buckets returns the bucket counts view of the stats.
func (s AuthorStats) Buckets() BucketCounts {
	return BucketCounts{
		WorkingHour:  s.WorkingHourCommits,
		OvertimeHour: s.OvertimeCommits,
		Weekday:      s.WeekdayCommits,
		Weekend:      s.WeekendCommits,
	}
}
