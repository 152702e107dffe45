package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/code996/pkg/identity"
	"github.com/Sumatoshi-tech/code996/pkg/overtime"
)

const tolerance = 1e-9

func stats(email string, index float64, working, overtimeCommits, weekday, weekend int) overtime.AuthorStats {
	counts := overtime.BucketCounts{
		WorkingHour:  working,
		OvertimeHour: overtimeCommits,
		Weekday:      weekday,
		Weekend:      weekend,
	}

	return overtime.AuthorStats{
		Identity:             overtime.AuthorIdentity{Name: "Alice", Email: email},
		TotalCommits:         counts.Total(),
		Index996:             index,
		OvertimeRatioPercent: overtime.OvertimeRatio(counts),
		WorkingHourCommits:   working,
		OvertimeCommits:      overtimeCommits,
		WeekdayCommits:       weekday,
		WeekendCommits:       weekend,
	}
}

func assertSameStats(t *testing.T, want, got overtime.AuthorStats) {
	t.Helper()

	assert.Equal(t, want.TotalCommits, got.TotalCommits)
	assert.Equal(t, want.Buckets(), got.Buckets())
	assert.InDelta(t, want.Index996, got.Index996, tolerance)
	assert.InDelta(t, want.OvertimeRatioPercent, got.OvertimeRatioPercent, tolerance)
}

func TestFold(t *testing.T) {
	t.Parallel()

	a := stats("a@example.com", 105, 30, 10, 35, 5)
	b := stats("b@example.com", -17.6, 6, 0, 6, 0)

	got := identity.Fold(a, b)

	assert.Equal(t, a.Identity, got.Identity)
	assert.Equal(t, 46, got.TotalCommits)
	assert.Equal(t, overtime.BucketCounts{WorkingHour: 36, OvertimeHour: 10, Weekday: 41, Weekend: 5}, got.Buckets())
	assert.InDelta(t, (105*40-17.6*6)/46, got.Index996, tolerance)
	assert.InDelta(t, overtime.OvertimeRatio(got.Buckets()), got.OvertimeRatioPercent, tolerance)

	// Fold must not alias its inputs.
	assert.Equal(t, 40, a.TotalCommits)
}

func TestFoldIsCommutativeAndAssociative(t *testing.T) {
	t.Parallel()

	a := stats("a@example.com", 105, 30, 10, 35, 5)
	b := stats("b@example.com", -17.6, 6, 0, 6, 0)
	c := stats("c@example.com", 42.5, 3, 9, 8, 4)

	want := identity.Fold(identity.Fold(a, b), c)

	orders := [][3]overtime.AuthorStats{
		{a, c, b}, {b, a, c}, {b, c, a}, {c, a, b}, {c, b, a},
	}

	for _, order := range orders {
		assertSameStats(t, want, identity.Fold(identity.Fold(order[0], order[1]), order[2]))
		assertSameStats(t, want, identity.Fold(order[0], identity.Fold(order[1], order[2])))
	}
}

func TestFoldEmptyRecords(t *testing.T) {
	t.Parallel()

	got := identity.Fold(overtime.AuthorStats{}, overtime.AuthorStats{})
	assert.Zero(t, got.TotalCommits)
	assert.Zero(t, got.Index996)
	assert.Zero(t, got.OvertimeRatioPercent)
}

func TestMergeStatsRedirectsAliases(t *testing.T) {
	t.Parallel()

	primary := overtime.AuthorIdentity{Name: "Alice", Email: "a@example.com"}

	input := []overtime.AuthorStats{
		stats("b@example.com", -17.6, 6, 0, 6, 0),
		stats("x@example.com", 12, 10, 2, 12, 0),
		stats("a@example.com", 105, 30, 10, 35, 5),
	}
	input[1].Identity.Name = "Xavier"

	mergeMap := map[string]overtime.AuthorIdentity{"b@example.com": primary}

	merged := identity.MergeStats(input, mergeMap)

	require.Len(t, merged, 2)
	assert.Equal(t, primary, merged[0].Identity)
	assert.Equal(t, 46, merged[0].TotalCommits)
	assert.Equal(t, input[1], merged[1])
}

func TestMergeStatsOrderIndependent(t *testing.T) {
	t.Parallel()

	primary := overtime.AuthorIdentity{Name: "Alice", Email: "a@example.com"}
	mergeMap := map[string]overtime.AuthorIdentity{
		"b@example.com": primary,
		"c@example.com": primary,
	}

	a := stats("a@example.com", 105, 30, 10, 35, 5)
	b := stats("b@example.com", -17.6, 6, 0, 6, 0)
	c := stats("c@example.com", 42.5, 3, 9, 8, 4)

	want := identity.MergeStats([]overtime.AuthorStats{a, b, c}, mergeMap)
	require.Len(t, want, 1)

	for _, order := range [][]overtime.AuthorStats{{c, b, a}, {b, a, c}, {c, a, b}} {
		got := identity.MergeStats(order, mergeMap)
		require.Len(t, got, 1)
		assert.Equal(t, primary, got[0].Identity)
		assertSameStats(t, want[0], got[0])
	}
}

func TestMergeStatsCanonicalOnlyIsNoop(t *testing.T) {
	t.Parallel()

	named := func(name string, s overtime.AuthorStats) overtime.AuthorStats {
		s.Identity.Name = name

		return s
	}

	tests := []struct {
		name  string
		input []overtime.AuthorStats
	}{
		{
			name: "distinct emails",
			input: []overtime.AuthorStats{
				stats("a@example.com", 105, 30, 10, 35, 5),
				named("Bob", stats("b@example.com", -17.6, 6, 0, 6, 0)),
			},
		},
		{
			name: "empty emails",
			input: []overtime.AuthorStats{
				stats("", -16, 10, 0, 10, 0),
				named("Bob", stats("", -17.6, 6, 0, 6, 0)),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mergeMap := identity.NewMerger().BuildMergeMap(identity.Identities(tt.input))
			require.Empty(t, mergeMap)

			assert.Equal(t, tt.input, identity.MergeStats(tt.input, mergeMap))
		})
	}
}

func TestMergeStatsEmptyEmailPrimaryKeepsStrangersApart(t *testing.T) {
	t.Parallel()

	primary := stats("", 30, 10, 10, 20, 0)
	alias := stats("alice@work.example", 0, 10, 0, 10, 0)
	stranger := stats("", -17.6, 6, 0, 6, 0)
	stranger.Identity.Name = "Bob"

	input := []overtime.AuthorStats{primary, alias, stranger}

	mergeMap := identity.NewMerger().BuildMergeMap(identity.Identities(input))
	require.Len(t, mergeMap, 1)

	merged := identity.MergeStats(input, mergeMap)
	require.Len(t, merged, 2)
	assert.Equal(t, primary.Identity, merged[0].Identity)
	assert.Equal(t, 30, merged[0].TotalCommits)
	assert.Equal(t, stranger, merged[1])
}
