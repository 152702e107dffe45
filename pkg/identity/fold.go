package identity

import (
	"github.com/Sumatoshi-tech/code996/pkg/overtime"
)

// Fold combines two stats records of the same person into a new one.
//
// Counts are summed. The index is the commit-weighted mean of both inputs and
// the overtime ratio is recomputed from the summed counts, so the result does
// not depend on fold order. The identity of acc is kept.
func Fold(acc, incoming overtime.AuthorStats) overtime.AuthorStats {
	total := acc.TotalCommits + incoming.TotalCommits

	out := acc
	out.TotalCommits = total
	out.WorkingHourCommits += incoming.WorkingHourCommits
	out.OvertimeCommits += incoming.OvertimeCommits
	out.WeekdayCommits += incoming.WeekdayCommits
	out.WeekendCommits += incoming.WeekendCommits

	if total > 0 {
		out.Index996 = (acc.Index996*float64(acc.TotalCommits) +
			incoming.Index996*float64(incoming.TotalCommits)) / float64(total)
	}

	out.OvertimeRatioPercent = overtime.OvertimeRatio(out.Buckets())

	return out
}

// MergeStats folds every aliased record into its primary. Records are
// redirected by looking up their identity key in mergeMap; the output keeps
// the order in which each primary group was first seen.
//
// Only records named by mergeMap, as alias or as primary, are grouped. Any
// other record stays on its own even when its email matches another one, so
// a map without entries returns stats unchanged. Records without an email
// are never redirected.
func MergeStats(stats []overtime.AuthorStats, mergeMap map[string]overtime.AuthorIdentity) []overtime.AuthorStats {
	primaries := make(map[string]bool, len(mergeMap))
	for _, target := range mergeMap {
		primaries[groupSlot(target)] = true
	}

	merged := make([]overtime.AuthorStats, 0, len(stats))
	slots := make(map[string]int, len(stats))

	for _, s := range stats {
		primary := s.Identity

		slot := groupSlot(s.Identity)
		if target, ok := mergeMap[s.Identity.Key()]; ok && s.Identity.Key() != "" {
			primary = target
			slot = groupSlot(target)
		} else if !primaries[slot] {
			slot = "solo\x00" + s.Identity.Name + "\x00" + s.Identity.Key()
		}

		if i, ok := slots[slot]; ok {
			merged[i] = Fold(merged[i], s)

			continue
		}

		s.Identity = primary
		slots[slot] = len(merged)
		merged = append(merged, s)
	}

	return merged
}

// groupSlot keys a merge group by the primary's email, or by its name when
// the primary has no email.
func groupSlot(primary overtime.AuthorIdentity) string {
	if key := primary.Key(); key != "" {
		return "group\x00" + key
	}

	return "group\x00\x00" + primary.Name
}

// Identities lists the identities of the given stats in order.
func Identities(stats []overtime.AuthorStats) []overtime.AuthorIdentity {
	out := make([]overtime.AuthorIdentity, len(stats))
	for i, s := range stats {
		out[i] = s.Identity
	}

	return out
}
