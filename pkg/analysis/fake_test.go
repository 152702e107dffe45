package analysis_test

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/code996/pkg/gitlib"
	"github.com/Sumatoshi-tech/code996/pkg/overtime"
	"github.com/Sumatoshi-tech/code996/pkg/timerange"
)

var errFetch = errors.New("fetch failed")

// fakeSource serves an in-memory history with the same filtering rules as
// the git source.
type fakeSource struct {
	commits []overtime.Commit
	user    overtime.AuthorIdentity
	// failFor makes per-author fetches for these lowercase emails fail.
	failFor map[string]bool
	noLast  bool

	mu      sync.Mutex
	queries []gitlib.Query
}

func (f *fakeSource) FetchCommits(_ context.Context, q gitlib.Query) ([]overtime.Commit, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	var pattern *regexp.Regexp
	if q.AuthorPattern != "" {
		pattern = regexp.MustCompile("(?i)" + q.AuthorPattern)
	}

	var out []overtime.Commit

	for _, c := range f.commits {
		if !q.Range.Contains(c.When) || (q.NoMerges && c.IsMerge) {
			continue
		}

		if pattern != nil && !pattern.MatchString(c.AuthorName) && !pattern.MatchString(c.AuthorEmail) {
			continue
		}

		if q.AuthorEmail != "" && !strings.EqualFold(c.AuthorEmail, q.AuthorEmail) {
			continue
		}

		if (pattern != nil || q.AuthorEmail != "") && f.failFor[c.Identity().Key()] {
			return nil, errFetch
		}

		out = append(out, c)
	}

	return out, nil
}

func (f *fakeSource) FetchAllAuthors(_ context.Context, tr timerange.TimeRange) ([]overtime.AuthorIdentity, error) {
	counts := map[string]int{}
	idents := map[string]overtime.AuthorIdentity{}

	for _, c := range f.commits {
		if !tr.Contains(c.When) {
			continue
		}

		key := c.Identity().Key()
		if _, ok := idents[key]; !ok {
			idents[key] = c.Identity()
		}

		counts[key]++
	}

	out := make([]overtime.AuthorIdentity, 0, len(idents))
	for _, ident := range idents {
		out = append(out, ident)
	}

	slices.SortFunc(out, func(a, b overtime.AuthorIdentity) int {
		return cmp.Or(
			cmp.Compare(counts[b.Key()], counts[a.Key()]),
			cmp.Compare(a.Name, b.Name),
			cmp.Compare(a.Key(), b.Key()),
		)
	})

	return out, nil
}

func (f *fakeSource) FetchFirstCommitDate(_ context.Context) (time.Time, error) {
	if len(f.commits) == 0 {
		return time.Time{}, gitlib.ErrEmptyRepository
	}

	first := f.commits[0].When
	for _, c := range f.commits[1:] {
		if c.When.Before(first) {
			first = c.When
		}
	}

	return first, nil
}

func (f *fakeSource) FetchLastCommitDate(_ context.Context) (time.Time, error) {
	if len(f.commits) == 0 || f.noLast {
		return time.Time{}, gitlib.ErrEmptyRepository
	}

	last := f.commits[0].When
	for _, c := range f.commits[1:] {
		if c.When.After(last) {
			last = c.When
		}
	}

	return last, nil
}

func (f *fakeSource) CurrentUser(_ context.Context) (overtime.AuthorIdentity, error) {
	if f.user.Email == "" {
		return overtime.AuthorIdentity{}, gitlib.ErrNoUserIdentity
	}

	return f.user, nil
}

// history builds commits for one author. Days are in March 2024, where the
// 4th is a Monday and the 2nd, 3rd, 9th and 10th are weekend days.
type history struct {
	commits []overtime.Commit
}

func (h *history) add(name, email string, n, day, hour int) *history {
	for i := range n {
		h.commits = append(h.commits, overtime.Commit{
			Hash:        fmt.Sprintf("%s-%03d", name, len(h.commits)),
			When:        time.Date(2024, time.March, day, hour, i%60, 0, 0, time.UTC),
			AuthorName:  name,
			AuthorEmail: email,
		})
	}

	return h
}

// aliceAndBob returns 40 commits by alice (30 working-hour weekday, 5
// weekday-evening, 5 weekend) and 6 in-hours weekday commits by bob.
func aliceAndBob() *history {
	h := &history{}

	return h.
		add("alice", "alice@example.com", 30, 5, 10).
		add("alice", "alice@example.com", 5, 6, 21).
		add("alice", "alice@example.com", 5, 9, 15).
		add("bob", "bob@example.com", 6, 7, 11)
}
