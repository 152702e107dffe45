package gitlib

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/code996/pkg/overtime"
	"github.com/Sumatoshi-tech/code996/pkg/timerange"
)

// ErrInvalidAuthorPattern is returned for an author pattern that does not compile.
var ErrInvalidAuthorPattern = errors.New("invalid author pattern")

// Query selects commits.
type Query struct {
	// Range limits commits by author date. The zero value is unbounded.
	Range timerange.TimeRange
	// AuthorPattern is a case-insensitive regular expression matched against
	// the author name or email. Empty matches everyone.
	AuthorPattern string
	// AuthorEmail keeps only commits whose author email equals it, ignoring
	// case. The author name is not consulted.
	AuthorEmail string
	// NoMerges skips commits with more than one parent.
	NoMerges bool
	// FirstParent follows only the first parent of merges.
	FirstParent bool
}

// Source is the commit data source of one local repository.
//
// Every call opens its own libgit2 handle, so a Source may be used from
// several goroutines at once.
type Source struct {
	root   string
	logger *slog.Logger
}

// NewSource resolves the repository enclosing path and checks it can be opened.
func NewSource(path string, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}

	root, err := DiscoverRepository(path)
	if err != nil {
		return nil, err
	}

	repo, err := OpenRepository(root)
	if err != nil {
		return nil, err
	}

	repo.Free()

	return &Source{root: root, logger: logger}, nil
}

// Root returns the resolved repository path.
func (s *Source) Root() string {
	return s.root
}

// FetchCommits returns the commits selected by q, newest first. An empty
// repository yields no commits.
func (s *Source) FetchCommits(ctx context.Context, q Query) ([]overtime.Commit, error) {
	pattern, err := compileAuthorPattern(q.AuthorPattern)
	if err != nil {
		return nil, err
	}

	email := strings.TrimSpace(q.AuthorEmail)
	start := time.Now()

	var commits []overtime.Commit

	err = s.walk(ctx, q.FirstParent, func(c *Commit) error {
		author := c.Author()

		if !q.Range.Contains(author.When) {
			return nil
		}

		merge := c.IsMerge()
		if q.NoMerges && merge {
			return nil
		}

		if pattern != nil && !pattern.MatchString(author.Name) && !pattern.MatchString(author.Email) {
			return nil
		}

		if email != "" && !strings.EqualFold(strings.TrimSpace(author.Email), email) {
			return nil
		}

		commits = append(commits, overtime.Commit{
			Hash:        c.Hash().String(),
			When:        author.When,
			AuthorName:  author.Name,
			AuthorEmail: author.Email,
			IsMerge:     merge,
		})

		return nil
	})
	if errors.Is(err, ErrEmptyRepository) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "commits fetched",
		"count", len(commits),
		"range", q.Range.String(),
		"author", q.AuthorPattern,
		"email", q.AuthorEmail,
		"duration", time.Since(start))

	return commits, nil
}

// FetchAllAuthors lists the distinct authors (by lowercase email) that
// committed inside tr, ordered by commit count descending and then by name.
// Each author carries the most recent name/email spelling seen.
func (s *Source) FetchAllAuthors(ctx context.Context, tr timerange.TimeRange) ([]overtime.AuthorIdentity, error) {
	type tally struct {
		identity overtime.AuthorIdentity
		commits  int
	}

	byKey := make(map[string]*tally)

	err := s.walk(ctx, false, func(c *Commit) error {
		author := c.Author()
		if !tr.Contains(author.When) {
			return nil
		}

		identity := overtime.AuthorIdentity{Name: author.Name, Email: author.Email}

		entry, ok := byKey[identity.Key()]
		if !ok {
			entry = &tally{identity: identity}
			byKey[identity.Key()] = entry
		}

		entry.commits++

		return nil
	})
	if errors.Is(err, ErrEmptyRepository) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	tallies := make([]*tally, 0, len(byKey))
	for _, entry := range byKey {
		tallies = append(tallies, entry)
	}

	slices.SortFunc(tallies, func(a, b *tally) int {
		return cmp.Or(
			cmp.Compare(b.commits, a.commits),
			cmp.Compare(a.identity.Name, b.identity.Name),
			cmp.Compare(a.identity.Key(), b.identity.Key()),
		)
	})

	authors := make([]overtime.AuthorIdentity, len(tallies))
	for i, entry := range tallies {
		authors[i] = entry.identity
	}

	return authors, nil
}

// FetchFirstCommitDate returns the earliest author date in the history.
func (s *Source) FetchFirstCommitDate(ctx context.Context) (time.Time, error) {
	var first time.Time

	err := s.walk(ctx, false, func(c *Commit) error {
		when := c.Author().When
		if first.IsZero() || when.Before(first) {
			first = when
		}

		return nil
	})
	if err != nil {
		return time.Time{}, err
	}

	return first, nil
}

// FetchLastCommitDate returns the author date of the commit HEAD points to.
func (s *Source) FetchLastCommitDate(_ context.Context) (time.Time, error) {
	repo, err := OpenRepository(s.root)
	if err != nil {
		return time.Time{}, err
	}
	defer repo.Free()

	head, err := repo.Head()
	if err != nil {
		return time.Time{}, err
	}

	commit, err := repo.LookupCommit(head)
	if err != nil {
		return time.Time{}, err
	}
	defer commit.Free()

	return commit.Author().When, nil
}

// CurrentUser returns the identity configured for the repository user.
func (s *Source) CurrentUser(_ context.Context) (overtime.AuthorIdentity, error) {
	repo, err := OpenRepository(s.root)
	if err != nil {
		return overtime.AuthorIdentity{}, err
	}
	defer repo.Free()

	sig, err := repo.UserIdentity()
	if err != nil {
		return overtime.AuthorIdentity{}, err
	}

	return overtime.AuthorIdentity{Name: sig.Name, Email: sig.Email}, nil
}

func (s *Source) walk(ctx context.Context, firstParent bool, fn func(*Commit) error) error {
	repo, err := OpenRepository(s.root)
	if err != nil {
		return err
	}
	defer repo.Free()

	iter, err := repo.Log(&LogOptions{FirstParent: firstParent})
	if err != nil {
		return err
	}

	return iter.ForEach(func(c *Commit) error {
		ctxErr := ctx.Err()
		if ctxErr != nil {
			return fmt.Errorf("walk %s: %w", s.root, ctxErr)
		}

		return fn(c)
	})
}

func compileAuthorPattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil //nolint:nilnil // no pattern matches everyone.
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidAuthorPattern, pattern, err)
	}

	return re, nil
}
