package gitlib

import (
	"errors"
	"fmt"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
)

// Repository errors.
var (
	ErrEmptyRepository = errors.New("repository has no commits")
	ErrNoUserIdentity  = errors.New("user.name and user.email are not configured")
)

// Repository wraps a libgit2 repository.
type Repository struct {
	repo *git2go.Repository
	path string
}

// OpenRepository opens a git repository at the given path.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Path returns the repository path.
func (r *Repository) Path() string {
	return r.path
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Head returns the commit HEAD points to. An unborn HEAD yields
// ErrEmptyRepository.
func (r *Repository) Head() (Hash, error) {
	unborn, err := r.repo.IsHeadUnborn()
	if err == nil && unborn {
		return Hash{}, ErrEmptyRepository
	}

	ref, err := r.repo.Head()
	if err != nil {
		return Hash{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return HashFromOid(ref.Target()), nil
}

// LookupCommit returns the commit with the given hash.
func (r *Repository) LookupCommit(hash Hash) (*Commit, error) {
	commit, err := r.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup commit: %w", err)
	}

	return &Commit{commit: commit}, nil
}

// LogOptions configures the commit log iteration.
type LogOptions struct {
	FirstParent bool // Follow only first parent (git log --first-parent).
}

// Log returns a commit iterator starting from HEAD, newest first.
func (r *Repository) Log(opts *LogOptions) (*CommitIter, error) {
	head, err := r.Head()
	if err != nil {
		return nil, err
	}

	walk, err := r.repo.Walk()
	if err != nil {
		return nil, fmt.Errorf("create revwalk: %w", err)
	}

	err = walk.Push(head.ToOid())
	if err != nil {
		walk.Free()

		return nil, fmt.Errorf("push HEAD to revwalk: %w", err)
	}

	walk.Sorting(git2go.SortTime | git2go.SortTopological)

	if opts != nil && opts.FirstParent {
		walk.SimplifyFirstParent()
	}

	return &CommitIter{walk: walk, repo: r}, nil
}

// UserIdentity returns user.name and user.email from the repository
// configuration, falling back to the global levels as git does.
func (r *Repository) UserIdentity() (Signature, error) {
	cfg, err := r.repo.Config()
	if err != nil {
		return Signature{}, fmt.Errorf("read git config: %w", err)
	}
	defer cfg.Free()

	name, nameErr := cfg.LookupString("user.name")
	email, emailErr := cfg.LookupString("user.email")

	name, email = strings.TrimSpace(name), strings.TrimSpace(email)

	if (nameErr != nil || name == "") && (emailErr != nil || email == "") {
		return Signature{}, ErrNoUserIdentity
	}

	return Signature{Name: name, Email: email}, nil
}
