package gitlib

import (
	"errors"
	"io"

	git2go "github.com/libgit2/git2go/v34"
)

// Commit wraps a libgit2 commit.
type Commit struct {
	commit *git2go.Commit
}

// Hash returns the commit hash.
func (c *Commit) Hash() Hash {
	return HashFromOid(c.commit.Id())
}

// Author returns the commit author.
func (c *Commit) Author() Signature {
	return signatureFrom(c.commit.Author())
}

// Committer returns the commit committer.
func (c *Commit) Committer() Signature {
	return signatureFrom(c.commit.Committer())
}

// Message returns the commit message.
func (c *Commit) Message() string {
	return c.commit.Message()
}

// NumParents returns the number of parent commits.
func (c *Commit) NumParents() int {
	return int(c.commit.ParentCount()) //nolint:gosec // parent counts fit in int.
}

// IsMerge reports whether the commit has more than one parent.
func (c *Commit) IsMerge() bool {
	return c.NumParents() > 1
}

// Free releases the commit resources. It is safe to call more than once.
func (c *Commit) Free() {
	if c.commit != nil {
		c.commit.Free()
		c.commit = nil
	}
}

// CommitIter iterates over commits reachable from HEAD, newest first.
type CommitIter struct {
	walk *git2go.RevWalk
	repo *Repository
}

// Next returns the next commit, or io.EOF once the walk is exhausted or the
// iterator is closed. The caller frees the returned commit.
func (ci *CommitIter) Next() (*Commit, error) {
	for ci.walk != nil {
		oid := new(git2go.Oid)

		err := ci.walk.Next(oid)
		if err != nil {
			ci.Close()

			break
		}

		commit, err := ci.repo.repo.LookupCommit(oid)
		if err != nil {
			continue
		}

		return &Commit{commit: commit}, nil
	}

	return nil, io.EOF
}

// ForEach calls the callback for each remaining commit and frees it
// afterwards. Iteration stops at the first callback error.
func (ci *CommitIter) ForEach(cb func(*Commit) error) error {
	defer ci.Close()

	for {
		commit, err := ci.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		cbErr := cb(commit)
		commit.Free()

		if cbErr != nil {
			return cbErr
		}
	}
}

// Close releases the walker. It is safe to call more than once.
func (ci *CommitIter) Close() {
	if ci.walk != nil {
		ci.walk.Free()
		ci.walk = nil
	}
}
