package gitlib

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
)

// ErrRemoteNotSupported is returned when a remote repository URI is provided.
var ErrRemoteNotSupported = errors.New("remote repositories not supported")

// ErrNotRepository is returned when no repository encloses the given path.
var ErrNotRepository = errors.New("not a git repository")

var scpLikeURI = regexp.MustCompile(`^[A-Za-z]\w*@[A-Za-z0-9][\w.]*:`)

// IsRemoteURI reports whether uri names a remote rather than a local path.
func IsRemoteURI(uri string) bool {
	return strings.Contains(uri, "://") || scpLikeURI.MatchString(uri)
}

// DiscoverRepository resolves the repository that encloses path, which may
// be the work tree root, any directory below it, or a bare repository.
func DiscoverRepository(path string) (string, error) {
	if IsRemoteURI(path) {
		return "", fmt.Errorf("%w: %s", ErrRemoteNotSupported, path)
	}

	if path == "" {
		path = "."
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}

	_, err = os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotRepository, err)
	}

	root, err := git2go.Discover(abs, false, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotRepository, abs)
	}

	return root, nil
}

// LoadRepository opens the local repository enclosing uri. Remote URIs are
// rejected.
func LoadRepository(uri string) (*Repository, error) {
	root, err := DiscoverRepository(uri)
	if err != nil {
		return nil, err
	}

	return OpenRepository(root)
}
