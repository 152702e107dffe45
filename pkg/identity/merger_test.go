package identity_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/code996/pkg/identity"
	"github.com/Sumatoshi-tech/code996/pkg/overtime"
)

func ident(name, email string) overtime.AuthorIdentity {
	return overtime.AuthorIdentity{Name: name, Email: email}
}

func TestBuildMergeMapByName(t *testing.T) {
	t.Parallel()

	identities := []overtime.AuthorIdentity{
		ident("Alice", "alice@work.example"),
		ident("Bob", "bob@example.com"),
		ident("alice", "alice@home.example"),
	}

	mergeMap := identity.NewMerger().BuildMergeMap(identities)

	require.Len(t, mergeMap, 1)
	assert.Equal(t, identities[0], mergeMap["alice@home.example"])
	assert.NotContains(t, mergeMap, "alice@work.example")
	assert.NotContains(t, mergeMap, "bob@example.com")
}

func TestBuildMergeMapIsTransitive(t *testing.T) {
	t.Parallel()

	// a~b by email, b~c by name.
	identities := []overtime.AuthorIdentity{
		ident("Carol", "carol@example.com"),
		ident("C. Jones", "CAROL@example.com"),
		ident("c. jones", "cj@laptop.local"),
	}

	mergeMap := identity.NewMerger().BuildMergeMap(identities)

	// The second identity shares the primary's key, so only the laptop alias remains.
	require.Len(t, mergeMap, 1)
	assert.Equal(t, identities[0], mergeMap["cj@laptop.local"])
}

func TestBuildMergeMapExactSignatures(t *testing.T) {
	t.Parallel()

	merger := identity.NewMerger()
	merger.ExactSignatures = true

	mergeMap := merger.BuildMergeMap([]overtime.AuthorIdentity{
		ident("Alice", "alice@work.example"),
		ident("Alice", "alice@home.example"),
	})

	assert.Empty(t, mergeMap)
}

func TestBuildMergeMapEmptyNamesDoNotGroup(t *testing.T) {
	t.Parallel()

	mergeMap := identity.NewMerger().BuildMergeMap([]overtime.AuthorIdentity{
		ident("", "ci@example.com"),
		ident(" ", "bot@example.com"),
	})

	assert.Empty(t, mergeMap)
}

func TestLoadPeopleDict(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "people.txt")
	content := "# team aliases\n\nalice@home.example|Alice|alice@work.example\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	merger := identity.NewMerger()
	merger.ExactSignatures = true
	require.NoError(t, merger.LoadPeopleDict(path))

	identities := []overtime.AuthorIdentity{
		ident("Alice W", "alice@work.example"),
		ident("Alice H", "Alice@Home.example"),
	}

	mergeMap := merger.BuildMergeMap(identities)

	require.Len(t, mergeMap, 1)
	assert.Equal(t, identities[1], mergeMap["alice@work.example"])
}

func TestLoadPeopleDictMissingFile(t *testing.T) {
	t.Parallel()

	err := identity.NewMerger().LoadPeopleDict(filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAddRuleOnZeroValue(t *testing.T) {
	t.Parallel()

	var merger identity.Merger

	merger.ExactSignatures = true
	merger.AddRule("dave@example.com", "d@example.org")

	mergeMap := merger.BuildMergeMap([]overtime.AuthorIdentity{
		ident("D", "d@example.org"),
		ident("Dave", "dave@example.com"),
	})

	require.Len(t, mergeMap, 1)
	assert.Equal(t, "dave@example.com", mergeMap["d@example.org"].Email)
}
