// Package identity groups author identities that belong to one person and
// reconciles their statistics.
package identity

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/code996/pkg/overtime"
)

const (
	dictCommentPrefix = "#"
	dictSeparator     = "|"
)

// Merger decides which identities are aliases of one another.
//
// Two identities are grouped when they share a lowercase email, share a
// non-empty lowercase name (unless ExactSignatures is set), or are listed on
// the same people-dict line. Grouping is transitive.
type Merger struct {
	// ExactSignatures disables matching by display name.
	ExactSignatures bool

	// dict maps a lowercase name or email to its people-dict line.
	dict map[string]int
	// canonical holds the first entry of each people-dict line.
	canonical []string
}

// NewMerger returns a merger with no people-dict rules.
func NewMerger() *Merger {
	return &Merger{dict: make(map[string]int)}
}

// LoadPeopleDict reads explicit alias rules. Each line lists the names and
// emails of one person separated by "|"; the first entry is the preferred
// identity. Blank lines and lines starting with "#" are ignored.
func (m *Merger) LoadPeopleDict(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("load people dict: %w", err)
	}
	defer file.Close()

	if m.dict == nil {
		m.dict = make(map[string]int)
	}

	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, dictCommentPrefix) {
			continue
		}

		m.AddRule(strings.Split(line, dictSeparator)...)
	}

	err = scanner.Err()
	if err != nil {
		return fmt.Errorf("read people dict %s: %w", path, err)
	}

	return nil
}

// AddRule declares that all given names and emails belong to one person.
// The first non-empty entry is the preferred identity.
func (m *Merger) AddRule(aliases ...string) {
	if m.dict == nil {
		m.dict = make(map[string]int)
	}

	id := len(m.canonical)
	first := ""

	for _, alias := range aliases {
		key := normalize(alias)
		if key == "" {
			continue
		}

		if first == "" {
			first = key
		}

		m.dict[key] = id
	}

	if first != "" {
		m.canonical = append(m.canonical, first)
	}
}

// BuildMergeMap groups identities and elects one primary per group. The
// result maps the lowercase email of every non-primary identity to its
// primary; primaries and identities without an email are absent.
//
// Without a people-dict preference the primary is the first identity of the
// group in input order.
func (m *Merger) BuildMergeMap(identities []overtime.AuthorIdentity) map[string]overtime.AuthorIdentity {
	groups := newUnionFind(len(identities))
	owners := make(map[string]int)

	for i, ident := range identities {
		for _, token := range m.tokens(ident) {
			if owner, ok := owners[token]; ok {
				groups.union(owner, i)

				continue
			}

			owners[token] = i
		}
	}

	members := make(map[int][]int)
	roots := make([]int, 0, len(identities))

	for i := range identities {
		root := groups.find(i)
		if _, seen := members[root]; !seen {
			roots = append(roots, root)
		}

		members[root] = append(members[root], i)
	}

	mergeMap := make(map[string]overtime.AuthorIdentity)

	for _, root := range roots {
		group := members[root]
		primary := identities[m.electPrimary(identities, group)]

		for _, i := range group {
			key := identities[i].Key()
			if key == "" || key == primary.Key() {
				continue
			}

			mergeMap[key] = primary
		}
	}

	return mergeMap
}

func (m *Merger) tokens(ident overtime.AuthorIdentity) []string {
	tokens := make([]string, 0, 3)

	email := ident.Key()
	if email != "" {
		tokens = append(tokens, "email:"+email)
	}

	name := normalize(ident.Name)
	if name != "" && !m.ExactSignatures {
		tokens = append(tokens, "name:"+name)
	}

	if id, ok := m.lookupRule(ident); ok {
		tokens = append(tokens, "dict:"+strconv.Itoa(id))
	}

	return tokens
}

func (m *Merger) lookupRule(ident overtime.AuthorIdentity) (int, bool) {
	if id, ok := m.dict[ident.Key()]; ok {
		return id, true
	}

	id, ok := m.dict[normalize(ident.Name)]

	return id, ok
}

// electPrimary prefers the identity named first on a people-dict line and
// otherwise the earliest group member.
func (m *Merger) electPrimary(identities []overtime.AuthorIdentity, group []int) int {
	for _, i := range group {
		id, ok := m.lookupRule(identities[i])
		if !ok {
			continue
		}

		preferred := m.canonical[id]

		for _, j := range group {
			if identities[j].Key() == preferred || normalize(identities[j].Name) == preferred {
				return j
			}
		}
	}

	return group[0]
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}

	return &unionFind{parent: parent}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}

	return i
}

// union keeps the smaller index as root so group order follows input order.
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}

	if rb < ra {
		ra, rb = rb, ra
	}

	u.parent[rb] = ra
}
