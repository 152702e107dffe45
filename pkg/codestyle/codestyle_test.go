// Package codestyle_test holds repository-wide source checks. It has no
// non-test code.
package codestyle_test

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// source is one parsed non-test Go file of the module.
type source struct {
	rel  string
	file *ast.File
}

func moduleRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, statErr := os.Stat(filepath.Join(dir, "go.mod")); statErr == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		require.NotEqual(t, dir, parent, "go.mod not found")

		dir = parent
	}
}

// loadSources parses every non-test Go file the go tool would build. Like
// the go tool it skips directories starting with "_" or "." and testdata.
func loadSources(t *testing.T) []source {
	t.Helper()

	root := moduleRoot(t)

	var sources []source

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		name := entry.Name()

		if entry.IsDir() {
			if path != root && (name == "testdata" || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}

			return nil
		}

		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			return nil
		}

		parsed, parseErr := parser.ParseFile(token.NewFileSet(), path, nil, parser.SkipObjectResolution)
		if parseErr != nil {
			return fmt.Errorf("parse %s: %w", path, parseErr)
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return fmt.Errorf("relative path of %s: %w", path, relErr)
		}

		sources = append(sources, source{rel: filepath.ToSlash(rel), file: parsed})

		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, sources)

	return sources
}

// typeSpecs calls fn for every type declared at the top level of f.
func typeSpecs(f *ast.File, fn func(*ast.TypeSpec)) {
	for _, decl := range f.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}

		for _, spec := range gen.Specs {
			if ts, isType := spec.(*ast.TypeSpec); isType {
				fn(ts)
			}
		}
	}
}

func report(t *testing.T, rule string, violations []string) {
	t.Helper()

	if len(violations) > 0 {
		t.Errorf("%s: %d violation(s)\n  %s", rule, len(violations), strings.Join(violations, "\n  "))
	}
}

// grabBagNames are file names that say nothing about what the file owns.
var grabBagNames = []string{"types.go", "utils.go", "helpers.go", "common.go", "misc.go"}

func TestSourceFilesNameTheirDomain(t *testing.T) {
	t.Parallel()

	var violations []string

	for _, src := range loadSources(t) {
		if slices.Contains(grabBagNames, filepath.Base(src.rel)) {
			violations = append(violations, src.rel+": move each declaration next to the code that uses it")
		}
	}

	report(t, "grab-bag file names", violations)
}

// stutters reports whether name repeats the package name at a word
// boundary, and returns the name without the repetition.
func stutters(pkg, name string) (string, bool) {
	titled := strings.ToUpper(pkg[:1]) + pkg[1:]

	rest, found := strings.CutPrefix(name, titled)
	if !found || rest == "" {
		return "", false
	}

	first := rune(rest[0])
	if !unicode.IsUpper(first) && !unicode.IsDigit(first) {
		return "", false
	}

	return rest, true
}

func TestStutters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pkg, name string
		want      string
		stutter   bool
	}{
		{"ranking", "RankingResult", "Result", true},
		{"report", "Reporter", "", false},
		{"config", "Config", "", false},
		{"gitlib", "Gitlib2Commit", "2Commit", true},
		{"overtime", "WorkHours", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, stutter := stutters(tt.pkg, tt.name)
			assert.Equal(t, tt.stutter, stutter)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExportedTypesDoNotStutter(t *testing.T) {
	t.Parallel()

	var violations []string

	for _, src := range loadSources(t) {
		pkg := strings.ToLower(src.file.Name.Name)

		typeSpecs(src.file, func(ts *ast.TypeSpec) {
			if !ts.Name.IsExported() {
				return
			}

			if short, ok := stutters(pkg, ts.Name.Name); ok {
				violations = append(violations, fmt.Sprintf("%s: %s.%s reads better as %s.%s",
					src.rel, src.file.Name.Name, ts.Name.Name, src.file.Name.Name, short))
			}
		})
	}

	report(t, "stuttering type names", violations)
}

// maxInterfaceMethods bounds consumer-side interfaces such as the commit
// source the analyzer reads from.
const maxInterfaceMethods = 5

func TestInterfacesStaySmall(t *testing.T) {
	t.Parallel()

	var violations []string

	for _, src := range loadSources(t) {
		typeSpecs(src.file, func(ts *ast.TypeSpec) {
			iface, ok := ts.Type.(*ast.InterfaceType)
			if !ok {
				return
			}

			methods := 0

			for _, field := range iface.Methods.List {
				if _, isFunc := field.Type.(*ast.FuncType); isFunc {
					methods++
				}
			}

			if methods > maxInterfaceMethods {
				violations = append(violations, fmt.Sprintf("%s: %s has %d methods, split it",
					src.rel, ts.Name.Name, methods))
			}
		})
	}

	report(t, "fat interfaces", violations)
}

// stdoutPrinters write to standard output without naming it.
var stdoutPrinters = []string{"Print", "Printf", "Println"}

// Outside cmd/ stdout carries the rendered report or the MCP stream, so
// library code writes to an io.Writer it was given and logs through slog.
func TestLibrariesLeaveStdoutAlone(t *testing.T) {
	t.Parallel()

	var violations []string

	for _, src := range loadSources(t) {
		if strings.HasPrefix(src.rel, "cmd/") {
			continue
		}

		ast.Inspect(src.file, func(node ast.Node) bool {
			sel, ok := node.(*ast.SelectorExpr)
			if !ok {
				return true
			}

			pkg, isIdent := sel.X.(*ast.Ident)
			if !isIdent {
				return true
			}

			switch {
			case pkg.Name == "os" && sel.Sel.Name == "Stdout",
				pkg.Name == "fmt" && slices.Contains(stdoutPrinters, sel.Sel.Name):
				violations = append(violations, fmt.Sprintf("%s: %s.%s", src.rel, pkg.Name, sel.Sel.Name))
			}

			return true
		})
	}

	report(t, "stdout outside cmd", violations)
}
