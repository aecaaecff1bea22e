// Package arch_test checks structural rules over the packages under internal/.
package arch_test

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"testing"
)

const internalImport = "github.com/papapumpkin/teamcontext/internal/"

// pkg is the parsed non-test source of one internal package.
type pkg struct {
	name  string
	fset  *token.FileSet
	files []*ast.File
}

// internalDir returns the absolute path of internal/.
func internalDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Dir(filepath.Dir(file))
}

// loadPackages parses every package under internal/ except this one.
func loadPackages(t *testing.T) []pkg {
	t.Helper()
	root := internalDir(t)
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("reading %s: %v", root, err)
	}

	var pkgs []pkg
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "arch_test" {
			continue
		}
		p := pkg{name: e.Name(), fset: token.NewFileSet()}
		paths, err := filepath.Glob(filepath.Join(root, e.Name(), "*.go"))
		if err != nil {
			t.Fatal(err)
		}
		for _, path := range paths {
			if strings.HasSuffix(path, "_test.go") {
				continue
			}
			f, err := parser.ParseFile(p.fset, path, nil, parser.ParseComments)
			if err != nil {
				t.Fatalf("parsing %s: %v", path, err)
			}
			p.files = append(p.files, f)
		}
		if len(p.files) > 0 {
			pkgs = append(pkgs, p)
		}
	}
	if len(pkgs) == 0 {
		t.Fatal("no packages found under internal/")
	}
	return pkgs
}

// imports returns the internal packages p imports, by directory name.
func (p pkg) imports() []string {
	seen := make(map[string]bool)
	for _, f := range p.files {
		for _, imp := range f.Imports {
			path, err := strconv.Unquote(imp.Path.Value)
			if err != nil {
				continue
			}
			if rest, ok := strings.CutPrefix(path, internalImport); ok {
				name, _, _ := strings.Cut(rest, "/")
				seen[name] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// at formats the position of n as pkg/file.go:line.
func (p pkg) at(n ast.Node) string {
	pos := p.fset.Position(n.Pos())
	return fmt.Sprintf("%s/%s:%d", p.name, filepath.Base(pos.Filename), pos.Line)
}
