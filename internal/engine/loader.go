package engine

import (
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// ErrNoSources indicates none of the candidate directories held Go sources.
var ErrNoSources = errors.New("no Go sources found")

// Symbols resolves exported identifiers of a loaded engine package.
type Symbols interface {
	// Lookup returns the package-level value named name.
	Lookup(name string) (reflect.Value, bool)
	// Method returns method bound to recv, whose declared type is typeName.
	Method(recv reflect.Value, typeName, method string) (reflect.Value, bool)
}

// Loader loads the engine from the first usable candidate directory.
type Loader interface {
	Load(candidateDirs []string) (Symbols, error)
}

// YaegiLoader interprets the engine's Go sources with yaegi. Only the
// standard library is importable from engine code.
type YaegiLoader struct{}

var _ Loader = YaegiLoader{}

// Load interprets the non-test .go files of the first candidate directory
// that has any.
func (YaegiLoader) Load(candidateDirs []string) (syms Symbols, err error) {
	defer func() {
		if r := recover(); r != nil {
			syms, err = nil, fmt.Errorf("interpreter panic: %v", r)
		}
	}()

	for _, dir := range candidateDirs {
		files, err := goSources(dir)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			continue
		}
		pkg, err := packageName(files[0])
		if err != nil {
			return nil, err
		}

		i := interp.New(interp.Options{})
		if err := i.Use(stdlib.Symbols); err != nil {
			return nil, fmt.Errorf("loading stdlib symbols: %w", err)
		}
		for _, f := range files {
			if _, err := i.EvalPath(f); err != nil {
				return nil, fmt.Errorf("interpret %s: %w", filepath.Base(f), err)
			}
		}
		return &yaegiSymbols{interp: i, pkg: pkg}, nil
	}
	return nil, fmt.Errorf("%w in %s", ErrNoSources, strings.Join(candidateDirs, ", "))
}

func goSources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".go" || strings.HasSuffix(name, "_test.go") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func packageName(path string) (string, error) {
	f, err := parser.ParseFile(token.NewFileSet(), path, nil, parser.PackageClauseOnly)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return f.Name.Name, nil
}

type yaegiSymbols struct {
	interp *interp.Interpreter
	pkg    string
}

func (s *yaegiSymbols) qualify(name string) string {
	if s.pkg == "main" {
		return name
	}
	return s.pkg + "." + name
}

func (s *yaegiSymbols) eval(expr string) (v reflect.Value, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			v, ok = reflect.Value{}, false
		}
	}()
	v, err := s.interp.Eval(expr)
	if err != nil || !v.IsValid() {
		return reflect.Value{}, false
	}
	return v, true
}

func (s *yaegiSymbols) Lookup(name string) (reflect.Value, bool) {
	return s.eval(s.qualify(name))
}

// Method resolves through reflection first. Interpreted types do not always
// expose their methods that way, so it falls back to a method expression
// evaluated by the interpreter and binds recv to it.
func (s *yaegiSymbols) Method(recv reflect.Value, typeName, method string) (reflect.Value, bool) {
	if m := recv.MethodByName(method); m.IsValid() {
		return m, true
	}
	exprs := []string{fmt.Sprintf("(*%s).%s", s.qualify(typeName), method)}
	if recv.Kind() != reflect.Pointer {
		exprs = []string{fmt.Sprintf("%s.%s", s.qualify(typeName), method)}
	}
	for _, expr := range exprs {
		fn, ok := s.eval(expr)
		if !ok || fn.Kind() != reflect.Func {
			continue
		}
		if bound, ok := bindReceiver(fn, recv); ok {
			return bound, true
		}
	}
	return reflect.Value{}, false
}

// bindReceiver turns a method expression into a func with recv applied.
func bindReceiver(fn, recv reflect.Value) (reflect.Value, bool) {
	t := fn.Type()
	if t.NumIn() == 0 || !recv.Type().AssignableTo(t.In(0)) {
		return reflect.Value{}, false
	}
	in := make([]reflect.Type, 0, t.NumIn()-1)
	for i := 1; i < t.NumIn(); i++ {
		in = append(in, t.In(i))
	}
	out := make([]reflect.Type, 0, t.NumOut())
	for i := 0; i < t.NumOut(); i++ {
		out = append(out, t.Out(i))
	}
	bound := reflect.MakeFunc(reflect.FuncOf(in, out, t.IsVariadic()), func(args []reflect.Value) []reflect.Value {
		return fn.Call(append([]reflect.Value{recv}, args...))
	})
	return bound, true
}
