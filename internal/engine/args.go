package engine

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
)

// Offered argument names.
const (
	ArgSharedFiles = "shared_files"
	ArgSharedPaths = "shared_paths"
	ArgRoot        = "root"
	ArgRootPath    = "root_path"
	ArgIndexDir    = "index_dir"
	ArgIndexPath   = "index_path"
)

// ParamsSuffix names the exported []string an engine uses to declare the
// parameter names of a function: IndexSharedDocsParams for IndexSharedDocs,
// OpenVikingEngineIndexSharedDocsParams for a method.
const ParamsSuffix = "Params"

// ErrUnbindable indicates no offered argument set satisfies a callee.
var ErrUnbindable = errors.New("cannot bind arguments")

// Args is the superset of named arguments offered to engine entry points.
type Args map[string]any

// IndexArgs builds the argument set for an indexing call. Both directory
// names carry the directory holding the index file.
func IndexArgs(sharedFiles []string, root, indexPath string) Args {
	files := append([]string(nil), sharedFiles...)
	indexDir := filepath.Dir(indexPath)
	return Args{
		ArgSharedFiles: files,
		ArgSharedPaths: append([]string(nil), files...),
		ArgRoot:        root,
		ArgRootPath:    root,
		ArgIndexDir:    indexDir,
		ArgIndexPath:   indexDir,
	}
}

var openAcceptor = reflect.TypeOf(map[string]any(nil))

// declaredParams reads the parameter names exported as name+ParamsSuffix.
func declaredParams(syms Symbols, name string) []string {
	v, ok := syms.Lookup(name + ParamsSuffix)
	if !ok {
		return nil
	}
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Slice || v.Type().Elem().Kind() != reflect.String {
		return nil
	}
	names := make([]string, v.Len())
	for i := range names {
		names[i] = v.Index(i).String()
	}
	return names
}

// bind maps args onto fn's parameters. A function taking a single
// map[string]any receives the whole set. Otherwise every parameter must be
// declared by name, present in args and assignable to its type; a function
// without parameters binds to nothing.
func bind(fn reflect.Value, declared []string, args Args) ([]reflect.Value, error) {
	t := fn.Type()
	if t.IsVariadic() {
		return nil, fmt.Errorf("%w: variadic parameters are not supported", ErrUnbindable)
	}
	if t.NumIn() == 0 {
		return nil, nil
	}
	if declared == nil {
		if t.NumIn() == 1 && openAcceptor.AssignableTo(t.In(0)) && t.In(0).Kind() == reflect.Map {
			return []reflect.Value{reflect.ValueOf(map[string]any(args))}, nil
		}
		return nil, fmt.Errorf("%w: %d parameters without declared names", ErrUnbindable, t.NumIn())
	}
	if len(declared) != t.NumIn() {
		return nil, fmt.Errorf("%w: declares %d names for %d parameters", ErrUnbindable, len(declared), t.NumIn())
	}

	in := make([]reflect.Value, t.NumIn())
	for i, name := range declared {
		raw, ok := args[name]
		if !ok {
			return nil, fmt.Errorf("%w: no argument named %q", ErrUnbindable, name)
		}
		v := reflect.ValueOf(raw)
		want := t.In(i)
		switch {
		case v.Type().AssignableTo(want):
		case v.Type().ConvertibleTo(want) && v.Kind() == want.Kind():
			v = v.Convert(want)
		default:
			return nil, fmt.Errorf("%w: %q is %s, parameter wants %s", ErrUnbindable, name, v.Type(), want)
		}
		in[i] = v
	}
	return in, nil
}

// call invokes fn, honoring a trailing error result and recovering panics
// raised by engine code.
func call(fn reflect.Value, in []reflect.Value) (out []reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	out = fn.Call(in)
	if n := len(out); n > 0 {
		last := out[n-1]
		if last.Type().Implements(errorType) {
			if (last.Kind() == reflect.Interface || last.Kind() == reflect.Pointer) && last.IsNil() {
				return out[:n-1], nil
			}
			if e, ok := last.Interface().(error); ok && e != nil {
				return out[:n-1], e
			}
			return out[:n-1], nil
		}
	}
	return out, nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()
