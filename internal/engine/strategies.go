package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
)

// IndexEntryPoint is the function or method name looked up on the engine.
const IndexEntryPoint = "IndexSharedDocs"

// Engine API status values written to the index and reported by Index.
const (
	APIUnavailable = "api unavailable"
	APINone        = "no known index API"
)

// Request carries one indexing run through the strategy chain. Delegating
// strategies record their outcome in API; the first one to do so settles it.
type Request struct {
	Root        string
	SharedFiles []string
	IndexPath   string
	VendorDir   string
	Args        Args

	Symbols  Symbols // nil when the engine could not be loaded
	Imported bool
	API      string
}

// Strategy is one way of getting shared docs indexed. Apply reports done
// once the request needs no further strategies.
type Strategy interface {
	Name() string
	Apply(ctx context.Context, req *Request) (Result, bool)
}

// ModuleLevelStrategy calls a package-level IndexSharedDocs function.
type ModuleLevelStrategy struct{}

// Name implements Strategy.
func (ModuleLevelStrategy) Name() string { return "module-level" }

// Apply calls IndexSharedDocs when the engine exports it. It records the call
// in req.API and leaves the request open for the fallback writer.
func (ModuleLevelStrategy) Apply(ctx context.Context, req *Request) (Result, bool) {
	if req.Symbols == nil || req.API != "" || ctx.Err() != nil {
		return Result{}, false
	}
	fn, ok := req.Symbols.Lookup(IndexEntryPoint)
	if !ok || fn.Kind() != reflect.Func {
		return Result{}, false
	}
	api := "module." + IndexEntryPoint
	if err := invoke(fn, declaredParams(req.Symbols, IndexEntryPoint), req.Args); err != nil {
		req.API = fmt.Sprintf("%s failed: %v", api, err)
		return Result{}, false
	}
	req.API = "called " + api
	return Result{}, false
}

// EngineTypes lists the engine types tried by ConstructedInstanceStrategy,
// each built through New<Type>.
var EngineTypes = []string{"OpenVikingEngine", "Engine"}

// ConstructedInstanceStrategy builds an engine value and calls its
// IndexSharedDocs method.
type ConstructedInstanceStrategy struct{}

// Name implements Strategy.
func (ConstructedInstanceStrategy) Name() string { return "constructed-instance" }

// Apply constructs the first engine type whose constructor binds and calls
// its IndexSharedDocs method, unless an earlier strategy already did.
func (ConstructedInstanceStrategy) Apply(ctx context.Context, req *Request) (Result, bool) {
	if req.Symbols == nil || req.API != "" || ctx.Err() != nil {
		return Result{}, false
	}
	for _, typeName := range EngineTypes {
		ctorName := "New" + typeName
		ctor, ok := req.Symbols.Lookup(ctorName)
		if !ok || ctor.Kind() != reflect.Func {
			continue
		}
		api := typeName + "." + IndexEntryPoint

		obj, err := construct(ctor, declaredParams(req.Symbols, ctorName), constructorShapes(req))
		if err != nil {
			req.API = fmt.Sprintf("%s failed: %v", ctorName, err)
			return Result{}, false
		}
		method, ok := req.Symbols.Method(obj, typeName, IndexEntryPoint)
		if !ok {
			continue
		}
		if err := invoke(method, declaredParams(req.Symbols, typeName+IndexEntryPoint), req.Args); err != nil {
			req.API = fmt.Sprintf("%s failed: %v", api, err)
			return Result{}, false
		}
		req.API = "called " + api
		return Result{}, false
	}
	return Result{}, false
}

// constructorShapes are the argument sets tried against a constructor, in
// order.
func constructorShapes(req *Request) []Args {
	return []Args{
		{"vendor_path": req.VendorDir},
		{"vendor_repo": req.VendorDir},
		{"project_root": req.Root},
		{},
	}
}

func construct(ctor reflect.Value, declared []string, shapes []Args) (reflect.Value, error) {
	var lastErr error
	for _, shape := range shapes {
		if declared != nil && !sameNames(declared, shape) {
			continue
		}
		in, err := bind(ctor, declared, shape)
		if err != nil {
			lastErr = err
			continue
		}
		out, err := call(ctor, in)
		if err != nil {
			return reflect.Value{}, err
		}
		if len(out) == 0 || !out[0].IsValid() {
			return reflect.Value{}, fmt.Errorf("constructor returned no value")
		}
		return out[0], nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no constructor shape matches %v", ErrUnbindable, declared)
	}
	return reflect.Value{}, lastErr
}

func sameNames(declared []string, shape Args) bool {
	if len(declared) != len(shape) {
		return false
	}
	for _, name := range declared {
		if _, ok := shape[name]; !ok {
			return false
		}
	}
	return true
}

func invoke(fn reflect.Value, declared []string, args Args) error {
	in, err := bind(fn, declared, args)
	if err != nil {
		return err
	}
	_, err = call(fn, in)
	return err
}

// LocalFallbackStrategy writes the plain-text index. It always runs last and
// always settles the request, whether or not the engine took part.
type LocalFallbackStrategy struct{}

// Name implements Strategy.
func (LocalFallbackStrategy) Name() string { return "local-fallback" }

// Apply writes the index file and settles the request.
func (LocalFallbackStrategy) Apply(_ context.Context, req *Request) (Result, bool) {
	api := req.API
	if api == "" {
		api = APIUnavailable
		if req.Imported {
			api = APINone
		}
	}
	if err := WriteIndex(req.IndexPath, req.Root, req.SharedFiles, req.Imported, api); err != nil {
		return Result{Message: fmt.Sprintf("writing index: %v", err)}, true
	}
	switch {
	case req.Imported && strings.HasPrefix(api, "called "):
		return Result{OK: true, Message: fmt.Sprintf("indexed via OpenViking (%s)", api)}, true
	case req.Imported:
		return Result{OK: true, Message: fmt.Sprintf("indexed with fallback writer (%s)", api)}, true
	default:
		return Result{OK: true, Message: "indexed with fallback writer (OpenViking import unavailable)"}, true
	}
}

// IndexHeader opens every index file.
const IndexHeader = "# TeamContext Local Index"

// WriteIndex renders the index listing every shared file that still exists.
func WriteIndex(indexPath, root string, sharedFiles []string, imported bool, api string) error {
	var b strings.Builder
	b.WriteString(IndexHeader + "\n\n")
	fmt.Fprintf(&b, "- engine_imported=%t\n", imported)
	fmt.Fprintf(&b, "- engine_api=%s\n", api)
	for _, path := range sharedFiles {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		fmt.Fprintf(&b, "- %s | mtime=%d | bytes=%d\n", filepath.ToSlash(rel), info.ModTime().Unix(), info.Size())
	}

	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(indexPath, []byte(b.String()), 0o644)
}
