package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// fakeSymbols serves native Go values as if they had been loaded.
type fakeSymbols map[string]any

func (f fakeSymbols) Lookup(name string) (reflect.Value, bool) {
	v, ok := f[name]
	if !ok {
		return reflect.Value{}, false
	}
	return reflect.ValueOf(v), true
}

func (f fakeSymbols) Method(recv reflect.Value, _ string, method string) (reflect.Value, bool) {
	m := recv.MethodByName(method)
	return m, m.IsValid()
}

type fakeLoader struct {
	syms Symbols
	err  error
	dirs []string
}

func (l *fakeLoader) Load(dirs []string) (Symbols, error) {
	l.dirs = dirs
	return l.syms, l.err
}

type fixture struct {
	root      string
	indexPath string
	files     []string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	shared := filepath.Join(root, ".viking", "agfs", "shared", "decisions")
	if err := os.MkdirAll(shared, 0o755); err != nil {
		t.Fatal(err)
	}
	var files []string
	for i, name := range []string{"auth.md", "db.md"} {
		path := filepath.Join(shared, name)
		if err := os.WriteFile(path, []byte(strings.Repeat("x", 10*(i+1))), 0o644); err != nil {
			t.Fatal(err)
		}
		mtime := time.Unix(1700000000+int64(i), 0)
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatal(err)
		}
		files = append(files, path)
	}
	indexPath := filepath.Join(root, ".viking", "index", "index.txt")
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		t.Fatal(err)
	}
	return fixture{root: root, indexPath: indexPath, files: files}
}

func (f fixture) bridge(loader Loader) *Bridge {
	b := New(filepath.Join(f.root, ".tc", "vendor", "openviking"))
	b.Loader = loader
	return b
}

func readIndex(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading index: %v", err)
	}
	return string(data)
}

type recordingEngine struct {
	vendor string
	paths  []string
}

func (e *recordingEngine) IndexSharedDocs(paths []string) error {
	e.paths = paths
	return nil
}

type bareEngine struct{ called *bool }

func (e bareEngine) IndexSharedDocs() { *e.called = true }

func TestIndex_Strategies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		syms    func(f fixture, got map[string]any) fakeSymbols
		loadErr error
		wantMsg string
		wantAPI string
		check   func(t *testing.T, f fixture, got map[string]any)
	}{
		{
			name: "module-level with declared params",
			syms: func(_ fixture, got map[string]any) fakeSymbols {
				return fakeSymbols{
					"IndexSharedDocs": func(files []string, root string) error {
						got["files"], got["root"] = files, root
						return nil
					},
					"IndexSharedDocsParams": []string{"shared_files", "root"},
				}
			},
			wantMsg: "indexed via OpenViking (called module.IndexSharedDocs)",
			wantAPI: "called module.IndexSharedDocs",
			check: func(t *testing.T, f fixture, got map[string]any) {
				if d := cmp.Diff(f.files, got["files"]); d != "" {
					t.Errorf("files mismatch (-want +got):\n%s", d)
				}
				if got["root"] != f.root {
					t.Errorf("root = %v, want %s", got["root"], f.root)
				}
			},
		},
		{
			name: "module-level open acceptor gets every argument",
			syms: func(_ fixture, got map[string]any) fakeSymbols {
				return fakeSymbols{
					"IndexSharedDocs": func(args map[string]any) {
						for k, v := range args {
							got[k] = v
						}
					},
				}
			},
			wantMsg: "indexed via OpenViking (called module.IndexSharedDocs)",
			wantAPI: "called module.IndexSharedDocs",
			check: func(t *testing.T, f fixture, got map[string]any) {
				keys := make([]string, 0, len(got))
				for k := range got {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				want := []string{ArgIndexDir, ArgIndexPath, ArgRoot, ArgRootPath, ArgSharedFiles, ArgSharedPaths}
				if d := cmp.Diff(want, keys); d != "" {
					t.Errorf("offered keys mismatch (-want +got):\n%s", d)
				}
				if got[ArgIndexDir] != filepath.Dir(f.indexPath) {
					t.Errorf("index_dir = %v", got[ArgIndexDir])
				}
			},
		},
		{
			name: "constructed OpenVikingEngine",
			syms: func(_ fixture, got map[string]any) fakeSymbols {
				return fakeSymbols{
					"NewOpenVikingEngine": func(vendorPath string) *recordingEngine {
						e := &recordingEngine{vendor: vendorPath}
						got["engine"] = e
						return e
					},
					"NewOpenVikingEngineParams":             []string{"vendor_path"},
					"OpenVikingEngineIndexSharedDocsParams": []string{"shared_paths"},
				}
			},
			wantMsg: "indexed via OpenViking (called OpenVikingEngine.IndexSharedDocs)",
			wantAPI: "called OpenVikingEngine.IndexSharedDocs",
			check: func(t *testing.T, f fixture, got map[string]any) {
				e := got["engine"].(*recordingEngine)
				if want := filepath.Join(f.root, ".tc", "vendor", "openviking"); e.vendor != want {
					t.Errorf("vendor = %q, want %q", e.vendor, want)
				}
				if d := cmp.Diff(f.files, e.paths); d != "" {
					t.Errorf("paths mismatch (-want +got):\n%s", d)
				}
			},
		},
		{
			name: "constructed Engine with project_root shape",
			syms: func(f fixture, got map[string]any) fakeSymbols {
				called := new(bool)
				got["called"] = called
				return fakeSymbols{
					"NewEngine": func(root string) bareEngine {
						got["root"] = root
						return bareEngine{called: called}
					},
					"NewEngineParams": []string{"project_root"},
				}
			},
			wantMsg: "indexed via OpenViking (called Engine.IndexSharedDocs)",
			wantAPI: "called Engine.IndexSharedDocs",
			check: func(t *testing.T, f fixture, got map[string]any) {
				if !*got["called"].(*bool) {
					t.Error("IndexSharedDocs was not called")
				}
				if got["root"] != f.root {
					t.Errorf("root = %v, want %s", got["root"], f.root)
				}
			},
		},
		{
			name:    "imported without an index API",
			syms:    func(fixture, map[string]any) fakeSymbols { return fakeSymbols{"Version": "1.0"} },
			wantMsg: "indexed with fallback writer (no known index API)",
			wantAPI: APINone,
		},
		{
			name: "entry point error",
			syms: func(fixture, map[string]any) fakeSymbols {
				return fakeSymbols{"IndexSharedDocs": func() error { return errors.New("boom") }}
			},
			wantMsg: "indexed with fallback writer (module.IndexSharedDocs failed: boom)",
			wantAPI: "module.IndexSharedDocs failed: boom",
		},
		{
			name: "entry point panic",
			syms: func(fixture, map[string]any) fakeSymbols {
				return fakeSymbols{"IndexSharedDocs": func() { panic("kaboom") }}
			},
			wantMsg: "indexed with fallback writer (module.IndexSharedDocs failed: panic: kaboom)",
			wantAPI: "module.IndexSharedDocs failed: panic: kaboom",
		},
		{
			name:    "engine not importable",
			loadErr: errors.New("no Go sources found"),
			wantMsg: "indexed with fallback writer (OpenViking import unavailable)",
			wantAPI: "import failed: no Go sources found",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			got := map[string]any{}
			loader := &fakeLoader{err: tt.loadErr}
			if tt.syms != nil {
				loader.syms = tt.syms(f, got)
			}

			res := f.bridge(loader).Index(context.Background(), f.files, f.root, f.indexPath)
			if !res.OK || res.Message != tt.wantMsg {
				t.Errorf("Index() = %+v, want OK with %q", res, tt.wantMsg)
			}
			index := readIndex(t, f.indexPath)
			if !strings.Contains(index, "- engine_api="+tt.wantAPI+"\n") {
				t.Errorf("index missing api %q:\n%s", tt.wantAPI, index)
			}
			if tt.check != nil {
				tt.check(t, f, got)
			}
		})
	}
}

func TestIndex_FileFormat(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res := f.bridge(&fakeLoader{syms: fakeSymbols{}}).Index(context.Background(), f.files, f.root, f.indexPath)
	if !res.OK || res.Strategy != "local-fallback" {
		t.Fatalf("Index() = %+v", res)
	}
	want := strings.Join([]string{
		"# TeamContext Local Index",
		"",
		"- engine_imported=true",
		"- engine_api=no known index API",
		"- .viking/agfs/shared/decisions/auth.md | mtime=1700000000 | bytes=10",
		"- .viking/agfs/shared/decisions/db.md | mtime=1700000001 | bytes=20",
		"",
	}, "\n")
	if d := cmp.Diff(want, readIndex(t, f.indexPath)); d != "" {
		t.Errorf("index mismatch (-want +got):\n%s", d)
	}
}

func TestIndex_EmptyStoreStillWritesIndex(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	indexPath := filepath.Join(root, ".viking", "index", "index.txt")

	res := New(filepath.Join(root, "missing-vendor")).Index(context.Background(), nil, root, indexPath)
	if !res.OK || res.Message != "indexed with fallback writer (OpenViking import unavailable)" {
		t.Fatalf("Index() = %+v", res)
	}
	index := readIndex(t, indexPath)
	if !strings.HasPrefix(index, "# TeamContext Local Index\n\n- engine_imported=false\n- engine_api=import failed: ") {
		t.Errorf("unexpected index:\n%s", index)
	}
}
