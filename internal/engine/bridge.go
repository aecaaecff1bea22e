// Package engine hands shared-doc indexing to the vendored engine when it
// can be loaded and exposes a known entry point, and otherwise writes a
// plain-text index itself. Indexing never fails the caller: every outcome
// is folded into a Result.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Result is the uniform outcome of engine operations.
type Result struct {
	OK      bool
	Message string
	// Strategy names the indexing strategy that settled an Index call.
	Strategy string
}

// Bridge connects TeamContext to the engine checked out at VendorDir.
type Bridge struct {
	VendorDir  string
	Loader     Loader
	Strategies []Strategy
}

// New returns a Bridge that interprets the engine with yaegi and tries the
// module-level, constructed-instance and local-fallback strategies in order.
func New(vendorDir string) *Bridge {
	return &Bridge{
		VendorDir: vendorDir,
		Loader:    YaegiLoader{},
		Strategies: []Strategy{
			ModuleLevelStrategy{},
			ConstructedInstanceStrategy{},
			LocalFallbackStrategy{},
		},
	}
}

// CandidateDirs lists the directories searched for engine sources.
func (b *Bridge) CandidateDirs() []string {
	return []string{
		b.VendorDir,
		filepath.Join(b.VendorDir, "go"),
		filepath.Join(b.VendorDir, "engine"),
	}
}

// Index indexes sharedFiles (absolute paths below root) and writes the index
// file at indexPath.
func (b *Bridge) Index(ctx context.Context, sharedFiles []string, root, indexPath string) Result {
	req := &Request{
		Root:        root,
		SharedFiles: sharedFiles,
		IndexPath:   indexPath,
		VendorDir:   b.VendorDir,
		Args:        IndexArgs(sharedFiles, root, indexPath),
	}
	if syms, err := b.load(); err != nil {
		req.API = fmt.Sprintf("import failed: %v", err)
	} else {
		req.Symbols = syms
		req.Imported = true
	}

	for _, s := range b.Strategies {
		if res, done := s.Apply(ctx, req); done {
			res.Strategy = s.Name()
			return res
		}
	}
	return Result{Message: "no indexing strategy handled the request"}
}

// Health reports whether the engine checkout exists and loads.
func (b *Bridge) Health() Result {
	if _, err := os.Stat(b.VendorDir); err != nil {
		return Result{Message: "vendor repo path missing"}
	}
	if _, err := os.Stat(filepath.Join(b.VendorDir, ".git")); err != nil {
		return Result{Message: "vendor repo is not a git checkout"}
	}
	if _, err := b.load(); err != nil {
		return Result{Message: fmt.Sprintf("import failed: %v", err)}
	}
	return Result{OK: true, Message: "import ok"}
}

func (b *Bridge) load() (Symbols, error) {
	if b.Loader == nil {
		return nil, fmt.Errorf("no engine loader configured")
	}
	return b.Loader.Load(b.CandidateDirs())
}
