package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Directory names of the on-disk layout.
const (
	TCDir      = ".tc"
	VikingDir  = ".viking"
	EngineName = "openviking"
)

// Categories lists the shared store subfolders in display order.
var Categories = []string{"decisions", "patterns", "runbooks", "candidates", "changelog"}

// Paths is the resolved layout of a project. Every component receives it
// explicitly instead of consulting the working directory.
type Paths struct {
	Root        string
	TCDir       string
	ConfigPath  string
	LockPath    string
	VendorDir   string
	EngineDir   string
	StateDir    string
	AgentDir    string
	VikingDir   string
	AgfsDir     string
	SharedDir   string
	SessionsDir string
	IndexDir    string
	IndexFile   string
}

// ForRoot derives the layout rooted at root. root is made absolute.
func ForRoot(root string) (Paths, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Paths{}, fmt.Errorf("resolving project root %s: %w", root, err)
	}
	tc := filepath.Join(abs, TCDir)
	viking := filepath.Join(abs, VikingDir)
	agfs := filepath.Join(viking, "agfs")
	index := filepath.Join(viking, "index")
	return Paths{
		Root:        abs,
		TCDir:       tc,
		ConfigPath:  filepath.Join(tc, "config.yaml"),
		LockPath:    filepath.Join(tc, "lock.toml"),
		VendorDir:   filepath.Join(tc, "vendor"),
		EngineDir:   filepath.Join(tc, "vendor", EngineName),
		StateDir:    filepath.Join(tc, "state"),
		AgentDir:    filepath.Join(tc, "agent"),
		VikingDir:   viking,
		AgfsDir:     agfs,
		SharedDir:   filepath.Join(agfs, "shared"),
		SessionsDir: filepath.Join(agfs, "sessions"),
		IndexDir:    index,
		IndexFile:   filepath.Join(index, "index.txt"),
	}, nil
}

// Apply returns the layout with the shared store, sessions, index and engine
// checkout moved to the root-relative locations configured in c. Empty values
// keep the defaults.
func (p Paths) Apply(c Config) Paths {
	resolve := func(rel, fallback string) string {
		if rel == "" {
			return fallback
		}
		if filepath.IsAbs(rel) {
			return filepath.Clean(rel)
		}
		return filepath.Join(p.Root, filepath.FromSlash(rel))
	}
	p.SharedDir = resolve(c.Paths.Shared, p.SharedDir)
	p.SessionsDir = resolve(c.Paths.Sessions, p.SessionsDir)
	p.IndexDir = resolve(c.Paths.Index, p.IndexDir)
	p.IndexFile = filepath.Join(p.IndexDir, "index.txt")
	p.EngineDir = resolve(c.Engine.VendorPath, p.EngineDir)
	return p
}

// Category returns the absolute path of a shared store subfolder.
func (p Paths) Category(name string) string {
	return filepath.Join(p.SharedDir, name)
}

// Rel returns path relative to the project root using forward slashes.
// Paths outside the root are returned unchanged.
func (p Paths) Rel(path string) string {
	rel, err := filepath.Rel(p.Root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// EnsureDirs creates every directory of the layout.
func (p Paths) EnsureDirs() error {
	dirs := []string{
		p.TCDir, p.VendorDir, p.StateDir,
		p.VikingDir, p.AgfsDir, p.SharedDir, p.SessionsDir, p.IndexDir,
	}
	for _, c := range Categories {
		dirs = append(dirs, p.Category(c))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", d, err)
		}
	}
	return nil
}
