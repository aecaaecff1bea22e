package snapshot

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Exclusions describes what a workspace scan skips.
type Exclusions struct {
	// Rooted lists slash-separated directories relative to the project root.
	Rooted []string
	// Names lists directory names skipped at any depth.
	Names []string
	// Suffixes lists lowercase file extensions (with the dot) to skip.
	Suffixes []string
}

// DefaultExclusions skips version-control metadata, the tool's own state,
// common build/cache/dependency directories and binary or media files.
func DefaultExclusions() Exclusions {
	return Exclusions{
		Rooted: []string{
			".git",
			".tc",
			".viking/index",
			".viking/agfs/shared",
			".viking/agfs/sessions",
		},
		Names: []string{
			".git",
			"__pycache__",
			".pytest_cache",
			".mypy_cache",
			".ruff_cache",
			".venv",
			"venv",
			"node_modules",
			"dist",
			"build",
			"target",
			".next",
			".gradle",
			".idea",
			".vscode",
		},
		Suffixes: []string{
			".pyc", ".pyo",
			".png", ".jpg", ".jpeg", ".gif", ".webp", ".ico",
			".pdf",
			".zip", ".tar", ".gz", ".tgz",
			".mp4", ".mov", ".mp3",
			".sqlite", ".db",
			".exe", ".so", ".dylib", ".dll", ".o", ".a", ".class",
		},
	}
}

func (e Exclusions) skipDir(rel, name string) bool {
	for _, d := range e.Rooted {
		if rel == d || strings.HasPrefix(rel, d+"/") {
			return true
		}
	}
	for _, n := range e.Names {
		if name == n {
			return true
		}
	}
	return false
}

func (e Exclusions) skipFile(rel string) bool {
	for _, d := range e.Rooted {
		if strings.HasPrefix(rel, d+"/") {
			return true
		}
	}
	ext := strings.ToLower(filepath.Ext(rel))
	for _, s := range e.Suffixes {
		if ext == s {
			return true
		}
	}
	return false
}

// ScanShared collects every markdown file below sharedDir. It returns the
// snapshot keyed by root-relative path and the sorted absolute file list.
// A missing shared directory yields an empty snapshot.
func ScanShared(ctx context.Context, root, sharedDir string) (Shared, []string, error) {
	snap := Shared{}
	var files []string
	err := filepath.WalkDir(sharedDir, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if path == sharedDir {
				return fs.SkipAll
			}
			return nil // skip unreadable entries
		}
		if d.IsDir() || !d.Type().IsRegular() || filepath.Ext(path) != ".md" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		snap[filepath.ToSlash(rel)] = info.ModTime().UnixNano()
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scanning shared docs: %w", err)
	}
	sort.Strings(files)
	return snap, files, nil
}

// ScanWorkspace records size and modification time of every regular file
// under root that ex does not exclude.
func ScanWorkspace(ctx context.Context, root string, ex Exclusions) (Workspace, error) {
	snap := Workspace{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return nil // skip unreadable entries
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if ex.skipDir(rel, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || ex.skipFile(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		snap[rel] = FileMeta{MTime: info.ModTime().UnixNano(), Size: info.Size()}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning workspace: %w", err)
	}
	return snap, nil
}
