// Package snapshot records point-in-time file metadata for the shared store
// and the full workspace, persists it between invocations, and computes the
// added/modified/deleted sets between two snapshots.
package snapshot

import "sort"

// FileMeta is the workspace metadata recorded per file. Two records are equal
// when both the modification time and the size match.
type FileMeta struct {
	MTime int64 `toml:"mtime"` // unix nanoseconds
	Size  int64 `toml:"size"`
}

// Shared maps a shared document's root-relative path to its modification
// time in unix nanoseconds.
type Shared map[string]int64

// Workspace maps a project file's root-relative path to its metadata.
type Workspace map[string]FileMeta

// ChangeSet holds the lexicographically sorted differences between two
// snapshots.
type ChangeSet struct {
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Deleted  []string `json:"deleted"`
}

// Diff compares before and after. Paths only in after are added, paths only
// in before are deleted, and paths in both whose values differ are modified.
func Diff[M ~map[string]V, V comparable](before, after M) ChangeSet {
	cs := ChangeSet{
		Added:    []string{},
		Modified: []string{},
		Deleted:  []string{},
	}
	for path, cur := range after {
		prev, ok := before[path]
		switch {
		case !ok:
			cs.Added = append(cs.Added, path)
		case prev != cur:
			cs.Modified = append(cs.Modified, path)
		}
	}
	for path := range before {
		if _, ok := after[path]; !ok {
			cs.Deleted = append(cs.Deleted, path)
		}
	}
	sort.Strings(cs.Added)
	sort.Strings(cs.Modified)
	sort.Strings(cs.Deleted)
	return cs
}

// Len returns the total number of changed paths.
func (c ChangeSet) Len() int {
	return len(c.Added) + len(c.Modified) + len(c.Deleted)
}

// Empty reports whether nothing changed.
func (c ChangeSet) Empty() bool {
	return c.Len() == 0
}

// Paths returns added, modified and deleted paths concatenated in that order.
func (c ChangeSet) Paths() []string {
	out := make([]string, 0, c.Len())
	out = append(out, c.Added...)
	out = append(out, c.Modified...)
	out = append(out, c.Deleted...)
	return out
}

// Changed returns added and modified paths merged in sorted order.
func (c ChangeSet) Changed() []string {
	out := make([]string, 0, len(c.Added)+len(c.Modified))
	out = append(out, c.Added...)
	out = append(out, c.Modified...)
	sort.Strings(out)
	return out
}
