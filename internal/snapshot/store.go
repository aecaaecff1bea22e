package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// ErrCorruptState indicates a state file exists but could not be parsed.
var ErrCorruptState = errors.New("state file is corrupt")

// Kind names a persisted snapshot.
type Kind string

const (
	// KindShared tracks markdown documents of the shared store.
	KindShared Kind = "sync_state"
	// KindWorkspace tracks every non-excluded project file.
	KindWorkspace Kind = "save_state"
)

// record is the on-disk shape shared by both snapshot kinds.
type record[V any] struct {
	UpdatedAt time.Time    `toml:"updated_at"`
	Files     map[string]V `toml:"files"`
}

// Stat summarizes a persisted snapshot without exposing its entries.
type Stat struct {
	Exists    bool
	UpdatedAt time.Time
	Entries   int
}

// Store persists snapshots as TOML files in a state directory. Writes are
// last-writer-wins; concurrent invocations against one root are not guarded.
type Store struct {
	Dir string
	Now func() time.Time
}

// NewStore returns a Store rooted at dir. A nil now uses time.Now.
func NewStore(dir string, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{Dir: dir, Now: now}
}

// Path returns the file backing the given kind.
func (s *Store) Path(kind Kind) string {
	return filepath.Join(s.Dir, string(kind)+".toml")
}

// LoadShared returns the last persisted shared-docs snapshot, or an empty one
// when none has been written yet.
func (s *Store) LoadShared() (Shared, error) {
	rec, err := load[int64](s.Path(KindShared))
	if err != nil {
		return nil, err
	}
	return Shared(rec.Files), nil
}

// SaveShared overwrites the shared-docs snapshot and stamps it.
func (s *Store) SaveShared(snap Shared) error {
	return s.save(KindShared, record[int64]{UpdatedAt: s.Now().UTC(), Files: snap})
}

// LoadWorkspace returns the last persisted workspace snapshot, or an empty
// one when none has been written yet.
func (s *Store) LoadWorkspace() (Workspace, error) {
	rec, err := load[FileMeta](s.Path(KindWorkspace))
	if err != nil {
		return nil, err
	}
	return Workspace(rec.Files), nil
}

// SaveWorkspace overwrites the workspace snapshot and stamps it.
func (s *Store) SaveWorkspace(snap Workspace) error {
	return s.save(KindWorkspace, record[FileMeta]{UpdatedAt: s.Now().UTC(), Files: snap})
}

// Stat reports whether a snapshot exists, when it was written and how many
// entries it holds.
func (s *Store) Stat(kind Kind) (Stat, error) {
	path := s.Path(kind)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Stat{}, nil
	}
	var (
		updated time.Time
		entries int
	)
	switch kind {
	case KindShared:
		rec, err := load[int64](path)
		if err != nil {
			return Stat{}, err
		}
		updated, entries = rec.UpdatedAt, len(rec.Files)
	case KindWorkspace:
		rec, err := load[FileMeta](path)
		if err != nil {
			return Stat{}, err
		}
		updated, entries = rec.UpdatedAt, len(rec.Files)
	default:
		return Stat{}, fmt.Errorf("unknown snapshot kind %q", kind)
	}
	return Stat{Exists: true, UpdatedAt: updated, Entries: entries}, nil
}

func load[V any](path string) (record[V], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return record[V]{Files: map[string]V{}}, nil
		}
		return record[V]{}, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	var rec record[V]
	if err := toml.Unmarshal(data, &rec); err != nil {
		return record[V]{}, fmt.Errorf("%w: %s: %v", ErrCorruptState, path, err)
	}
	if rec.Files == nil {
		rec.Files = map[string]V{}
	}
	return rec, nil
}

// save writes the record atomically (write temp + rename).
func (s *Store) save(kind Kind, rec any) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", s.Dir, err)
	}
	data, err := toml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", kind, err)
	}

	path := s.Path(kind)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp %s: %w", kind, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", kind, err)
	}
	return nil
}
