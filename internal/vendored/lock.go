// Package vendored keeps the pinned engine checkout under .tc/vendor in line
// with the project lock file. Every git interaction goes through a Runner so
// the reconciler can be driven by fakes in tests.
package vendored

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	// DefaultRepo is the upstream engine repository.
	DefaultRepo = "https://github.com/openviking/openviking.git"
	// DefaultRef is the ref pinned by a fresh init.
	DefaultRef = "main"
	// LockVersion is the schema version written to new lock files.
	LockVersion = 1
)

// ErrCorruptLock indicates a lock file exists but could not be parsed.
var ErrCorruptLock = errors.New("lock file is corrupt")

// EngineLock pins the vendored engine.
type EngineLock struct {
	Repo           string `toml:"repo"`
	Ref            string `toml:"ref"`
	ResolvedCommit string `toml:"resolved_commit"`
}

// Lock is the persisted pin of the vendored engine.
type Lock struct {
	Version   int        `toml:"version"`
	CreatedAt time.Time  `toml:"created_at"`
	Engine    EngineLock `toml:"engine"`
}

// NewLock returns a lock pinned at ref with no resolved commit yet. Empty
// values fall back to DefaultRepo and DefaultRef.
func NewLock(repo, ref string, now time.Time) *Lock {
	if repo == "" {
		repo = DefaultRepo
	}
	if ref == "" {
		ref = DefaultRef
	}
	return &Lock{
		Version:   LockVersion,
		CreatedAt: now.UTC(),
		Engine:    EngineLock{Repo: repo, Ref: ref},
	}
}

// LoadLock reads the lock at path. It returns (nil, nil) when no lock exists.
func LoadLock(path string) (*Lock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading lock: %w", err)
	}
	var lock Lock
	if err := toml.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptLock, path, err)
	}
	if lock.Engine.Repo == "" {
		lock.Engine.Repo = DefaultRepo
	}
	if lock.Engine.Ref == "" {
		lock.Engine.Ref = DefaultRef
	}
	return &lock, nil
}

// SaveLock writes lock to path atomically (write temp + rename).
func SaveLock(path string, lock *Lock) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating lock directory: %w", err)
	}
	data, err := toml.Marshal(lock)
	if err != nil {
		return fmt.Errorf("marshaling lock: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp lock: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming lock: %w", err)
	}
	return nil
}
