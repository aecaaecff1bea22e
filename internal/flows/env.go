// Package flows composes snapshots, the secret gate, the publisher, the vendor
// reconciler and the engine bridge into tc's user-facing operations. Every
// flow runs against an explicit Env; nothing reads the working directory or
// process environment on its own.
package flows

import (
	"errors"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/papapumpkin/teamcontext/internal/config"
	"github.com/papapumpkin/teamcontext/internal/engine"
	"github.com/papapumpkin/teamcontext/internal/publish"
	"github.com/papapumpkin/teamcontext/internal/secrets"
	"github.com/papapumpkin/teamcontext/internal/snapshot"
	"github.com/papapumpkin/teamcontext/internal/telemetry"
	"github.com/papapumpkin/teamcontext/internal/vendored"
)

var (
	// ErrBlocked indicates artifacts were written but secret findings block
	// the operation.
	ErrBlocked = errors.New("blocked due to secret scan findings")
	// ErrLargeSave indicates a bootstrap save exceeded the large-save threshold.
	ErrLargeSave = errors.New("bootstrap save blocked")
	// ErrMissingInput indicates a required value was not supplied.
	ErrMissingInput = errors.New("missing required input")
	// ErrLockMissing indicates the project has no lock file yet.
	ErrLockMissing = errors.New("lock file missing; run `tc init` first")
	// ErrUnhealthy indicates doctor found failing checks.
	ErrUnhealthy = errors.New("doctor reported failures")
)

// Env is the explicit context every flow runs in.
type Env struct {
	Paths   config.Paths
	Config  config.Config
	Now     func() time.Time
	User    string
	Git     vendored.Runner
	Bridge  *engine.Bridge
	Scanner *secrets.Scanner
	Events  *telemetry.Emitter
}

// Open resolves the layout at root, loads the config at configPath (the
// project's .tc/config.yaml when empty) and wires the default collaborators.
func Open(root, configPath string) (*Env, error) {
	paths, err := config.ForRoot(root)
	if err != nil {
		return nil, err
	}
	if configPath == "" {
		configPath = paths.ConfigPath
	}
	cfg, err := config.Load(paths, configPath)
	if err != nil {
		return nil, err
	}
	paths = paths.Apply(cfg)
	return &Env{
		Paths:   paths,
		Config:  cfg,
		Now:     time.Now,
		User:    CurrentUser(),
		Git:     vendored.CLIRunner{},
		Bridge:  engine.New(paths.EngineDir),
		Scanner: secrets.Default(),
	}, nil
}

// CurrentUser returns the login name of the invoking user.
func CurrentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return filepath.Base(u.Username)
	}
	for _, key := range []string{"USER", "USERNAME", "LOGNAME"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return "unknown"
}

// Close releases the event log.
func (e *Env) Close() error {
	err := e.Events.Close()
	e.Events = nil
	return err
}

func (e *Env) store() *snapshot.Store {
	return snapshot.NewStore(e.Paths.StateDir, e.Now)
}

func (e *Env) reconciler() *vendored.Reconciler {
	return vendored.NewReconciler(e.Git, e.Paths.EngineDir, e.Paths.LockPath)
}

func (e *Env) publisher() *publish.Publisher {
	return &publish.Publisher{Root: e.Paths.Root, SharedDir: e.Paths.SharedDir}
}

func (e *Env) policy() secrets.Policy {
	return secrets.Policy{
		Enabled:         e.Config.Security.SecretScan,
		BlockOnFindings: e.Config.Security.BlockOnFindings,
	}
}

func (e *Env) author(override string) string {
	if override != "" {
		return override
	}
	if e.User != "" {
		return e.User
	}
	return CurrentUser()
}

// exclusions extends the default workspace exclusions with the configured
// locations of the tool's own directories.
func (e *Env) exclusions() snapshot.Exclusions {
	ex := snapshot.DefaultExclusions()
	for _, dir := range []string{e.Paths.SharedDir, e.Paths.SessionsDir, e.Paths.IndexDir, e.Paths.EngineDir} {
		if rel := e.Paths.Rel(dir); rel != "." && !filepath.IsAbs(rel) {
			ex.Rooted = append(ex.Rooted, rel)
		}
	}
	return ex
}

// record appends an event to the project's event log. The log is opened on
// first use and only once the state directory exists, so read-only flows on
// an uninitialized project leave no trace.
func (e *Env) record(kind string, data any) {
	if e.Events == nil {
		if _, err := os.Stat(e.Paths.StateDir); err != nil {
			return
		}
		em, err := telemetry.NewEmitter(filepath.Join(e.Paths.StateDir, telemetry.FileName))
		if err != nil {
			return
		}
		e.Events = em
	}
	_ = e.Events.Emit(telemetry.Event{Kind: kind, User: e.User, Data: data})
}
