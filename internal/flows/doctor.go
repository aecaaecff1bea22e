package flows

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/papapumpkin/teamcontext/internal/config"
	"github.com/papapumpkin/teamcontext/internal/snapshot"
	"github.com/papapumpkin/teamcontext/internal/telemetry"
	"github.com/papapumpkin/teamcontext/internal/vendored"
)

// writeCheckFile is created and removed to test directory writability.
const writeCheckFile = ".tc_write_check"

// Check is one doctor finding.
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// DoctorReport lists every check in a fixed order.
type DoctorReport struct {
	Checks []Check `json:"checks"`
}

// Failures counts failing checks.
func (r DoctorReport) Failures() int {
	n := 0
	for _, c := range r.Checks {
		if !c.OK {
			n++
		}
	}
	return n
}

// OK reports whether every check passed.
func (r DoctorReport) OK() bool { return r.Failures() == 0 }

func (r *DoctorReport) add(name string, ok bool, detail string) {
	r.Checks = append(r.Checks, Check{Name: name, OK: ok, Detail: detail})
}

// Doctor diagnoses the project without modifying it, apart from the
// transient writability checks.
func (e *Env) Doctor(ctx context.Context) DoctorReport {
	p := e.Paths
	var rep DoctorReport

	rep.add("config", exists(p.ConfigPath), p.ConfigPath)

	lock, err := vendored.LoadLock(p.LockPath)
	switch {
	case err != nil:
		rep.add("lock", false, err.Error())
	case lock == nil:
		rep.add("lock", false, p.LockPath)
	default:
		rep.add("lock", true, p.LockPath)
	}

	for _, d := range []string{p.SharedDir, p.SessionsDir, p.IndexDir, p.StateDir} {
		rep.add("dir:"+filepath.Base(d), exists(d), d)
	}

	h := e.reconciler().Health(ctx, lock)
	rep.add("vendor", h.OK(), h.Message)
	eng := e.Bridge.Health()
	rep.add("engine", eng.OK, eng.Message)

	store := e.store()
	for _, kind := range []snapshot.Kind{snapshot.KindShared, snapshot.KindWorkspace} {
		st, err := store.Stat(kind)
		switch {
		case err != nil:
			rep.add("state:"+string(kind), false, err.Error())
		case !st.Exists:
			rep.add("state:"+string(kind), true, "not written yet")
		default:
			rep.add("state:"+string(kind), true, st.UpdatedAt.UTC().Format(time.RFC3339))
		}
	}

	for _, d := range []string{p.TCDir, p.VikingDir, p.IndexDir} {
		ok, detail := writable(d)
		rep.add("writable:"+filepath.Base(d), ok, detail)
	}

	e.record(telemetry.KindDoctor, map[string]any{"failures": rep.Failures()})
	return rep
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writable(dir string) (bool, string) {
	if !exists(dir) {
		return false, "path missing"
	}
	check := filepath.Join(dir, writeCheckFile)
	if err := os.WriteFile(check, []byte("ok\n"), 0o644); err != nil {
		return false, err.Error()
	}
	if err := os.Remove(check); err != nil {
		return false, err.Error()
	}
	return true, "ok"
}

// CategoryCount is the number of documents in one shared store folder.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// StatusReport summarizes the shared store and the last sync.
type StatusReport struct {
	Root          string          `json:"root"`
	SharedFiles   int             `json:"shared_files"`
	Categories    []CategoryCount `json:"categories"`
	IndexFile     string          `json:"index_file"`
	LastSync      time.Time       `json:"last_sync,omitzero"`
	SyncedEntries int             `json:"synced_entries"`
}

// Status reports shared store counts and the persisted sync snapshot.
func (e *Env) Status(ctx context.Context) (StatusReport, error) {
	p := e.Paths
	_, files, err := snapshot.ScanShared(ctx, p.Root, p.SharedDir)
	if err != nil {
		return StatusReport{}, err
	}
	rep := StatusReport{Root: p.Root, SharedFiles: len(files), IndexFile: p.IndexFile}
	for _, c := range config.Categories {
		_, docs, err := snapshot.ScanShared(ctx, p.Root, p.Category(c))
		if err != nil {
			return rep, err
		}
		rep.Categories = append(rep.Categories, CategoryCount{Category: c, Count: len(docs)})
	}
	st, err := e.store().Stat(snapshot.KindShared)
	if err != nil {
		return rep, err
	}
	if st.Exists {
		rep.LastSync = st.UpdatedAt
		rep.SyncedEntries = st.Entries
	}
	return rep, nil
}

// VendorUpgrade moves the engine checkout to ref and repins the lock. A
// failed upgrade leaves the lock untouched and returns the reconciler's
// explanation.
func (e *Env) VendorUpgrade(ctx context.Context, ref string) (vendored.Outcome, error) {
	lock, err := vendored.LoadLock(e.Paths.LockPath)
	if err != nil {
		return vendored.Outcome{}, err
	}
	if lock == nil {
		return vendored.Outcome{}, ErrLockMissing
	}
	if ref == "" {
		ref = lock.Engine.Ref
	}
	out := e.reconciler().Upgrade(ctx, lock, ref)
	e.record(telemetry.KindVendorUpgrade, map[string]any{
		"ref":     ref,
		"ok":      out.OK,
		"message": out.Message,
	})
	return out, nil
}
