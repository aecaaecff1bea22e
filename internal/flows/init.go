package flows

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/papapumpkin/teamcontext/internal/config"
	"github.com/papapumpkin/teamcontext/internal/engine"
	"github.com/papapumpkin/teamcontext/internal/snapshot"
	"github.com/papapumpkin/teamcontext/internal/telemetry"
	"github.com/papapumpkin/teamcontext/internal/vendored"
)

// GitignoreLines are the local-only paths init adds to .gitignore.
var GitignoreLines = []string{
	".tc/vendor/",
	".tc/state/",
	".viking/index/",
	".viking/agfs/sessions/",
}

// InitOptions controls project initialization.
type InitOptions struct {
	VendorRef  string
	VendorRepo string
	SkipVendor bool
}

// InitReport describes what init did.
type InitReport struct {
	Root           string
	ConfigPath     string
	LockPath       string
	Vendor         vendored.Outcome
	Agent          AgentFiles
	GitignoreAdded []string
	Baseline       bool
	Index          engine.Result
	Doctor         DoctorReport
}

// Init prepares the project layout. It is safe to re-run: existing config,
// lock and workspace baseline are kept while agent guidance is regenerated.
// It fails only when the vendor checkout succeeded and doctor still reports
// problems.
func (e *Env) Init(ctx context.Context, opts InitOptions) (InitReport, error) {
	p := e.Paths
	rep := InitReport{Root: p.Root, ConfigPath: p.ConfigPath, LockPath: p.LockPath}

	if err := p.EnsureDirs(); err != nil {
		return rep, err
	}
	if _, err := os.Stat(p.ConfigPath); os.IsNotExist(err) {
		if err := config.Save(p.ConfigPath, e.Config); err != nil {
			return rep, err
		}
	}

	lock, err := vendored.LoadLock(p.LockPath)
	if err != nil {
		return rep, err
	}
	if lock == nil {
		lock = vendored.NewLock(opts.VendorRepo, opts.VendorRef, e.Now())
		if err := vendored.SaveLock(p.LockPath, lock); err != nil {
			return rep, err
		}
	}

	rep.GitignoreAdded, err = MergeGitignore(p.Root, GitignoreLines)
	if err != nil {
		return rep, err
	}

	if opts.SkipVendor {
		rep.Vendor = vendored.Outcome{Degraded: true, Message: "vendor clone skipped (--skip-vendor)"}
	} else {
		rep.Vendor = e.reconciler().EnsurePresent(ctx, lock)
	}

	if rep.Agent, err = e.WriteAgentFiles(); err != nil {
		return rep, err
	}

	store := e.store()
	st, err := store.Stat(snapshot.KindWorkspace)
	if err != nil {
		return rep, err
	}
	if !st.Exists {
		ws, err := snapshot.ScanWorkspace(ctx, p.Root, e.exclusions())
		if err != nil {
			return rep, err
		}
		if err := store.SaveWorkspace(ws); err != nil {
			return rep, err
		}
		rep.Baseline = true
	}

	_, files, err := snapshot.ScanShared(ctx, p.Root, p.SharedDir)
	if err != nil {
		return rep, err
	}
	rep.Index = e.Bridge.Index(ctx, files, p.Root, p.IndexFile)

	rep.Doctor = e.Doctor(ctx)
	e.record(telemetry.KindInit, map[string]any{
		"vendor_ok": rep.Vendor.OK,
		"vendor":    rep.Vendor.Message,
		"baseline":  rep.Baseline,
		"doctor_ok": rep.Doctor.OK(),
	})
	if !rep.Doctor.OK() && rep.Vendor.OK {
		return rep, fmt.Errorf("%w: %d failing checks", ErrUnhealthy, rep.Doctor.Failures())
	}
	return rep, nil
}

// MergeGitignore appends the lines missing from root/.gitignore and returns
// them. Existing content is never rewritten.
func MergeGitignore(root string, lines []string) ([]string, error) {
	path := filepath.Join(root, ".gitignore")
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading .gitignore: %w", err)
	}
	content := string(data)
	existing := make(map[string]bool)
	for _, l := range strings.Split(content, "\n") {
		existing[strings.TrimRight(l, "\r")] = true
	}
	var added []string
	for _, l := range lines {
		if !existing[l] {
			added = append(added, l)
		}
	}
	if len(added) == 0 {
		return nil, nil
	}

	// Separate the appended block from a non-blank last line.
	var b strings.Builder
	body := strings.TrimSuffix(content, "\n")
	if last := body[strings.LastIndex(body, "\n")+1:]; content != "" && last != "" {
		b.WriteString("\n")
	}
	for _, l := range added {
		b.WriteString(l + "\n")
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening .gitignore: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(b.String()); err != nil {
		return nil, fmt.Errorf("writing .gitignore: %w", err)
	}
	return added, nil
}
