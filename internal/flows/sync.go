package flows

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/papapumpkin/teamcontext/internal/snapshot"
	"github.com/papapumpkin/teamcontext/internal/telemetry"
)

// State files written by sync next to the snapshots.
const (
	SyncSummaryFile = "sync_summary.txt"
	LastSyncFile    = "last_sync.json"
)

// SyncReport is the outcome of a sync. Its JSON form is the machine-readable
// payload of `tc sync --json`.
type SyncReport struct {
	OK                 bool     `json:"ok"`
	SharedFilesScanned int      `json:"shared_files_scanned"`
	ChangedFiles       int      `json:"changed_files"`
	RemovedFiles       int      `json:"removed_files"`
	ChangedPaths       []string `json:"changed_paths"`
	RemovedPaths       []string `json:"removed_paths"`
	IndexFile          string   `json:"index_file"`
	EngineMessage      string   `json:"engine_message"`
	BootstrapPrompt    string   `json:"bootstrap_prompt"`
}

// Sync diffs the shared store against the last synced snapshot, persists the
// new snapshot and rebuilds the index through the engine bridge.
func (e *Env) Sync(ctx context.Context) (SyncReport, error) {
	p := e.Paths
	if err := p.EnsureDirs(); err != nil {
		return SyncReport{}, err
	}
	store := e.store()
	before, err := store.LoadShared()
	if err != nil {
		return SyncReport{}, err
	}
	after, files, err := snapshot.ScanShared(ctx, p.Root, p.SharedDir)
	if err != nil {
		return SyncReport{}, err
	}
	cs := snapshot.Diff(before, after)
	if err := store.SaveShared(after); err != nil {
		return SyncReport{}, err
	}
	res := e.Bridge.Index(ctx, files, p.Root, p.IndexFile)

	rep := SyncReport{
		OK:                 true,
		SharedFilesScanned: len(files),
		ChangedFiles:       len(cs.Added) + len(cs.Modified),
		RemovedFiles:       len(cs.Deleted),
		ChangedPaths:       nonNil(cs.Changed()),
		RemovedPaths:       nonNil(cs.Deleted),
		IndexFile:          p.IndexFile,
		EngineMessage:      res.Message,
		BootstrapPrompt:    e.BootstrapPrompt(),
	}
	if err := e.writeSyncSummary(rep); err != nil {
		return rep, err
	}
	e.record(telemetry.KindSync, map[string]any{
		"shared_files": rep.SharedFilesScanned,
		"changed":      rep.ChangedFiles,
		"removed":      rep.RemovedFiles,
		"strategy":     res.Strategy,
		"engine":       rep.EngineMessage,
	})
	return rep, nil
}

func (e *Env) writeSyncSummary(rep SyncReport) error {
	now := e.Now().UTC().Format(time.RFC3339)
	summary := strings.Join([]string{
		"time: " + now,
		fmt.Sprintf("shared_files: %d", rep.SharedFilesScanned),
		fmt.Sprintf("changed_files: %d", rep.ChangedFiles),
		fmt.Sprintf("removed_files: %d", rep.RemovedFiles),
	}, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(e.Paths.StateDir, SyncSummaryFile), []byte(summary), 0o644); err != nil {
		return fmt.Errorf("writing sync summary: %w", err)
	}

	last := struct {
		Time string `json:"time"`
		SyncReport
	}{Time: now, SyncReport: rep}
	last.BootstrapPrompt = ""
	data, err := json.MarshalIndent(last, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding last sync: %w", err)
	}
	if err := os.WriteFile(filepath.Join(e.Paths.StateDir, LastSyncFile), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing last sync: %w", err)
	}
	return nil
}

// Watch runs Sync whenever a markdown document below the shared store
// changes, reporting each result to onSync until ctx is done.
func (e *Env) Watch(ctx context.Context, onSync func(SyncReport, error)) error {
	if err := e.Paths.EnsureDirs(); err != nil {
		return err
	}
	w, err := snapshot.NewWatcher(e.Paths.SharedDir)
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("watching %s: %w", e.Paths.SharedDir, err)
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-w.Changes:
			if !ok {
				return nil
			}
			drain(w.Changes)
			onSync(e.Sync(ctx))
		}
	}
}

// drain discards changes already queued so a burst triggers one sync.
func drain(ch <-chan snapshot.Change) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
