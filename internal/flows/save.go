package flows

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/papapumpkin/teamcontext/internal/publish"
	"github.com/papapumpkin/teamcontext/internal/secrets"
	"github.com/papapumpkin/teamcontext/internal/snapshot"
	"github.com/papapumpkin/teamcontext/internal/telemetry"
)

// Auto-derivation limits.
const (
	topicSegments  = 5
	summarySamples = 8
)

// Topic defaults when nothing names one.
const (
	EmptyTopic     = "workspace-update"
	BootstrapTopic = "workspace-baseline"
)

// SaveOptions controls an auto-save. Empty Topic and Summary are derived from
// the workspace changes.
type SaveOptions struct {
	Topic         string
	Summary       string
	User          string
	Kind          publish.Kind
	AllowFindings bool
	// Bootstrap diffs against an empty baseline so the whole workspace is
	// captured.
	Bootstrap bool
	// AutoBootstrapIfEmpty bootstraps when the shared store has no changelog
	// or candidate yet.
	AutoBootstrapIfEmpty bool
	// LargeSaveThreshold caps the files a bootstrap save may capture. Nil
	// uses the configured threshold.
	LargeSaveThreshold *int
	ForceLargeSave     bool
}

// CommitOptions controls a manual publication.
type CommitOptions struct {
	Topic         string
	Summary       string
	User          string
	Kind          publish.Kind
	AllowFindings bool
}

// PublishReport is the outcome of a save or commit that published artifacts.
type PublishReport struct {
	Topic     string
	Summary   string
	Author    string
	Kind      publish.Kind
	Artifacts publish.Result
	Findings  []secrets.Finding
	Blocked   bool
}

// SaveReport extends PublishReport with the workspace changes behind it.
type SaveReport struct {
	PublishReport
	NoChanges bool
	Bootstrap bool
	Changes   snapshot.ChangeSet
}

// Save publishes an artifact pair describing workspace changes since the last
// save and advances the workspace baseline. When secret findings block the
// save, the artifacts stay on disk, the baseline is left untouched so the
// same changes are reported again, and ErrBlocked is returned.
func (e *Env) Save(ctx context.Context, opts SaveOptions) (SaveReport, error) {
	p := e.Paths
	if err := p.EnsureDirs(); err != nil {
		return SaveReport{}, err
	}
	rep := SaveReport{Bootstrap: opts.Bootstrap}
	if !rep.Bootstrap && opts.AutoBootstrapIfEmpty {
		empty, err := e.historyEmpty()
		if err != nil {
			return rep, err
		}
		rep.Bootstrap = empty
	}

	store := e.store()
	before := snapshot.Workspace{}
	if !rep.Bootstrap {
		var err error
		if before, err = store.LoadWorkspace(); err != nil {
			return rep, err
		}
	}
	after, err := snapshot.ScanWorkspace(ctx, p.Root, e.exclusions())
	if err != nil {
		return rep, err
	}
	rep.Changes = snapshot.Diff(before, after)
	if rep.Changes.Empty() {
		rep.NoChanges = true
		return rep, nil
	}

	if rep.Bootstrap && !opts.ForceLargeSave {
		limit := e.Config.Save.LargeSaveThreshold
		if opts.LargeSaveThreshold != nil {
			limit = *opts.LargeSaveThreshold
		}
		if n := rep.Changes.Len(); n > limit {
			return rep, fmt.Errorf("%w: %d files exceed the large-save threshold of %d", ErrLargeSave, n, limit)
		}
	}

	topic := strings.TrimSpace(opts.Topic)
	if topic == "" {
		topic = AutoTopic(rep.Changes.Paths())
		if rep.Bootstrap {
			topic = BootstrapTopic
		}
	}
	summary := strings.TrimSpace(opts.Summary)
	if summary == "" {
		summary = AutoSummary(rep.Changes)
		if rep.Bootstrap {
			summary = BootstrapSummary(rep.Changes)
		}
	}
	kind := opts.Kind
	if kind == "" {
		kind = publish.KindPattern
	}

	rep.PublishReport, err = e.publish(kind, topic, summary, opts.User, opts.AllowFindings)
	if err != nil {
		return rep, err
	}
	data := map[string]any{
		"topic":     topic,
		"changed":   rep.Changes.Len(),
		"bootstrap": rep.Bootstrap,
		"findings":  rep.Findings,
	}
	if rep.Blocked {
		e.record(telemetry.KindSaveBlocked, data)
		return rep, ErrBlocked
	}
	if err := store.SaveWorkspace(after); err != nil {
		return rep, err
	}
	e.record(telemetry.KindSave, data)
	return rep, nil
}

// Commit publishes an artifact pair from an explicit topic and summary. It
// never touches the workspace baseline.
func (e *Env) Commit(ctx context.Context, opts CommitOptions) (PublishReport, error) {
	topic := strings.TrimSpace(opts.Topic)
	summary := strings.TrimSpace(opts.Summary)
	if topic == "" || summary == "" {
		return PublishReport{}, fmt.Errorf("%w: commit requires both a topic and a summary", ErrMissingInput)
	}
	if err := e.Paths.EnsureDirs(); err != nil {
		return PublishReport{}, err
	}
	kind := opts.Kind
	if kind == "" {
		kind = publish.KindDecision
	}
	rep, err := e.publish(kind, topic, summary, opts.User, opts.AllowFindings)
	if err != nil {
		return rep, err
	}
	e.record(telemetry.KindCommit, map[string]any{
		"topic":    topic,
		"kind":     string(kind),
		"findings": rep.Findings,
		"blocked":  rep.Blocked,
	})
	if rep.Blocked {
		return rep, ErrBlocked
	}
	return rep, nil
}

// publish writes the artifact pair first and then applies the secret gate,
// so blocked operations still leave the artifacts for review.
func (e *Env) publish(kind publish.Kind, topic, summary, user string, allow bool) (PublishReport, error) {
	author := publish.Slugify(e.author(user))
	rep := PublishReport{Topic: topic, Summary: summary, Author: author, Kind: kind}
	res, err := e.publisher().Publish(publish.Request{
		Kind:    kind,
		Topic:   topic,
		Summary: summary,
		Author:  author,
		Date:    e.Now(),
	})
	if err != nil {
		return rep, err
	}
	rep.Artifacts = res
	verdict := e.policy().Check(e.Scanner, summary, allow)
	rep.Findings = verdict.Findings
	rep.Blocked = verdict.Blocked
	return rep, nil
}

// historyEmpty reports whether the shared store has no changelog entry and
// no candidate yet.
func (e *Env) historyEmpty() (bool, error) {
	for _, c := range []string{"changelog", "candidates"} {
		matches, err := filepath.Glob(filepath.Join(e.Paths.Category(c), "*.md"))
		if err != nil {
			return false, fmt.Errorf("listing %s: %w", c, err)
		}
		for _, m := range matches {
			if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
				return false, nil
			}
		}
	}
	return true, nil
}

// AutoTopic names a save after the top-level segments of the first few
// changed paths.
func AutoTopic(changed []string) string {
	if len(changed) == 0 {
		return EmptyTopic
	}
	if len(changed) > topicSegments {
		changed = changed[:topicSegments]
	}
	stems := make([]string, 0, len(changed))
	for _, c := range changed {
		seg, _, _ := strings.Cut(c, "/")
		stems = append(stems, publish.Slugify(seg))
	}
	return "auto-update-" + strings.Join(stems, "-")
}

// AutoSummary describes a change set with its counts and sample paths.
func AutoSummary(cs snapshot.ChangeSet) string {
	return fmt.Sprintf(
		"Auto-saved recent workspace progress: %d changed files (%d added, %d modified, %d deleted). Key files: %s.",
		cs.Len(), len(cs.Added), len(cs.Modified), len(cs.Deleted), samplePaths(cs))
}

// BootstrapSummary describes a first save capturing an existing workspace.
func BootstrapSummary(cs snapshot.ChangeSet) string {
	return fmt.Sprintf("Captured existing workspace baseline: %d files. Key files: %s.", cs.Len(), samplePaths(cs))
}

func samplePaths(cs snapshot.ChangeSet) string {
	sample := cs.Paths()
	if len(sample) == 0 {
		return "none"
	}
	if len(sample) > summarySamples {
		sample = sample[:summarySamples]
	}
	return strings.Join(sample, ", ")
}
