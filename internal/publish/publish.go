// Package publish writes the linked pair of shared-store documents produced by
// every save or commit: a review candidate and the changelog entry that
// points at it. Both names are pure functions of (date, author, kind, topic),
// so publishing the same key twice overwrites instead of duplicating.
package publish

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Kind classifies a candidate document.
type Kind string

// Artifact kinds accepted by Publish.
const (
	KindDecision Kind = "decision"
	KindPattern  Kind = "pattern"
	KindRunbook  Kind = "runbook"
)

// Kinds lists the accepted kinds.
var Kinds = []Kind{KindDecision, KindPattern, KindRunbook}

// ErrUnknownKind indicates a kind outside Kinds.
var ErrUnknownKind = errors.New("unknown artifact kind")

// ParseKind validates s as a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w %q (want decision, pattern or runbook)", ErrUnknownKind, s)
}

// DateLayout formats the date prefix of artifact names.
const DateLayout = "2006-01-02"

// Request describes one publication.
type Request struct {
	Kind    Kind
	Topic   string
	Summary string
	Author  string
	Date    time.Time
}

// Result identifies the documents written by Publish. Rel paths are relative
// to the project root with forward slashes.
type Result struct {
	CandidatePath string
	ChangelogPath string
	CandidateRel  string
	ChangelogRel  string
}

// Publisher writes artifacts below the shared store.
type Publisher struct {
	Root      string // project root
	SharedDir string // absolute shared store directory
}

// CandidateName returns the candidate file name for a request.
func CandidateName(req Request) string {
	return fmt.Sprintf("%s-%s-%s-%s.md", req.Date.Format(DateLayout), Slugify(req.Author), req.Kind, Slugify(req.Topic))
}

// ChangelogName returns the changelog file name for a request.
func ChangelogName(req Request) string {
	return fmt.Sprintf("%s-%s-%s.md", req.Date.Format(DateLayout), Slugify(req.Author), Slugify(req.Topic))
}

// Publish writes the candidate, then the changelog entry referencing it.
func (p *Publisher) Publish(req Request) (Result, error) {
	if _, err := ParseKind(string(req.Kind)); err != nil {
		return Result{}, err
	}
	req.Topic = strings.TrimSpace(req.Topic)
	req.Summary = strings.TrimSpace(req.Summary)

	candidatePath := filepath.Join(p.SharedDir, "candidates", CandidateName(req))
	changelogPath := filepath.Join(p.SharedDir, "changelog", ChangelogName(req))
	res := Result{
		CandidatePath: candidatePath,
		ChangelogPath: changelogPath,
		CandidateRel:  p.rel(candidatePath),
		ChangelogRel:  p.rel(changelogPath),
	}

	candidate, err := RenderCandidate(req)
	if err != nil {
		return Result{}, err
	}
	if err := writeDoc(candidatePath, candidate); err != nil {
		return Result{}, fmt.Errorf("writing candidate: %w", err)
	}

	changelog, err := RenderChangelog(req, res.CandidateRel)
	if err != nil {
		return Result{}, err
	}
	if err := writeDoc(changelogPath, changelog); err != nil {
		return Result{}, fmt.Errorf("writing changelog: %w", err)
	}
	return res, nil
}

func (p *Publisher) rel(path string) string {
	rel, err := filepath.Rel(p.Root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func writeDoc(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// RenderCandidate renders the candidate document. Candidates are never
// auto-approved; every one starts out pending review.
func RenderCandidate(req Request) ([]byte, error) {
	date := req.Date.Format(DateLayout)
	author := Slugify(req.Author)

	var b strings.Builder
	fmt.Fprintf(&b, "# Candidate: %s\n\n", req.Kind)
	fmt.Fprintf(&b, "- date: %s\n", date)
	fmt.Fprintf(&b, "- author: %s\n", author)
	fmt.Fprintf(&b, "- topic: %s\n\n", req.Topic)
	b.WriteString("## Summary\n")
	b.WriteString(req.Summary + "\n\n")
	b.WriteString("## Review Notes\n")
	b.WriteString("- pending review\n")

	return writeFrontMatter(FrontMatter{
		Kind:   string(req.Kind),
		Topic:  req.Topic,
		Author: author,
		Date:   date,
		Status: StatusPendingReview,
	}, []byte(b.String()))
}

// RenderChangelog renders the changelog entry pointing at candidateRel.
func RenderChangelog(req Request, candidateRel string) ([]byte, error) {
	date := req.Date.Format(DateLayout)
	author := Slugify(req.Author)

	var b strings.Builder
	fmt.Fprintf(&b, "# Changelog: %s\n\n", req.Topic)
	fmt.Fprintf(&b, "- date: %s\n", date)
	fmt.Fprintf(&b, "- author: %s\n\n", author)
	b.WriteString("## What changed\n")
	b.WriteString(req.Summary + "\n\n")
	b.WriteString("## Candidate generated\n")
	b.WriteString(candidateRel + "\n")

	return writeFrontMatter(FrontMatter{
		Topic:     req.Topic,
		Author:    author,
		Date:      date,
		Candidate: candidateRel,
	}, []byte(b.String()))
}
