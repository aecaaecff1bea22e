package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/teamcontext/internal/flows"
	"github.com/papapumpkin/teamcontext/internal/publish"
	"github.com/papapumpkin/teamcontext/internal/ui"
)

func newSaveCommand(opts *rootOptions) *cobra.Command {
	var (
		saveOpts  flows.SaveOptions
		kind      string
		threshold int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Publish recent workspace progress as a review candidate",
		Long: `Compares the workspace with the last save and writes a changelog entry and a
candidate document describing the changes. Topic and summary are derived
from the changed files unless given.

--bootstrap captures the whole existing workspace; it is refused above the
large-save threshold unless --force-large-save is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := publish.ParseKind(kind)
			if err != nil {
				return err
			}
			saveOpts.Kind = k
			if cmd.Flags().Changed("large-save-threshold") {
				saveOpts.LargeSaveThreshold = &threshold
			}

			env, p, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			rep, err := env.Save(cmd.Context(), saveOpts)
			if asJSON && (err == nil || errors.Is(err, flows.ErrBlocked)) {
				if jerr := p.JSON(saveJSON(rep)); jerr != nil {
					return jerr
				}
				if err != nil {
					return reported(ExitBlocked, err)
				}
				return nil
			}
			switch {
			case errors.Is(err, flows.ErrLargeSave):
				p.Warn("Bootstrap save blocked: " + strings.TrimPrefix(err.Error(), flows.ErrLargeSave.Error()+": "))
				p.Line("Re-run with --force-large-save to capture it anyway, or raise --large-save-threshold.")
				return reported(ExitLargeSave, err)
			case errors.Is(err, flows.ErrBlocked):
				printFindings(p, rep.PublishReport, "Auto-save")
				return reported(ExitBlocked, err)
			case err != nil:
				return err
			}

			if rep.NoChanges {
				p.Line("No new workspace changes since last save.")
				return nil
			}
			printFindings(p, rep.PublishReport, "Auto-save")
			title := "Auto context save complete"
			if rep.Bootstrap {
				title = "Bootstrap context save complete"
			}
			p.Heading(title)
			p.Item("topic", rep.Topic)
			p.Item("changed files", rep.Changes.Len())
			p.Item("changelog", rep.Artifacts.ChangelogPath)
			p.Item("candidate", rep.Artifacts.CandidatePath)
			p.Line("Agent usage:")
			p.Bullet(`before push, you can say: "save recent context to tc"`)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&saveOpts.Topic, "topic", "", "topic (default derived from changed paths)")
	f.StringVar(&saveOpts.Summary, "summary", "", "summary (default derived from changes)")
	f.StringVar(&saveOpts.User, "user", "", "author (default current user)")
	f.StringVar(&kind, "kind", string(publish.KindPattern), "artifact kind: decision, pattern or runbook")
	f.BoolVar(&saveOpts.AllowFindings, "allow-findings", false, "publish even when the secret scan reports findings")
	f.BoolVar(&saveOpts.Bootstrap, "bootstrap", false, "capture the whole workspace instead of changes since the last save")
	f.BoolVar(&saveOpts.AutoBootstrapIfEmpty, "auto-bootstrap-if-empty", false, "bootstrap when the shared store has no changelog or candidate yet")
	f.IntVar(&threshold, "large-save-threshold", 0, "maximum files a bootstrap save may capture (default from config)")
	f.BoolVar(&saveOpts.ForceLargeSave, "force-large-save", false, "allow a bootstrap save above the threshold")
	f.BoolVar(&asJSON, "json", false, "print the machine-readable payload")
	return cmd
}

type saveResult struct {
	OK           bool     `json:"ok"`
	NoChanges    bool     `json:"no_changes"`
	Bootstrap    bool     `json:"bootstrap"`
	Blocked      bool     `json:"blocked"`
	Topic        string   `json:"topic,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	ChangedFiles int      `json:"changed_files"`
	Changelog    string   `json:"changelog,omitempty"`
	Candidate    string   `json:"candidate,omitempty"`
	Findings     []string `json:"findings"`
}

func saveJSON(rep flows.SaveReport) saveResult {
	findings := make([]string, 0, len(rep.Findings))
	for _, f := range rep.Findings {
		findings = append(findings, string(f))
	}
	return saveResult{
		OK:           !rep.Blocked,
		NoChanges:    rep.NoChanges,
		Bootstrap:    rep.Bootstrap,
		Blocked:      rep.Blocked,
		Topic:        rep.Topic,
		Summary:      rep.Summary,
		ChangedFiles: rep.Changes.Len(),
		Changelog:    rep.Artifacts.ChangelogRel,
		Candidate:    rep.Artifacts.CandidateRel,
		Findings:     findings,
	}
}

// printFindings lists secret scan findings and, when they block, explains
// the override. what names the operation in the blocking message.
func printFindings(p *ui.Printer, rep flows.PublishReport, what string) {
	if len(rep.Findings) == 0 {
		return
	}
	p.Warn("Secret/PII scan findings detected:")
	for _, f := range rep.Findings {
		p.Bullet("%s", f)
	}
	if rep.Blocked {
		p.Line(what + " artifacts were generated, but blocking due to findings.")
		p.Line("Re-run with --allow-findings only if this is a false positive.")
	}
}
