package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/teamcontext/internal/flows"
	"github.com/papapumpkin/teamcontext/internal/publish"
)

func newCommitCommand(opts *rootOptions) *cobra.Command {
	var (
		commitOpts flows.CommitOptions
		kind       string
	)

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Publish an explicit decision, pattern or runbook for review",
		Example: `  tc commit --topic "auth tokens" --summary "Access tokens expire after 15 minutes."
  tc commit --kind runbook --topic deploy --summary "Roll back with make rollback."`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := publish.ParseKind(kind)
			if err != nil {
				return err
			}
			commitOpts.Kind = k

			env, p, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			rep, err := env.Commit(cmd.Context(), commitOpts)
			if errors.Is(err, flows.ErrBlocked) {
				printFindings(p, rep, "Commit")
				return reported(ExitBlocked, err)
			}
			if err != nil {
				return err
			}

			printFindings(p, rep, "Commit")
			p.Heading("Commit artifacts generated")
			p.Item("changelog", rep.Artifacts.ChangelogPath)
			p.Item("candidate", rep.Artifacts.CandidatePath)
			p.Line("Next steps:")
			p.Bullet("git status")
			p.Bullet("git add %s %s", env.Paths.Rel(env.Paths.SharedDir), env.Paths.Rel(env.Paths.TCDir))
			p.Bullet("git commit -m 'teamcontext: publish context'")
			p.Bullet("git push")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&commitOpts.Topic, "topic", "", "topic of the artifact (required)")
	f.StringVar(&commitOpts.Summary, "summary", "", "summary recorded verbatim (required)")
	f.StringVar(&commitOpts.User, "user", "", "author (default current user)")
	f.StringVar(&kind, "kind", string(publish.KindDecision), "artifact kind: decision, pattern or runbook")
	f.BoolVar(&commitOpts.AllowFindings, "allow-findings", false, "publish even when the secret scan reports findings")
	return cmd
}
