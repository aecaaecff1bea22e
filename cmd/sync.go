package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/teamcontext/internal/flows"
	"github.com/papapumpkin/teamcontext/internal/ui"
)

func newSyncCommand(opts *rootOptions) *cobra.Command {
	var (
		asJSON bool
		watch  bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Index the shared store and print the agent bootstrap prompt",
		Long: `Scans the shared store for markdown documents, reports what changed since
the last sync and rebuilds the local index.

With --watch, sync runs again whenever a shared document changes until
interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, p, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			rep, err := env.Sync(cmd.Context())
			if err != nil {
				return err
			}
			if err := printSync(p, rep, asJSON); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			p.Debugf("watching %s", env.Paths.SharedDir)
			return env.Watch(ctx, func(rep flows.SyncReport, err error) {
				if err != nil {
					p.Error(err.Error())
					return
				}
				if err := printSync(p, rep, asJSON); err != nil {
					p.Error(err.Error())
				}
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the machine-readable payload")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-sync whenever shared documents change")
	return cmd
}

func printSync(p *ui.Printer, rep flows.SyncReport, asJSON bool) error {
	if asJSON {
		return p.JSON(rep)
	}
	p.Heading("Sync complete")
	p.Item("shared files scanned", rep.SharedFilesScanned)
	p.Item("changed files", rep.ChangedFiles)
	p.Item("removed files", rep.RemovedFiles)
	p.Item("local index", rep.IndexFile)
	p.Item("engine", rep.EngineMessage)
	p.Line("Bootstrap prompt (paste into Codex/Claude):")
	p.Line(rep.BootstrapPrompt)
	return nil
}
