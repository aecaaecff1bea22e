package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/teamcontext/internal/flows"
)

func newInitCommand(opts *rootOptions) *cobra.Command {
	var initOpts flows.InitOptions

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set up TeamContext in the project",
		Long: `Creates the .tc and .viking layout, writes the config and lock when absent,
clones the pinned engine checkout and regenerates the agent guidance files.
Re-running init is safe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, p, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			rep, err := env.Init(cmd.Context(), initOpts)
			if err != nil && !errors.Is(err, flows.ErrUnhealthy) {
				return err
			}

			p.Heading("Initialized TeamContext in " + rep.Root)
			p.Item("config", rep.ConfigPath)
			p.Item("lock", rep.LockPath)
			p.Item("vendor", rep.Vendor.Message)
			p.Item("agent bootstrap", rep.Agent.Bootstrap)
			p.Item("agent workflow", rep.Agent.Workflow)
			p.Item("agent intents", rep.Agent.Intents)
			if len(rep.GitignoreAdded) > 0 {
				p.Item(".gitignore updated with", strings.Join(rep.GitignoreAdded, ", "))
			}
			if !rep.Vendor.OK {
				p.Warn("- note: run `tc doctor` after network/git access is available")
			}
			p.Line("LLM workflow:")
			p.Bullet("after git pull: run `tc sync`")
			p.Bullet("`tc sync` prints a paste-ready bootstrap prompt for Codex/Claude")

			if err != nil {
				return &ExitError{Code: ExitFailure, Message: "doctor reported failures after init; run `tc doctor`"}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&initOpts.VendorRef, "vendor-ref", "", "engine ref to pin (default main)")
	f.StringVar(&initOpts.VendorRepo, "vendor-repo", "", "engine repository URL")
	f.BoolVar(&initOpts.SkipVendor, "skip-vendor", false, "do not clone the engine checkout")
	return cmd
}
