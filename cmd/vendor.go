package cmd

import (
	"github.com/spf13/cobra"
)

func newVendorCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vendor",
		Short: "Manage the pinned engine checkout",
	}
	cmd.AddCommand(newVendorUpgradeCommand(opts))
	return cmd
}

func newVendorUpgradeCommand(opts *rootOptions) *cobra.Command {
	var ref string

	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Check out a new engine ref and repin the lock",
		Long: `Fetches the engine remote when one is configured, checks out --ref and
records the resolved commit in the lock. A failed upgrade leaves the lock
untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, p, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			out, err := env.VendorUpgrade(cmd.Context(), ref)
			if err != nil {
				return err
			}
			if !out.OK {
				p.Line("Vendor upgrade failed: " + out.Message)
				return &ExitError{Code: ExitFailure, Message: out.Message, Err: out.Err, Reported: true}
			}
			p.Heading("Vendor upgrade complete")
			p.Item("vendor", out.Message)
			p.Item("lock", env.Paths.LockPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&ref, "ref", "", "branch, tag or commit to check out (default the locked ref)")
	return cmd
}
