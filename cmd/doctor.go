package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/teamcontext/internal/flows"
)

func newDoctorCommand(opts *rootOptions) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the project layout, vendor checkout and engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, p, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			rep := env.Doctor(cmd.Context())
			if !quiet {
				p.Heading("Doctor report")
				for _, c := range rep.Checks {
					p.Check(c.OK, c.Name, c.Detail)
				}
				p.Item("summary", fmt.Sprintf("%d ok, %d fail", len(rep.Checks)-rep.Failures(), rep.Failures()))
			}
			if !rep.OK() {
				return reported(ExitFailure, fmt.Errorf("%w: %d failing checks", flows.ErrUnhealthy, rep.Failures()))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only set the exit code")
	return cmd
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize the shared store and the last sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, p, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			rep, err := env.Status(cmd.Context())
			if err != nil {
				return err
			}
			p.Heading("TeamContext status")
			p.Item("root", rep.Root)
			p.Item("shared files", rep.SharedFiles)
			for _, c := range rep.Categories {
				p.Item(c.Category, c.Count)
			}
			p.Item("local index file", rep.IndexFile)
			lastSync := "never"
			if !rep.LastSync.IsZero() {
				lastSync = rep.LastSync.UTC().Format("2006-01-02T15:04:05Z")
			}
			p.Item("last sync", lastSync)
			p.Item("synced file entries", rep.SyncedEntries)
			return nil
		},
	}
}
