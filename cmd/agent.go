package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAgentCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Helpers for coding agents",
	}
	cmd.AddCommand(newAgentRunCommand(opts), newAgentPromptCommand(opts))
	return cmd
}

func newAgentRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <phrase...>",
		Short: "Run the tc command mapped to a spoken intent",
		Long: `Matches the phrase against .tc/agent/intents.json and runs the mapped tc
command in this project.`,
		Example: `  tc agent run sync latest context
  tc agent run "save recent context to tc"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, p, err := opts.open(cmd)
			if err != nil {
				return err
			}
			rule, err := env.ResolveIntent(args)
			env.Close()
			if err != nil {
				return err
			}
			if len(rule.Command) < 2 || rule.Command[0] != "tc" || rule.Command[1] == "agent" {
				return NewExitError(ExitBlocked, fmt.Sprintf("intent %q maps to an unsupported command: %s", rule.Intent, strings.Join(rule.Command, " ")))
			}
			p.Debugf("intent %q -> %s", rule.Intent, strings.Join(rule.Command, " "))

			sub := NewRootCommand()
			sub.SetArgs(append(append([]string{}, rule.Command[1:]...), opts.forward()...))
			sub.SetOut(cmd.OutOrStdout())
			sub.SetErr(cmd.ErrOrStderr())
			return sub.ExecuteContext(cmd.Context())
		},
	}
}

func newAgentPromptCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt",
		Short: "Print the agent bootstrap prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, p, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()
			p.Line(env.BootstrapPrompt())
			return nil
		},
	}
}

// forward returns the global flags to pass to a nested invocation.
func (o *rootOptions) forward() []string {
	args := []string{"--project-root", o.ProjectRoot}
	if o.ConfigPath != "" {
		args = append(args, "--config", o.ConfigPath)
	}
	if o.Verbose {
		args = append(args, "--verbose")
	}
	return args
}
