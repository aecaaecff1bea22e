// Package cmd implements the tc command line.
package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/teamcontext/internal/flows"
	"github.com/papapumpkin/teamcontext/internal/ui"
	"github.com/papapumpkin/teamcontext/internal/vendored"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ProjectRoot string
	ConfigPath  string
	Verbose     bool
}

// NewRootCommand creates the tc command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "tc",
		Short: "Share reviewed team context with coding agents",
		Long: `tc keeps a team's decisions, patterns and runbooks in a shared markdown
store, indexes them for coding agents and turns workspace progress into
reviewable candidate documents.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.ProjectRoot, "project-root", ".", "project root directory")
	pf.StringVar(&opts.ConfigPath, "config", "", "config file (default <project-root>/.tc/config.yaml)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(
		newInitCommand(opts),
		newSyncCommand(opts),
		newSaveCommand(opts),
		newCommitCommand(opts),
		newDoctorCommand(opts),
		newStatusCommand(opts),
		newVendorCommand(opts),
		newAgentCommand(opts),
	)
	return cmd
}

// Execute runs tc with the process arguments and returns the exit code.
func Execute() int {
	return Run(os.Args[1:], os.Stdout, os.Stderr)
}

// Run executes tc with args, writing to out and errOut, and returns the exit
// code. Errors are printed once as "error: ..." unless the command already
// explained them.
func Run(args []string, out, errOut io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	err := cmd.Execute()
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || !exitErr.Reported {
		ui.New(out, errOut, false).Error(err.Error())
	}
	return ExitCode(err)
}

func (o *rootOptions) printer(cmd *cobra.Command) *ui.Printer {
	return ui.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), o.Verbose)
}

// open resolves the project environment for a command. Callers close it.
func (o *rootOptions) open(cmd *cobra.Command) (*flows.Env, *ui.Printer, error) {
	p := o.printer(cmd)
	env, err := flows.Open(o.ProjectRoot, o.ConfigPath)
	if err != nil {
		return nil, p, err
	}
	env.Git = gitLogger{next: env.Git, p: p}
	p.Debugf("project root: %s", env.Paths.Root)
	return env, p, nil
}

// gitLogger echoes git invocations in verbose mode.
type gitLogger struct {
	next vendored.Runner
	p    *ui.Printer
}

func (g gitLogger) Run(ctx context.Context, dir string, args ...string) vendored.Result {
	res := g.next.Run(ctx, dir, args...)
	if res.OK() {
		g.p.Debugf("git %s", strings.Join(args, " "))
	} else {
		g.p.Debugf("git %s: %s", strings.Join(args, " "), res.Message())
	}
	return res
}
