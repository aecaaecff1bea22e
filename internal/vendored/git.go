package vendored

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Reason classifies why a git invocation did not succeed.
type Reason string

// Failure reasons reported in Result.
const (
	ReasonNone        Reason = "none"
	ReasonToolMissing Reason = "tool-missing"
	ReasonNonZeroExit Reason = "non-zero-exit"
	ReasonStartFailed Reason = "start-failed"
)

// Result captures one git invocation.
type Result struct {
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
	Reason   Reason
}

// OK reports whether the command ran and exited zero.
func (r Result) OK() bool {
	return r.Reason == ReasonNone
}

// Message returns the most useful human-readable failure text.
func (r Result) Message() string {
	switch r.Reason {
	case ReasonNone:
		return ""
	case ReasonToolMissing:
		return "git executable not found"
	}
	if msg := strings.TrimSpace(r.Stderr); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(r.Stdout); msg != "" {
		return msg
	}
	if r.Err != nil {
		return r.Err.Error()
	}
	return fmt.Sprintf("git %s exited %d", strings.Join(r.Args, " "), r.ExitCode)
}

// Runner executes git in a working directory.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) Result
}

// CLIRunner runs the git executable found at Path (or on PATH when empty).
type CLIRunner struct {
	Path string
}

var _ Runner = CLIRunner{}

// Available reports whether the git executable can be found.
func (c CLIRunner) Available() bool {
	_, err := exec.LookPath(c.bin())
	return err == nil
}

// Run executes git with args in dir. dir may be empty for commands that do
// not need a working tree (clone).
func (c CLIRunner) Run(ctx context.Context, dir string, args ...string) Result {
	res := Result{Args: args, ExitCode: -1}
	bin, err := exec.LookPath(c.bin())
	if err != nil {
		res.Err = err
		res.Reason = ReasonToolMissing
		return res
	}

	full := args
	if dir != "" {
		full = append([]string{"-C", dir}, args...)
	}
	cmd := exec.CommandContext(ctx, bin, full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	if err == nil {
		res.ExitCode = 0
		res.Reason = ReasonNone
		return res
	}
	res.Err = err
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		res.Reason = ReasonNonZeroExit
		return res
	}
	res.Reason = ReasonStartFailed
	return res
}

func (c CLIRunner) bin() string {
	if c.Path == "" {
		return "git"
	}
	return c.Path
}
