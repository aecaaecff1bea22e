package vendored

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotInitialized indicates the vendored checkout or its lock is absent.
var ErrNotInitialized = errors.New("vendor repository is missing; run `tc init` first")

// ShortHashLen is the abbreviated commit length used in messages.
const ShortHashLen = 12

const notRepoMessage = "vendor exists but is not a git repository"

// Outcome reports the result of a reconcile step. Degraded marks a skip that
// should not fail the surrounding flow (git unavailable).
type Outcome struct {
	OK       bool
	Degraded bool
	Message  string
	Err      error
}

// State classifies the vendored checkout.
type State string

// Checkout states reported by Health.
const (
	StateHealthy     State = "healthy"
	StateMissing     State = "missing"
	StateNotCheckout State = "not-checkout"
	StateMismatch    State = "mismatch"
)

// Health describes the vendored checkout relative to the lock.
type Health struct {
	State    State
	Message  string
	Expected string
	Actual   string
}

// OK reports whether the checkout matches the lock.
func (h Health) OK() bool { return h.State == StateHealthy }

// Reconciler brings the checkout at Dir in line with the lock at LockPath.
type Reconciler struct {
	Runner   Runner
	Dir      string
	LockPath string
}

// NewReconciler returns a Reconciler using runner. A nil runner uses the git
// executable on PATH.
func NewReconciler(runner Runner, dir, lockPath string) *Reconciler {
	if runner == nil {
		runner = CLIRunner{}
	}
	return &Reconciler{Runner: runner, Dir: dir, LockPath: lockPath}
}

// Present reports whether Dir holds a git checkout.
func (r *Reconciler) Present() bool {
	_, err := os.Stat(filepath.Join(r.Dir, ".git"))
	return err == nil
}

// EnsurePresent clones the pinned ref when the checkout is absent or checks
// it out when present, then records the resolved commit in the lock.
func (r *Reconciler) EnsurePresent(ctx context.Context, lock *Lock) Outcome {
	if lock == nil {
		return Outcome{Message: ErrNotInitialized.Error(), Err: ErrNotInitialized}
	}
	ref := lock.Engine.Ref

	if r.Present() {
		res := r.Runner.Run(ctx, r.Dir, "checkout", ref)
		if !res.OK() {
			return r.gitFailure(res, "vendor checkout failed")
		}
		if err := r.pin(ctx, lock, ref); err != nil && !errors.Is(err, errUnresolved) {
			return Outcome{Message: err.Error(), Err: err}
		}
		return Outcome{OK: true, Message: "vendor already present; checked out requested ref"}
	}

	if _, err := os.Stat(r.Dir); err == nil {
		// An existing directory that is not a checkout is never replaced.
		return Outcome{Message: notRepoMessage}
	}
	if err := os.MkdirAll(filepath.Dir(r.Dir), 0o755); err != nil {
		return Outcome{Message: fmt.Sprintf("creating vendor directory: %v", err), Err: err}
	}
	res := r.Runner.Run(ctx, "", "clone", "--depth", "1", "--branch", ref, lock.Engine.Repo, r.Dir)
	if res.Reason == ReasonNonZeroExit {
		// --branch only accepts branches and tags; retry in full for a commit.
		// Dir did not exist before the shallow clone, so anything there is its leftover.
		os.RemoveAll(r.Dir)
		if full := r.Runner.Run(ctx, "", "clone", lock.Engine.Repo, r.Dir); full.OK() {
			res = r.Runner.Run(ctx, r.Dir, "checkout", ref)
		}
	}
	if !res.OK() {
		if res.Reason == ReasonToolMissing {
			return r.gitFailure(res, "")
		}
		msg := res.Message()
		if msg == "" {
			msg = "unknown git error"
		}
		return Outcome{Message: "vendor clone skipped: " + msg, Err: res.Err}
	}
	if err := r.pin(ctx, lock, ref); err != nil && !errors.Is(err, errUnresolved) {
		return Outcome{Message: err.Error(), Err: err}
	}
	return Outcome{OK: true, Message: "vendor cloned and pinned"}
}

// Upgrade moves the checkout to ref. The lock is only rewritten after the
// new commit has been resolved, so a failed upgrade leaves it untouched.
func (r *Reconciler) Upgrade(ctx context.Context, lock *Lock, ref string) Outcome {
	if lock == nil || !r.Present() {
		return Outcome{Message: ErrNotInitialized.Error(), Err: ErrNotInitialized}
	}

	remotes := r.Runner.Run(ctx, r.Dir, "remote")
	if remotes.Reason == ReasonToolMissing {
		return Outcome{Degraded: true, Message: "git not found", Err: remotes.Err}
	}
	if remotes.OK() && strings.TrimSpace(remotes.Stdout) != "" {
		if fetch := r.Runner.Run(ctx, r.Dir, "fetch", "--tags", "--prune"); !fetch.OK() {
			return r.gitFailure(fetch, "git fetch failed")
		}
	}

	if co := r.Runner.Run(ctx, r.Dir, "checkout", ref); !co.OK() {
		return r.gitFailure(co, "git checkout failed")
	}
	commit, err := r.Head(ctx)
	if err != nil {
		return Outcome{Message: "unable to resolve checked out commit", Err: err}
	}

	updated := *lock
	updated.Engine.Ref = ref
	updated.Engine.ResolvedCommit = commit
	if err := SaveLock(r.LockPath, &updated); err != nil {
		return Outcome{Message: err.Error(), Err: err}
	}
	*lock = updated
	return Outcome{OK: true, Message: fmt.Sprintf("checked out %s (%s)", ref, Short(commit))}
}

// Health compares the checkout's HEAD with the lock's resolved commit.
func (r *Reconciler) Health(ctx context.Context, lock *Lock) Health {
	var expected string
	if lock != nil {
		expected = lock.Engine.ResolvedCommit
	}
	if _, err := os.Stat(r.Dir); err != nil {
		return Health{State: StateMissing, Message: "missing vendor repository", Expected: expected}
	}
	if !r.Present() {
		return Health{State: StateNotCheckout, Message: notRepoMessage, Expected: expected}
	}
	actual, err := r.Head(ctx)
	if err != nil {
		return Health{State: StateNotCheckout, Message: "unable to read vendor commit", Expected: expected}
	}
	if expected != "" && actual != expected {
		return Health{
			State:    StateMismatch,
			Message:  fmt.Sprintf("commit mismatch (expected %s, got %s)", Short(expected), Short(actual)),
			Expected: expected,
			Actual:   actual,
		}
	}
	return Health{State: StateHealthy, Message: fmt.Sprintf("ok (%s)", Short(actual)), Expected: expected, Actual: actual}
}

var errUnresolved = errors.New("unresolved HEAD")

// Head returns the full commit hash checked out at Dir.
func (r *Reconciler) Head(ctx context.Context) (string, error) {
	res := r.Runner.Run(ctx, r.Dir, "rev-parse", "HEAD")
	if !res.OK() {
		return "", fmt.Errorf("%w: %s", errUnresolved, res.Message())
	}
	commit := strings.TrimSpace(res.Stdout)
	if commit == "" {
		return "", errUnresolved
	}
	return commit, nil
}

// pin records the resolved HEAD for ref and persists the lock.
func (r *Reconciler) pin(ctx context.Context, lock *Lock, ref string) error {
	commit, err := r.Head(ctx)
	if err != nil {
		return err
	}
	lock.Engine.Ref = ref
	lock.Engine.ResolvedCommit = commit
	return SaveLock(r.LockPath, lock)
}

func (r *Reconciler) gitFailure(res Result, prefix string) Outcome {
	if res.Reason == ReasonToolMissing {
		return Outcome{Degraded: true, Message: "git not found; skipped vendor clone", Err: res.Err}
	}
	return Outcome{Message: fmt.Sprintf("%s: %s", prefix, res.Message()), Err: res.Err}
}

// Short abbreviates a commit hash.
func Short(commit string) string {
	if len(commit) > ShortHashLen {
		return commit[:ShortHashLen]
	}
	return commit
}
