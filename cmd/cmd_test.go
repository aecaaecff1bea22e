package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papapumpkin/teamcontext/internal/flows"
	"github.com/papapumpkin/teamcontext/internal/vendored"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func tc(t *testing.T, root string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	code := Run(append([]string{"--project-root", root}, args...), &out, &errOut)
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

func initProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	res := tc(t, root, "init", "--skip-vendor")
	require.Equal(t, ExitOK, res.code, "init failed: %s%s", res.stdout, res.stderr)
	return root
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func sharedDoc(root, category, name string) string {
	return filepath.Join(root, ".viking", "agfs", "shared", category, name)
}

func countMarkdown(t *testing.T, dir string) int {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.md"))
	require.NoError(t, err)
	return len(matches)
}

func TestRootCommand(t *testing.T) {
	t.Parallel()
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "tc", cmd.Use)

	for _, path := range [][]string{{"init"}, {"sync"}, {"save"}, {"commit"}, {"doctor"}, {"status"}, {"vendor", "upgrade"}, {"agent", "run"}, {"agent", "prompt"}} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err, "command %v should exist", path)
		assert.Equal(t, path[len(path)-1], sub.Name())
	}

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("project-root"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestInit(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	res := tc(t, root, "init", "--skip-vendor")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Initialized TeamContext in ")
	assert.Contains(t, res.stdout, "- vendor: vendor clone skipped (--skip-vendor)")
	assert.Contains(t, res.stdout, "- .gitignore updated with: .tc/vendor/, .tc/state/")
	assert.Contains(t, res.stdout, "- note: run `tc doctor`")

	for _, rel := range []string{
		".tc/config.yaml",
		".tc/lock.toml",
		".tc/agent/bootstrap_prompt.md",
		".tc/agent/workflow.md",
		".tc/agent/intents.json",
		".viking/index/index.txt",
		".gitignore",
	} {
		assert.FileExists(t, filepath.Join(root, rel))
	}
	assert.DirExists(t, filepath.Join(root, ".viking", "agfs", "shared", "changelog"))

	again := tc(t, root, "init", "--skip-vendor")
	require.Equal(t, ExitOK, again.code)
	assert.NotContains(t, again.stdout, ".gitignore updated")
}

func TestSync_JSON(t *testing.T) {
	t.Parallel()
	root := initProject(t)
	write(t, sharedDoc(root, "decisions", "d1.md"), "# d1\n")

	res := tc(t, root, "sync", "--json")
	require.Equal(t, ExitOK, res.code, res.stderr)

	var payload flows.SyncReport
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &payload))
	assert.True(t, payload.OK)
	assert.Equal(t, 1, payload.SharedFilesScanned)
	assert.Contains(t, payload.ChangedPaths, ".viking/agfs/shared/decisions/d1.md")
	assert.NotEmpty(t, payload.BootstrapPrompt)

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &raw))
	for _, key := range []string{"ok", "shared_files_scanned", "changed_files", "removed_files", "changed_paths", "removed_paths", "index_file", "engine_message", "bootstrap_prompt"} {
		assert.Contains(t, raw, key)
	}

	index, err := os.ReadFile(filepath.Join(root, ".viking", "index", "index.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "engine_imported=")
	assert.FileExists(t, filepath.Join(root, ".tc", "state", "sync_state.toml"))
	assert.FileExists(t, filepath.Join(root, ".tc", "state", flows.LastSyncFile))
}

func TestSync_Text(t *testing.T) {
	t.Parallel()
	root := initProject(t)

	res := tc(t, root, "sync")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Sync complete\n- shared files scanned: 0\n- changed files: 0\n- removed files: 0\n")
	assert.Contains(t, res.stdout, "Bootstrap prompt (paste into Codex/Claude):\nRead the following TeamContext sources before coding:")
}

func TestAgentRun_ExecutesMappedCommand(t *testing.T) {
	t.Parallel()
	root := initProject(t)
	write(t, sharedDoc(root, "decisions", "d1.md"), "# d1\n")

	res := tc(t, root, "agent", "run", "sync", "latest", "context")
	require.Equal(t, ExitOK, res.code, res.stderr)

	var payload flows.SyncReport
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &payload))
	assert.True(t, payload.OK)
	assert.Equal(t, 1, payload.SharedFilesScanned)

	unknown := tc(t, root, "agent", "run", "deploy", "to", "prod")
	assert.Equal(t, ExitBlocked, unknown.code)
	assert.Contains(t, unknown.stderr, "error: no matching intent")
}

func TestCommit(t *testing.T) {
	t.Parallel()

	t.Run("blocks on secret findings", func(t *testing.T) {
		t.Parallel()
		root := initProject(t)
		res := tc(t, root, "commit", "--topic", "security", "--summary", "api_key=1234567890123456")
		assert.Equal(t, ExitBlocked, res.code)
		assert.Contains(t, res.stdout, "Secret/PII scan findings detected:\n- generic_api_key\n")
		assert.Contains(t, res.stdout, "Commit artifacts were generated, but blocking due to findings.")
		assert.Empty(t, res.stderr)
		assert.Equal(t, 1, countMarkdown(t, filepath.Join(root, ".viking", "agfs", "shared", "candidates")))
		assert.Equal(t, 1, countMarkdown(t, filepath.Join(root, ".viking", "agfs", "shared", "changelog")))
	})

	t.Run("scan disabled in config", func(t *testing.T) {
		t.Parallel()
		root := initProject(t)
		cfgPath := filepath.Join(root, ".tc", "config.yaml")
		data, err := os.ReadFile(cfgPath)
		require.NoError(t, err)
		require.Contains(t, string(data), "secret_scan: true")
		write(t, cfgPath, strings.Replace(string(data), "secret_scan: true", "secret_scan: false", 1))

		res := tc(t, root, "commit", "--topic", "security", "--summary", "api_key=1234567890123456")
		assert.Equal(t, ExitOK, res.code, res.stderr)
		assert.NotContains(t, res.stdout, "findings")
		assert.Contains(t, res.stdout, "Commit artifacts generated")
		assert.Contains(t, res.stdout, "- git add .viking/agfs/shared .tc\n")
	})

	t.Run("requires topic and summary", func(t *testing.T) {
		t.Parallel()
		root := initProject(t)
		res := tc(t, root, "commit", "--topic", "security")
		assert.Equal(t, ExitBlocked, res.code)
		assert.Contains(t, res.stderr, "error: missing required input")
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		t.Parallel()
		root := initProject(t)
		res := tc(t, root, "commit", "--kind", "memo", "--topic", "t", "--summary", "s")
		assert.Equal(t, ExitBlocked, res.code)
		assert.Contains(t, res.stderr, "unknown artifact kind")
	})
}

func TestSave(t *testing.T) {
	t.Parallel()

	t.Run("auto generates artifacts", func(t *testing.T) {
		t.Parallel()
		root := initProject(t)
		write(t, filepath.Join(root, "src", "feature.py"), "print('v1')\n")

		res := tc(t, root, "save")
		require.Equal(t, ExitOK, res.code, res.stderr)
		assert.Contains(t, res.stdout, "Auto context save complete\n- topic: auto-update-src\n- changed files: 1\n")
		assert.Contains(t, res.stdout, `- before push, you can say: "save recent context to tc"`)
		assert.Equal(t, 1, countMarkdown(t, filepath.Join(root, ".viking", "agfs", "shared", "changelog")))
		assert.FileExists(t, filepath.Join(root, ".tc", "state", "save_state.toml"))
	})

	t.Run("no changes after init", func(t *testing.T) {
		t.Parallel()
		root := initProject(t)
		res := tc(t, root, "save")
		assert.Equal(t, ExitOK, res.code)
		assert.Contains(t, res.stdout, "No new workspace changes since last save.")
	})

	t.Run("bootstrap captures baseline", func(t *testing.T) {
		t.Parallel()
		root := initProject(t)
		write(t, filepath.Join(root, "README.md"), "existing project baseline\n")
		res := tc(t, root, "save", "--bootstrap")
		assert.Equal(t, ExitOK, res.code, res.stderr)
		assert.Equal(t, 1, countMarkdown(t, filepath.Join(root, ".viking", "agfs", "shared", "candidates")))
	})

	t.Run("bootstrap over threshold is blocked", func(t *testing.T) {
		t.Parallel()
		root := initProject(t)
		write(t, filepath.Join(root, "README.md"), "existing project baseline\n")
		res := tc(t, root, "save", "--bootstrap", "--large-save-threshold", "0")
		assert.Equal(t, ExitLargeSave, res.code)
		assert.Contains(t, res.stdout, "Bootstrap save blocked")
		assert.Equal(t, 0, countMarkdown(t, filepath.Join(root, ".viking", "agfs", "shared", "candidates")))
	})

	t.Run("force large save", func(t *testing.T) {
		t.Parallel()
		root := initProject(t)
		write(t, filepath.Join(root, "README.md"), "existing project baseline\n")
		res := tc(t, root, "save", "--bootstrap", "--large-save-threshold", "0", "--force-large-save")
		assert.Equal(t, ExitOK, res.code, res.stderr)
	})

	t.Run("auto bootstrap when history is empty", func(t *testing.T) {
		t.Parallel()
		root := initProject(t)
		write(t, filepath.Join(root, "README.md"), "existing project baseline\n")
		res := tc(t, root, "save", "--auto-bootstrap-if-empty")
		assert.Equal(t, ExitOK, res.code, res.stderr)
		assert.Contains(t, res.stdout, "Bootstrap context save complete")
		assert.Equal(t, 1, countMarkdown(t, filepath.Join(root, ".viking", "agfs", "shared", "changelog")))
	})

	t.Run("json payload when blocked", func(t *testing.T) {
		t.Parallel()
		root := initProject(t)
		write(t, filepath.Join(root, "notes.txt"), "x\n")
		res := tc(t, root, "save", "--json", "--summary", "secret: abcdefghijklmnopqrstu")
		assert.Equal(t, ExitBlocked, res.code)

		var payload map[string]any
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &payload))
		assert.Equal(t, false, payload["ok"])
		assert.Equal(t, true, payload["blocked"])
		assert.Equal(t, []any{"generic_api_key"}, payload["findings"])
	})
}

func TestDoctor(t *testing.T) {
	t.Parallel()

	t.Run("uninitialized project", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		res := tc(t, root, "doctor")
		assert.Equal(t, ExitFailure, res.code)
		assert.Contains(t, res.stdout, "Doctor report\n- FAIL config: ")
		assert.Contains(t, res.stdout, "- FAIL vendor: missing vendor repository\n")
		assert.Regexp(t, `- summary: \d+ ok, \d+ fail`, res.stdout)
		assert.Empty(t, res.stderr)
	})

	t.Run("quiet prints nothing", func(t *testing.T) {
		t.Parallel()
		root := initProject(t)
		res := tc(t, root, "doctor", "--quiet")
		assert.Equal(t, ExitFailure, res.code)
		assert.Empty(t, res.stdout)
	})
}

func TestStatus(t *testing.T) {
	t.Parallel()
	root := initProject(t)

	before := tc(t, root, "status")
	require.Equal(t, ExitOK, before.code)
	assert.Contains(t, before.stdout, "- last sync: never\n")

	write(t, sharedDoc(root, "decisions", "d1.md"), "# d1\n")
	require.Equal(t, ExitOK, tc(t, root, "sync").code)

	res := tc(t, root, "status")
	require.Equal(t, ExitOK, res.code)
	assert.Contains(t, res.stdout, "TeamContext status\n")
	assert.Contains(t, res.stdout, "- decisions: 1\n")
	assert.Contains(t, res.stdout, "- synced file entries: 1\n")
	assert.NotContains(t, res.stdout, "- last sync: never")
}

func TestVendorUpgrade(t *testing.T) {
	t.Parallel()

	t.Run("lock missing", func(t *testing.T) {
		t.Parallel()
		res := tc(t, t.TempDir(), "vendor", "upgrade", "--ref", "main")
		assert.Equal(t, ExitBlocked, res.code)
		assert.Equal(t, "error: lock file missing; run `tc init` first\n", res.stderr)
	})

	t.Run("without vendor checkout", func(t *testing.T) {
		t.Parallel()
		root := initProject(t)
		res := tc(t, root, "vendor", "upgrade", "--ref", "main")
		assert.Equal(t, ExitFailure, res.code)
		assert.Contains(t, res.stdout, "Vendor upgrade failed: vendor repository is missing; run `tc init` first")
	})

	t.Run("updates lock on success", func(t *testing.T) {
		t.Parallel()
		if _, err := exec.LookPath("git"); err != nil {
			t.Skip("git not available")
		}
		root := initProject(t)
		remote := filepath.Join(t.TempDir(), "remote.git")
		seed := t.TempDir()
		vendor := filepath.Join(root, ".tc", "vendor", "openviking")

		git(t, "", "init", "--bare", remote)
		git(t, seed, "init", "-b", "main")
		write(t, filepath.Join(seed, "README.md"), "# seed\n")
		git(t, seed, "add", ".")
		git(t, seed, "commit", "-m", "seed")
		git(t, seed, "remote", "add", "origin", remote)
		git(t, seed, "push", "-u", "origin", "main")
		write(t, filepath.Join(seed, "CHANGELOG.md"), "v0.2.0\n")
		git(t, seed, "add", ".")
		git(t, seed, "commit", "-m", "v0.2.0")
		git(t, seed, "tag", "v0.2.0")
		git(t, seed, "push", "origin", "main", "--tags")
		git(t, "", "clone", remote, vendor)

		res := tc(t, root, "vendor", "upgrade", "--ref", "v0.2.0")
		require.Equal(t, ExitOK, res.code, res.stdout+res.stderr)
		assert.Contains(t, res.stdout, "Vendor upgrade complete\n- vendor: checked out v0.2.0 (")

		lock, err := vendored.LoadLock(filepath.Join(root, ".tc", "lock.toml"))
		require.NoError(t, err)
		assert.Equal(t, "v0.2.0", lock.Engine.Ref)
		assert.Equal(t, git(t, vendor, "rev-list", "-n", "1", "v0.2.0"), lock.Engine.ResolvedCommit)
	})
}

func TestVerboseWritesDiagnosticsToStderr(t *testing.T) {
	t.Parallel()
	root := initProject(t)

	res := tc(t, root, "--verbose", "status")
	require.Equal(t, ExitOK, res.code)
	assert.Contains(t, res.stderr, "project root: ")
	assert.NotContains(t, res.stdout, "project root: ")
}

func TestExitCode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain", os.ErrNotExist, ExitFailure},
		{"blocked", flows.ErrBlocked, ExitBlocked},
		{"large save", flows.ErrLargeSave, ExitLargeSave},
		{"missing input", flows.ErrMissingInput, ExitBlocked},
		{"explicit", NewExitError(7, "x"), 7},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	if dir != "" {
		args = append([]string{"-C", dir}, args...)
	}
	cmd := exec.Command("git", args...)
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@test.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@test.com",
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s\n%s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}
