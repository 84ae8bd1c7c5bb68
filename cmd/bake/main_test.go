package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/bake/internal/checkout"
	"github.com/ManuGH/bake/internal/ledger"
	"github.com/ManuGH/bake/internal/vcs"
)

const localProject = `header:
  version: 14
machine: qemuarm
distro: poky
repos:
  this:
`

// setupProject writes a project without remote repos and points the work
// dir and ledger into temp dirs.
func setupProject(t *testing.T, content string) (project, workDir string) {
	t.Helper()
	projectDir := t.TempDir()
	project = filepath.Join(projectDir, "kas.yml")
	require.NoError(t, os.WriteFile(project, []byte(content), 0o644))

	workDir = t.TempDir()
	t.Setenv("KAS_WORK_DIR", workDir)
	t.Setenv("KAS_BUILD_DIR", "")
	t.Setenv("BAKE_LEDGER", filepath.Join(workDir, "ledger.sqlite"))
	t.Setenv("BAKE_OTEL_EXPORTER", "")
	return project, workDir
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runCLI()
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Usage:")

	code, stdout, _ := runCLI("help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "bake checkout")

	code, _, stderr = runCLI("build")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Unknown command: build")
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI("version")
	assert.Equal(t, 0, code)
	assert.Equal(t, checkout.Version().String()+"\n", stdout)
}

func TestCheckout_UsageErrors(t *testing.T) {
	setupProject(t, localProject)

	code, _, stderr := runCLI("checkout")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "exactly one project file")

	code, _, _ = runCLI("checkout", "--no-such-flag", "kas.yml")
	assert.Equal(t, 2, code)
}

func TestCheckout_LocalProject(t *testing.T) {
	project, workDir := setupProject(t, localProject)
	metricsFile := filepath.Join(t.TempDir(), "bake.prom")

	code, _, stderr := runCLI("checkout", "--skip", "setup_environ", "--metrics-file", metricsFile, project)
	require.Equal(t, 0, code, stderr)

	localConf, err := os.ReadFile(filepath.Join(workDir, "build", "conf", "local.conf"))
	require.NoError(t, err)
	assert.Contains(t, string(localConf), "MACHINE ??= \"qemuarm\"")
	assert.FileExists(t, filepath.Join(workDir, "build", "conf", "bblayers.conf"))

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "bake_checkout_runs_total")

	code, stdout, stderr := runCLI("history", "--format", "json")
	require.Equal(t, 0, code, stderr)
	var entries []ledger.Entry
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "this", entries[0].RepoID)
	assert.Equal(t, ledger.ActionUnmanaged, entries[0].Action)

	code, stdout, _ = runCLI("history", "--verify", "quick")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "REPO")
	assert.Contains(t, stdout, "unmanaged")
}

func TestCheckout_Failure(t *testing.T) {
	project, _ := setupProject(t, localProject)

	code, _, stderr := runCLI("checkout", "--skip", "compile", project)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unknown step")

	code, _, stderr = runCLI("checkout", "--no-ledger", filepath.Join(t.TempDir(), "missing.yml"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Checkout failed")
}

func TestValidate(t *testing.T) {
	project, _ := setupProject(t, localProject)
	code, stdout, stderr := runCLI("validate", project)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "✓ "+project)
	assert.Contains(t, stdout, "is valid")

	bad, _ := setupProject(t, "header:\n  version: 14\nmachin: qemuarm\n")
	code, _, stderr = runCLI("validate", bad)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Configuration error")
}

func TestValidate_RepoIncludesAreListed(t *testing.T) {
	project, _ := setupProject(t, `header:
  version: 14
  includes:
    - repo: meta-ext
      file: kas/base.yml
repos:
  meta-ext:
    url: https://example.com/meta-ext.git
`)
	code, stdout, stderr := runCLI("validate", project)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, `includes from repo "meta-ext"`)
}

func TestDump(t *testing.T) {
	project, _ := setupProject(t, localProject)

	code, stdout, stderr := runCLI("dump", project)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "machine: qemuarm\n")
	assert.Contains(t, stdout, "distro: poky\n")

	code, stdout, stderr = runCLI("dump", "--format", "json", project)
	require.Equal(t, 0, code, stderr)
	var tree map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &tree))
	assert.Equal(t, "qemuarm", tree["machine"])

	code, _, _ = runCLI("dump", "--format", "toml", project)
	assert.Equal(t, 2, code)
}

func TestExec(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	project, workDir := setupProject(t, localProject)

	code, stdout, stderr := runCLI("exec", "--skip", "setup_environ", project, "--", "sh", "-c", "pwd")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, filepath.Join(workDir, "build")+"\n", stdout)

	code, _, _ = runCLI("exec", "--skip", "setup_environ", project, "--", "sh", "-c", "exit 3")
	assert.Equal(t, 3, code)

	code, _, _ = runCLI("exec", project)
	assert.Equal(t, 2, code)
	code, _, _ = runCLI("exec", project, "--")
	assert.Equal(t, 2, code)
}

func TestChildExitCode(t *testing.T) {
	assert.Equal(t, 42, childExitCode(fmt.Errorf("wrapped: %w", &vcs.ExitError{Cmd: "bitbake", Code: 42})))
	assert.Equal(t, 1, childExitCode(&vcs.ExitError{Cmd: "bitbake", Code: -1}))
	assert.Equal(t, 1, childExitCode(errors.New("exec: not found")))
}

func TestCheckout_LedgerFollowsWorkDirFlag(t *testing.T) {
	project, _ := setupProject(t, localProject)
	t.Setenv("BAKE_LEDGER", "")
	flagWorkDir := t.TempDir()

	code, _, stderr := runCLI("checkout", "--work-dir", flagWorkDir, "--skip", "setup_environ", project)
	require.Equal(t, 0, code, stderr)
	assert.FileExists(t, filepath.Join(flagWorkDir, ".bake", "ledger.sqlite"))

	code, stdout, stderr := runCLI("history", "--work-dir", flagWorkDir, "--format", "json")
	require.Equal(t, 0, code, stderr)
	var entries []ledger.Entry
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
	assert.Len(t, entries, 1)
}

func TestDump_KeepsRevisionText(t *testing.T) {
	project, _ := setupProject(t, `header:
  version: 14
repos:
  meta-ext:
    url: https://example.com/meta-ext.git
    branch: 1.10
    commit: 0123456
`)
	code, stdout, stderr := runCLI("dump", project)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "branch: 1.10\n")
	assert.Contains(t, stdout, "commit: 0123456\n")

	code, stdout, stderr = runCLI("dump", "--format", "json", project)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, `"branch": "1.10"`)
	assert.Contains(t, stdout, `"commit": "0123456"`)
}

func TestHistory_NoLedger(t *testing.T) {
	setupProject(t, localProject)
	code, stdout, _ := runCLI("history")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "no checkouts recorded")

	code, _, _ = runCLI("history", "--verify", "deep")
	assert.Equal(t, 2, code)
}

func TestStringList(t *testing.T) {
	var l stringList
	require.NoError(t, l.Set("a, b"))
	require.NoError(t, l.Set("c"))
	require.NoError(t, l.Set(""))
	assert.Equal(t, stringList{"a", "b", "c"}, l)
	assert.Equal(t, "a,b,c", l.String())
}

func TestWatchedFiles(t *testing.T) {
	dir := t.TempDir()
	files, err := watchedFiles(filepath.Join(dir, "kas.yml") + ":" + filepath.Join(dir, "extra.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "kas.yml"),
		filepath.Join(dir, "kas.lock.yml"),
		filepath.Join(dir, "extra.yaml"),
		filepath.Join(dir, "extra.lock.yaml"),
	}, files)
}
