package checkout

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ManuGH/bake/internal/kas"
	xglog "github.com/ManuGH/bake/internal/log"
	"github.com/ManuGH/bake/internal/vcs"
)

// Init scripts that set up a bitbake build directory.
const (
	OEInitScript   = "oe-init-build-env"
	IsarInitScript = "isar-init-build-env"
)

// captureEnvScript sources the init script ($1) for the build dir ($2) and
// prints the resulting environment.
const captureEnvScript = `set -e
source "$1" "$2" > /dev/null
env`

// passthroughEnvVars are always added to the bitbake passthrough list.
var passthroughEnvVars = []string{"SSTATE_DIR", "DL_DIR", "TMPDIR"}

// SetupEnviron sources the build system's init script and merges the
// resulting environment, plus the project env section, into the context.
type SetupEnviron struct{}

func (SetupEnviron) Name() string { return "setup_environ" }

func (SetupEnviron) Execute(ctx context.Context, kctx *kas.Context) error {
	env, err := BuildEnviron(ctx, kctx)
	if err != nil {
		return err
	}
	for k, v := range env {
		kctx.Environ[k] = v
	}
	return nil
}

// BuildEnviron returns the environment of a shell that sourced the init script.
func BuildEnviron(ctx context.Context, kctx *kas.Context) (map[string]string, error) {
	repo, script, err := findInitScript(kctx)
	if err != nil {
		return nil, err
	}
	logger := xglog.WithComponentFromContext(ctx, "checkout")
	logger.Debug().
		Str(xglog.FieldRepo, repo.ID).
		Str(xglog.FieldPath, script).
		Str(xglog.FieldBuildDir, kctx.BuildDir).
		Msg("sourcing init script")

	out, err := kctx.Runner.Run(ctx, vcs.Cmd{
		Name: "bash",
		Args: []string{"-c", captureEnvScript, "bake-env", script, kctx.BuildDir},
		Dir:  repo.Path,
		Env:  map[string]string{"PATH": kas.DefaultPath},
	})
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", script, err)
	}

	env := parseEnv(out)
	confEnv := kctx.Config.Environment()
	keys := make([]string, 0, len(confEnv))
	for k := range confEnv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// nil entries are passed through by bitbake but set nothing here
	for _, k := range keys {
		if v := confEnv[k]; v != nil {
			env[k] = *v
		}
	}

	vars := strings.Join(append(append([]string(nil), passthroughEnvVars...), keys...), " ")
	for _, name := range []string{"BB_ENV_PASSTHROUGH_ADDITIONS", "BB_ENV_EXTRAWHITE"} {
		if cur, ok := env[name]; ok {
			env[name] = strings.TrimSpace(cur + " " + vars)
		}
	}
	return env, nil
}

// findInitScript locates the single init script among the project repos.
func findInitScript(kctx *kas.Context) (*kas.Repo, string, error) {
	var scripts []string
	switch kctx.Config.BuildSystem() {
	case kas.OpenEmbedded:
		scripts = []string{OEInitScript}
	case kas.Isar:
		scripts = []string{IsarInitScript}
	default:
		scripts = []string{OEInitScript, IsarInitScript}
	}

	repos, err := kctx.Config.Repos()
	if err != nil {
		return nil, "", err
	}

	var (
		found     *kas.Repo
		foundPath string
	)
	for _, r := range repos {
		for _, s := range scripts {
			p := filepath.Join(r.Path, s)
			if _, err := os.Stat(p); err != nil {
				continue
			}
			if found != nil {
				return nil, "", fmt.Errorf("%w (%s vs. %s); please add the build_system key to the project file", ErrMultipleInitScripts, foundPath, p)
			}
			found, foundPath = r, p
		}
	}
	if found == nil {
		return nil, "", ErrInitScriptNotFound
	}
	return found, foundPath, nil
}

// parseEnv reads the KEY=VALUE lines printed by env.
func parseEnv(out string) map[string]string {
	env := map[string]string{}
	for _, line := range strings.Split(out, "\n") {
		k, v, ok := strings.Cut(line, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}
