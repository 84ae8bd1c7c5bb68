package kas

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ManuGH/bake/internal/vcs"
)

// DefaultPath is the PATH given to child processes when the host has none.
const DefaultPath = "/usr/sbin:/usr/bin:/sbin:/bin"

// passthroughVars are copied from the host into the initial environment.
var passthroughVars = []string{
	"http_proxy", "https_proxy", "ftp_proxy", "no_proxy", "all_proxy",
	"HTTP_PROXY", "HTTPS_PROXY", "FTP_PROXY", "NO_PROXY", "ALL_PROXY",
	"GIT_PROXY_COMMAND",
	"SSH_AUTH_SOCK", "SSH_AGENT_PID",
	"SHELL", "TERM", "HOME", "USER",
	"LANG", "LC_ALL", "LANGUAGE",
	"SSL_CERT_FILE", "SSL_CERT_DIR", "GIT_SSL_CAINFO",
	"REQUESTS_CA_BUNDLE",
}

// Context is the state shared by the steps of one checkout run.
type Context struct {
	WorkDir    string
	BuildDir   string
	RepoRefDir string

	ForceCheckout bool
	Update        bool

	// Environ is the base environment of every child process.
	Environ map[string]string

	// Runner executes version control and shell commands.
	Runner vcs.Runner

	// Jobs bounds concurrent repository fetches.
	Jobs int

	// RunID identifies this run in logs and the ledger.
	RunID string

	Config *Config

	// MissingRepoNames are the repos whose includes are still unresolved;
	// MissingRepoNamesOld is the set from the previous round.
	MissingRepoNames    []string
	MissingRepoNamesOld []string

	// Repos holds the repos set up so far, by id.
	Repos map[string]*Repo
}

// Option configures a Context.
type Option func(*Context) error

// NewContext creates a Context rooted at workDir.
func NewContext(workDir string, opts ...Option) (*Context, error) {
	wd, err := absPath(workDir)
	if err != nil {
		return nil, fmt.Errorf("work dir: %w", err)
	}
	c := &Context{
		WorkDir:  wd,
		BuildDir: filepath.Join(wd, "build"),
		Environ:  InitialEnviron(os.LookupEnv),
		Runner:   vcs.NewExecRunner(0),
		Jobs:     4,
		RunID:    uuid.NewString(),
		Repos:    map[string]*Repo{},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// WithBuildDir sets the build directory.
func WithBuildDir(dir string) Option {
	return func(c *Context) error {
		if dir == "" {
			return nil
		}
		p, err := absPath(dir)
		if err != nil {
			return fmt.Errorf("build dir: %w", err)
		}
		c.BuildDir = p
		return nil
	}
}

// WithRepoRefDir sets the directory holding reference mirrors.
func WithRepoRefDir(dir string) Option {
	return func(c *Context) error {
		if dir == "" {
			return nil
		}
		p, err := absPath(dir)
		if err != nil {
			return fmt.Errorf("repo ref dir: %w", err)
		}
		c.RepoRefDir = p
		return nil
	}
}

// WithForceCheckout discards local changes on checkout.
func WithForceCheckout(force bool) Option {
	return func(c *Context) error {
		c.ForceCheckout = force
		return nil
	}
}

// WithUpdate fetches repos even when the configured ref is already present.
func WithUpdate(update bool) Option {
	return func(c *Context) error {
		c.Update = update
		return nil
	}
}

// WithEnv sets one variable of the base environment.
func WithEnv(key, value string) Option {
	return func(c *Context) error {
		c.Environ[key] = value
		return nil
	}
}

// WithRunner replaces the command runner.
func WithRunner(r vcs.Runner) Option {
	return func(c *Context) error {
		if r == nil {
			return fmt.Errorf("runner must not be nil")
		}
		c.Runner = r
		return nil
	}
}

// WithJobs bounds concurrent fetches.
func WithJobs(n int) Option {
	return func(c *Context) error {
		if n < 1 {
			return fmt.Errorf("jobs must be >= 1 (got %d)", n)
		}
		c.Jobs = n
		return nil
	}
}

// WithRunID sets the run id instead of a random one.
func WithRunID(id string) Option {
	return func(c *Context) error {
		if id != "" {
			c.RunID = id
		}
		return nil
	}
}

// InitialEnviron builds the base environment from the host variables kas
// passes through. PATH falls back to DefaultPath.
func InitialEnviron(lookup func(string) (string, bool)) map[string]string {
	env := map[string]string{}
	for _, k := range passthroughVars {
		if v, ok := lookup(k); ok {
			env[k] = v
		}
	}
	if v, ok := lookup("PATH"); ok && v != "" {
		env["PATH"] = v
	} else {
		env["PATH"] = DefaultPath
	}
	if _, ok := env["LC_ALL"]; !ok {
		env["LC_ALL"] = "en_US.utf8"
	}
	return env
}

// EnvCopy returns a copy of the base environment.
func (c *Context) EnvCopy() map[string]string {
	out := make(map[string]string, len(c.Environ))
	for k, v := range c.Environ {
		out[k] = v
	}
	return out
}

// absPath makes p absolute and resolves symlinks when p exists.
func absPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}
