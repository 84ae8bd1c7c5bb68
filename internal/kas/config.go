// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package kas

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/bake/internal/vcs"
)

// Defaults applied when neither the environment nor the project sets a value.
const (
	DefaultTarget  = "core-image-minimal"
	DefaultTask    = "build"
	DefaultMachine = "qemux86-64"
	DefaultDistro  = "poky"
)

// Environment variables that override project values.
const (
	EnvTarget  = "KAS_TARGET"
	EnvTask    = "KAS_TASK"
	EnvMachine = "KAS_MACHINE"
	EnvDistro  = "KAS_DISTRO"
)

// Options are the command line overrides of a project.
type Options struct {
	Target []string
	Task   string
	// Update ignores lock files so repos move to the tip of their branch.
	Update bool
}

// Config is a project (one or more top files plus includes) resolved against
// the repositories known so far.
type Config struct {
	files   []string
	handler *IncludeHandler
	opts    Options
	workDir string
	lookup  func(string) (string, bool)

	res *Resolution
}

// NewConfig prepares the project described by spec, a colon separated list
// of files. All files must share one repository root, or all must be outside
// version control.
func NewConfig(ctx context.Context, kctx *Context, spec string, opts Options) (*Config, error) {
	files, err := SplitConfigSpec(spec)
	if err != nil {
		return nil, err
	}

	if !opts.Update {
		files = withLockFiles(files)
	}

	topRepo := vcs.RootPath(ctx, kctx.Runner, filepath.Dir(files[0]), true)
	roots := map[string]struct{}{}
	for _, f := range files {
		roots[vcs.RootPath(ctx, kctx.Runner, filepath.Dir(f), false)] = struct{}{}
	}
	if len(roots) > 1 {
		return nil, ErrMixedRepositories
	}

	return &Config{
		files:   files,
		handler: NewIncludeHandler(files, topRepo),
		opts:    opts,
		workDir: kctx.WorkDir,
		lookup:  os.LookupEnv,
	}, nil
}

// LockFileName returns the lock file that belongs to a project file:
// kas.yml -> kas.lock.yml.
func LockFileName(file string) string {
	ext := filepath.Ext(file)
	return strings.TrimSuffix(file, ext) + ".lock" + ext
}

// withLockFiles inserts each existing lock file right after its project file
// so its overrides win over the project file.
func withLockFiles(files []string) []string {
	explicit := make(map[string]bool, len(files))
	for _, f := range files {
		explicit[f] = true
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f)
		if strings.HasSuffix(strings.TrimSuffix(f, filepath.Ext(f)), ".lock") {
			continue
		}
		lock := LockFileName(f)
		if explicit[lock] {
			continue
		}
		if fi, err := os.Stat(lock); err == nil && !fi.IsDir() {
			out = append(out, lock)
		}
	}
	return out
}

// Files returns the absolute top files.
func (c *Config) Files() []string {
	return append([]string(nil), c.files...)
}

// TopRepoPath returns the repository root of the top files.
func (c *Config) TopRepoPath() string {
	return c.handler.TopRepoPath()
}

// FindMissingRepos re-resolves the includes with the known repo paths, keeps
// the merged result and returns the repos still needed.
func (c *Config) FindMissingRepos(ctx context.Context, repoPaths map[string]string) ([]string, error) {
	res, err := c.handler.Resolve(ctx, repoPaths)
	if err != nil {
		return nil, err
	}
	c.res = res
	return res.Missing, nil
}

// Resolved reports whether FindMissingRepos ran at least once.
func (c *Config) Resolved() bool {
	return c.res != nil
}

func (c *Config) project() *ProjectConfig {
	if c.res == nil {
		return &ProjectConfig{}
	}
	return c.res.Config
}

// Project returns the merged typed config.
func (c *Config) Project() *ProjectConfig {
	return c.project()
}

// Raw returns the merged mapping node (what `bake dump` prints), or nil
// before the first resolve.
func (c *Config) Raw() *yaml.Node {
	if c.res == nil {
		return nil
	}
	return c.res.Tree
}

// MergedFiles lists the files merged into the current result.
func (c *Config) MergedFiles() []string {
	if c.res == nil {
		return nil
	}
	return append([]string(nil), c.res.Files...)
}

// BuildSystem returns the configured build system or "".
func (c *Config) BuildSystem() BuildSystem {
	if bs := c.project().BuildSystem; bs != nil {
		return *bs
	}
	return ""
}

// Targets returns the bitbake targets.
// Precedence: command line > KAS_TARGET > project > core-image-minimal.
func (c *Config) Targets() []string {
	if len(c.opts.Target) > 0 {
		return append([]string(nil), c.opts.Target...)
	}
	if v, ok := c.lookup(EnvTarget); ok {
		if fields := strings.Fields(v); len(fields) > 0 {
			return fields
		}
	}
	if t := c.project().Target; len(t) > 0 {
		return append([]string(nil), t...)
	}
	return []string{DefaultTarget}
}

// Task returns the bitbake task.
// Precedence: command line > KAS_TASK > project > build.
func (c *Config) Task() string {
	if c.opts.Task != "" {
		return c.opts.Task
	}
	if v, ok := c.lookup(EnvTask); ok {
		return v
	}
	if t := c.project().Task; t != nil {
		return *t
	}
	return DefaultTask
}

// Machine returns MACHINE: KAS_MACHINE > project > qemux86-64.
func (c *Config) Machine() string {
	if v, ok := c.lookup(EnvMachine); ok {
		return v
	}
	if m := c.project().Machine; m != nil {
		return *m
	}
	return DefaultMachine
}

// Distro returns DISTRO: KAS_DISTRO > project > poky.
func (c *Config) Distro() string {
	if v, ok := c.lookup(EnvDistro); ok {
		return v
	}
	if d := c.project().Distro; d != nil {
		return *d
	}
	return DefaultDistro
}

// Environment returns the project env section with host values applied.
// A nil value means the variable is passed through only.
func (c *Config) Environment() map[string]*string {
	out := map[string]*string{}
	for k, def := range c.project().Env {
		if v, ok := c.lookup(k); ok {
			v := v
			out[k] = &v
			continue
		}
		out[k] = def
	}
	return out
}

// Multiconfig returns the multiconfig names used by the targets, sorted and
// space separated, as BBMULTICONFIG expects.
func (c *Config) Multiconfig() string {
	set := map[string]struct{}{}
	for _, t := range c.Targets() {
		if strings.HasPrefix(t, "multiconfig:") || strings.HasPrefix(t, "mc:") {
			parts := strings.Split(t, ":")
			if len(parts) > 1 && parts[1] != "" {
				set[parts[1]] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, " ")
}

// LocalConfHeader renders local_conf_header sorted by id.
func (c *Config) LocalConfHeader() string {
	return confHeader(c.project().LocalConfHeader)
}

// BBLayersConfHeader renders bblayers_conf_header sorted by id.
func (c *Config) BBLayersConfHeader() string {
	return confHeader(c.project().BBLayersConfHeader)
}

func confHeader(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "# %s\n%s\n", k, m[k])
	}
	return b.String()
}

// ReposConfig returns the raw repos section.
func (c *Config) ReposConfig() map[string]*RepoConfig {
	return c.project().Repos
}

// RepoIDs returns the defined repo ids, sorted.
func (c *Config) RepoIDs() []string {
	ids := make([]string, 0, len(c.project().Repos))
	for id := range c.project().Repos {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Repo resolves the repo with the given id.
func (c *Config) Repo(id string) (*Repo, error) {
	p := c.project()
	rc, ok := p.Repos[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRepo, id)
	}
	var defaults *RepoDefaults
	if p.Defaults != nil {
		defaults = p.Defaults.Repos
	}
	var override *RepoOverride
	if p.Overrides != nil {
		if o, ok := p.Overrides.Repos[id]; ok {
			override = &o
		}
	}
	return NewRepo(id, rc, defaults, override, c.handler.TopRepoPath(), c.workDir)
}

// Repos resolves every defined repo, sorted by id.
func (c *Config) Repos() ([]*Repo, error) {
	if !c.Resolved() {
		return nil, ErrNotResolved
	}
	ids := c.RepoIDs()
	out := make([]*Repo, 0, len(ids))
	for _, id := range ids {
		r, err := c.Repo(id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
