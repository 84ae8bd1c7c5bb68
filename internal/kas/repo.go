// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package kas

import (
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
)

// disabledLayerValues switch off a layer that an earlier file enabled.
var disabledLayerValues = map[string]struct{}{
	"disabled": {}, "excluded": {}, "n": {}, "no": {}, "0": {}, "false": {},
}

// Patch is one resolved patch entry.
type Patch struct {
	ID   string
	Repo string // id of the repo the path is relative to
	Path string
}

// Repo is a repository definition with defaults, overrides and paths applied.
type Repo struct {
	ID      string
	Name    string
	URL     string
	VCS     RepoVCS
	Commit  string
	Branch  string
	Path    string
	Patches []Patch

	// Managed is false for repos without url; bake never runs version control
	// commands on them.
	Managed bool

	layers []string
}

// NewRepo resolves the definition of repo id.
// cfg may be nil (the repository of the project file). fallbackPath is used
// as the path of repos without url and path; workDir anchors relative paths.
func NewRepo(id string, cfg *RepoConfig, defaults *RepoDefaults, override *RepoOverride, fallbackPath, workDir string) (*Repo, error) {
	if cfg == nil {
		cfg = &RepoConfig{}
	}
	if defaults == nil {
		defaults = &RepoDefaults{}
	}

	r := &Repo{
		ID:   id,
		Name: cfg.Name,
		URL:  cfg.URL,
		VCS:  cfg.Type,
	}
	if r.Name == "" {
		r.Name = id
	}
	if r.VCS == "" {
		r.VCS = VCSGit
	}

	// layers
	if len(cfg.Layers) == 0 {
		r.layers = []string{"."}
	} else {
		for layer, val := range cfg.Layers {
			if val != nil {
				if _, off := disabledLayerValues[strings.ToLower(*val)]; off {
					continue
				}
			}
			r.layers = append(r.layers, layer)
		}
	}

	// patches
	defaultPatchRepo := ""
	if defaults.Patches != nil {
		defaultPatchRepo = defaults.Patches.Repo
	}
	ids := make([]string, 0, len(cfg.Patches))
	for pid := range cfg.Patches {
		ids = append(ids, pid)
	}
	sort.Strings(ids)
	for _, pid := range ids {
		p := cfg.Patches[pid]
		if p == nil {
			continue
		}
		repo := p.Repo
		if repo == "" {
			repo = defaultPatchRepo
		}
		if repo == "" {
			return nil, fmt.Errorf("repo %s patch %s: %w", id, pid, ErrPatchRepoMissing)
		}
		r.Patches = append(r.Patches, Patch{ID: pid, Repo: repo, Path: p.Path})
	}

	// revision: override > repo > defaults
	r.Commit = firstNonEmpty(overrideCommit(override), cfg.Commit, defaults.Commit)
	r.Branch = firstNonEmpty(cfg.Branch, defaults.Branch)
	if r.Commit == "" && r.Branch == "" {
		if refspec := firstNonEmpty(cfg.Refspec, defaults.Refspec); refspec != "" {
			if isCommitID(refspec) {
				r.Commit = refspec
			} else {
				r.Branch = refspec
			}
		}
	}

	// path
	switch {
	case r.URL == "":
		r.Path = cfg.Path
		if r.Path == "" {
			r.Path = fallbackPath
		} else if !filepath.IsAbs(r.Path) {
			r.Path = filepath.Join(workDir, r.Path)
		}
		r.URL = r.Path
		r.Managed = false
	case cfg.Path == "":
		r.Path = filepath.Join(workDir, r.Name)
		r.Managed = true
	case filepath.IsAbs(cfg.Path):
		r.Path = filepath.Clean(cfg.Path)
		r.Managed = true
	default:
		r.Path = filepath.Join(workDir, cfg.Path)
		r.Managed = true
	}

	return r, nil
}

// Layers returns the absolute layer directories, sorted.
func (r *Repo) Layers() []string {
	out := make([]string, 0, len(r.layers))
	for _, l := range r.layers {
		out = append(out, filepath.Join(r.Path, l))
	}
	sort.Strings(out)
	return out
}

// QualifiedName derives a filesystem friendly name from the url, used to
// find a mirror below the reference directory.
func (r *Repo) QualifiedName() string {
	host, path := r.URL, ""
	if u, err := url.Parse(r.URL); err == nil && u.Host != "" {
		host, path = u.Host, u.Path
		if u.User != nil {
			host = u.User.Username() + "@" + host
		}
	}
	return strings.NewReplacer("@", ".", ":", ".", "/", ".", "*", ".").Replace(host + path)
}

func overrideCommit(o *RepoOverride) string {
	if o == nil {
		return ""
	}
	return o.Commit
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// isCommitID reports whether s looks like a full git or hg commit hash.
func isCommitID(s string) bool {
	if len(s) != 40 && len(s) != 64 {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return false
		}
	}
	return true
}
