package kas

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported range of the project file format version (header.version).
const (
	MinFormatVersion = 1
	MaxFormatVersion = 14
)

// ProjectConfig is one kas project file, or the merge of a file and its includes.
type ProjectConfig struct {
	// Header carries the format version and the includes of the file.
	Header Header `yaml:"header"`

	// BuildSystem restricts the init script search to oe-init-build-env or
	// isar-init-build-env.
	BuildSystem *BuildSystem `yaml:"build_system,omitempty"`

	// Machine is written as MACHINE into local.conf. KAS_MACHINE overrides it;
	// the default is qemux86-64.
	Machine *string `yaml:"machine,omitempty"`

	// Distro is written as DISTRO into local.conf. KAS_DISTRO overrides it;
	// the default is poky.
	Distro *string `yaml:"distro,omitempty"`

	// Target is the bitbake target list. KAS_TARGET overrides it; the default
	// is core-image-minimal.
	Target Targets `yaml:"target,omitempty"`

	// Env holds variables exported to bitbake. A nil value only adds the name to
	// the passthrough list; a string is the default used when the host does not
	// set the variable.
	Env map[string]*string `yaml:"env,omitempty"`

	// Task is the bitbake task. KAS_TASK overrides it; the default is build.
	Task *string `yaml:"task,omitempty"`

	// Repos maps repo ids to their definition. A nil entry is the repository
	// holding the project file.
	Repos map[string]*RepoConfig `yaml:"repos,omitempty"`

	Defaults  *Defaults  `yaml:"defaults,omitempty"`
	Overrides *Overrides `yaml:"overrides,omitempty"`

	LocalConfHeader    map[string]string `yaml:"local_conf_header,omitempty"`
	BBLayersConfHeader map[string]string `yaml:"bblayers_conf_header,omitempty"`
}

// Header is the mandatory first section of every project file.
type Header struct {
	Version  FormatVersion   `yaml:"version"`
	Includes []HeaderInclude `yaml:"includes,omitempty"`
}

// FormatVersion is header.version. It is written as an integer; the legacy
// string form "0.10" is accepted as version 1.
type FormatVersion struct {
	raw string
}

// NewFormatVersion returns the version n.
func NewFormatVersion(n int) FormatVersion {
	return FormatVersion{raw: strconv.Itoa(n)}
}

func (v FormatVersion) String() string { return v.raw }

// Int returns the numeric version.
func (v FormatVersion) Int() (int, error) {
	raw := strings.TrimSpace(v.raw)
	if raw == "0.10" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrUnsupportedVersion, v.raw)
	}
	return n, nil
}

func (v *FormatVersion) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: header version must be a scalar", n.Line)
	}
	v.raw = n.Value
	return nil
}

func (v FormatVersion) MarshalYAML() (any, error) {
	if n, err := strconv.Atoi(v.raw); err == nil {
		return n, nil
	}
	return v.raw, nil
}

// HeaderInclude is one entry of header.includes. A plain string is a path
// relative to the repository of the including file and leaves Repo empty.
type HeaderInclude struct {
	Repo string
	File string
}

func (i *HeaderInclude) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*i = HeaderInclude{File: n.Value}
		return nil
	case yaml.MappingNode:
		var out HeaderInclude
		for k := 0; k+1 < len(n.Content); k += 2 {
			key, val := n.Content[k], n.Content[k+1]
			switch key.Value {
			case "repo":
				out.Repo = val.Value
			case "file":
				out.File = val.Value
			default:
				return fmt.Errorf("%w: line %d: field %s not found in type kas.HeaderInclude", ErrUnknownConfigField, key.Line, key.Value)
			}
		}
		if out.Repo == "" || out.File == "" {
			return fmt.Errorf("line %d: include needs both repo and file", n.Line)
		}
		*i = out
		return nil
	default:
		return fmt.Errorf("line %d: include must be a string or a mapping", n.Line)
	}
}

func (i HeaderInclude) MarshalYAML() (any, error) {
	if i.Repo == "" {
		return i.File, nil
	}
	return map[string]string{"repo": i.Repo, "file": i.File}, nil
}

// Targets accepts either a list or a whitespace separated string.
type Targets []string

func (t *Targets) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*t = strings.Fields(n.Value)
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := n.Decode(&list); err != nil {
			return err
		}
		*t = list
		return nil
	default:
		return fmt.Errorf("line %d: target must be a string or a list", n.Line)
	}
}

// BuildSystem selects the bitbake based build system.
type BuildSystem string

const (
	// OpenEmbedded, the build framework for embedded Linux.
	OpenEmbedded BuildSystem = "openembedded"
	// Isar, Integration System for Automated Root filesystem generation.
	Isar BuildSystem = "isar"
)

// ParseBuildSystem accepts openembedded, oe and isar in any case.
func ParseBuildSystem(s string) (BuildSystem, error) {
	switch strings.ToLower(s) {
	case "openembedded", "oe":
		return OpenEmbedded, nil
	case "isar":
		return Isar, nil
	default:
		return "", fmt.Errorf("invalid build_system, expected 'openembedded', 'oe' or 'isar'")
	}
}

func (b *BuildSystem) UnmarshalYAML(n *yaml.Node) error {
	v, err := ParseBuildSystem(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*b = v
	return nil
}

// RepoVCS is the version control system of a repository.
type RepoVCS string

const (
	VCSGit RepoVCS = "git"
	VCSHg  RepoVCS = "hg"
)

// ParseRepoVCS accepts git and hg in any case.
func ParseRepoVCS(s string) (RepoVCS, error) {
	switch strings.ToLower(s) {
	case "git":
		return VCSGit, nil
	case "hg":
		return VCSHg, nil
	default:
		return "", fmt.Errorf("invalid repo type, expected 'git' or 'hg'")
	}
}

func (r *RepoVCS) UnmarshalYAML(n *yaml.Node) error {
	v, err := ParseRepoVCS(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*r = v
	return nil
}

// RepoConfig is the definition of one entry under repos.
type RepoConfig struct {
	// Name is the checkout directory name; the repo id is used when empty.
	Name string `yaml:"name,omitempty"`
	// URL of the repository. Without it no version control operation runs.
	URL string `yaml:"url,omitempty"`
	// Type is the version control system, git by default.
	Type RepoVCS `yaml:"type,omitempty"`
	// Commit to check out.
	Commit string `yaml:"commit,omitempty"`
	// Branch to track; its head is checked out when no commit is set.
	Branch string `yaml:"branch,omitempty"`
	// Refspec is the legacy spelling of branch/commit.
	Refspec string `yaml:"refspec,omitempty"`
	// Path overrides the checkout directory. Relative paths start at the work dir.
	Path string `yaml:"path,omitempty"`
	// Layers lists the layer directories added to bblayers.conf. Empty means
	// the repository root. A value of disabled, excluded, n, no, 0 or false
	// removes a layer enabled by an earlier file.
	Layers map[string]*string `yaml:"layers,omitempty"`
	// Patches are applied in the order of their sorted ids.
	Patches map[string]*RepoPatch `yaml:"patches,omitempty"`
}

// RepoPatch is one patch file or quilt series, relative to the root of Repo.
type RepoPatch struct {
	Repo string `yaml:"repo,omitempty"`
	Path string `yaml:"path"`
}

// Defaults hold values applied to every repo that does not set them.
type Defaults struct {
	Repos *RepoDefaults `yaml:"repos,omitempty"`
}

// RepoDefaults are the defaults.repos section.
type RepoDefaults struct {
	Commit  string         `yaml:"commit,omitempty"`
	Branch  string         `yaml:"branch,omitempty"`
	Refspec string         `yaml:"refspec,omitempty"`
	Patches *PatchDefaults `yaml:"patches,omitempty"`
}

// PatchDefaults are the defaults.repos.patches section.
type PatchDefaults struct {
	Repo string `yaml:"repo,omitempty"`
}

// Overrides pin values from outside the regular repo definitions, typically
// written by a lock file.
type Overrides struct {
	Repos map[string]RepoOverride `yaml:"repos,omitempty"`
}

// RepoOverride is one overrides.repos entry.
type RepoOverride struct {
	Commit string `yaml:"commit,omitempty"`
}
