// Package vcs builds the git and mercurial command lines used to clone,
// update, check out and patch project repositories.
package vcs

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Kind names a version control system.
type Kind string

const (
	Git Kind = "git"
	Hg  Kind = "hg"
)

// Spec is the repository state a backend works towards.
type Spec struct {
	URL    string
	Path   string
	Commit string
	Branch string
}

// Backend produces the commands for one repository.
type Backend interface {
	Kind() Kind
	CloneCmd(refDir string) Cmd
	SetRemoteCmd() Cmd
	ContainsRefCmd() Cmd
	FetchCmd() Cmd
	IsDirtyCmd() Cmd
	// CheckoutCmd returns false when neither commit nor branch is configured;
	// the revision then is whatever the clone produced.
	CheckoutCmd(force bool) (Cmd, bool)
	RevisionCmd() Cmd
	ApplyPatchCmd(file string) Cmd
	AddCmd() Cmd
	CommitCmd(msg string) Cmd
}

// New returns the backend for kind. An empty kind means git.
func New(kind Kind, spec Spec) (Backend, error) {
	switch Kind(strings.ToLower(string(kind))) {
	case Git, "":
		return &gitBackend{spec: spec}, nil
	case Hg:
		return &hgBackend{spec: spec}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// RootPath returns the top-level directory of the repository containing dir.
// git is tried first, then mercurial. When dir is not under version control
// the result is dir itself if fallback is set, otherwise "".
func RootPath(ctx context.Context, r Runner, dir string, fallback bool) string {
	for _, c := range []Cmd{
		{Name: "git", Args: []string{"rev-parse", "--show-toplevel"}, Dir: dir},
		{Name: "hg", Args: []string{"root"}, Dir: dir},
	} {
		out, err := r.Run(ctx, c)
		if err != nil {
			continue
		}
		if root := strings.TrimSpace(out); root != "" {
			return filepath.Clean(root)
		}
	}
	if fallback {
		return dir
	}
	return ""
}
