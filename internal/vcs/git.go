// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package vcs

import (
	"os"
	"path/filepath"
	"strings"
)

// PatchAuthor is the identity recorded on commits created for applied patches.
const PatchAuthor = "bake <bake@localhost>"

type gitBackend struct {
	spec Spec
}

func (g *gitBackend) Kind() Kind { return Git }

func (g *gitBackend) cmd(args ...string) Cmd {
	return Cmd{Name: "git", Args: args, Dir: g.spec.Path}
}

// CloneCmd borrows objects from refDir when a mirror exists there.
func (g *gitBackend) CloneCmd(refDir string) Cmd {
	args := []string{"clone", "-q"}
	if refDir != "" {
		if fi, err := os.Stat(refDir); err == nil && fi.IsDir() {
			args = append(args, "--reference", refDir)
		}
	}
	args = append(args, g.spec.URL, g.spec.Path)
	return Cmd{Name: "git", Args: args, Dir: filepath.Dir(g.spec.Path)}
}

func (g *gitBackend) SetRemoteCmd() Cmd {
	return g.cmd("remote", "set-url", "origin", g.spec.URL)
}

// remoteRef maps a configured branch onto the ref fetched from origin.
func remoteRef(branch string) string {
	switch {
	case strings.HasPrefix(branch, "refs/heads/"):
		return "refs/remotes/origin/" + strings.TrimPrefix(branch, "refs/heads/")
	case strings.HasPrefix(branch, "refs/"):
		return "refs/remotes/origin/" + strings.TrimPrefix(branch, "refs/")
	default:
		return "refs/remotes/origin/" + branch
	}
}

// localBranch is the branch name created for a tracked branch.
func localBranch(branch string) string {
	if strings.HasPrefix(branch, "refs/heads/") {
		return strings.TrimPrefix(branch, "refs/heads/")
	}
	if strings.HasPrefix(branch, "refs/") {
		return strings.ReplaceAll(strings.TrimPrefix(branch, "refs/"), "/", "-")
	}
	return branch
}

func (g *gitBackend) desiredRef() string {
	if g.spec.Commit != "" {
		return g.spec.Commit
	}
	if g.spec.Branch != "" {
		return remoteRef(g.spec.Branch)
	}
	return "HEAD"
}

func (g *gitBackend) ContainsRefCmd() Cmd {
	return g.cmd("cat-file", "-t", g.desiredRef())
}

func (g *gitBackend) FetchCmd() Cmd {
	args := []string{"fetch", "-q", "origin"}
	if b := g.spec.Branch; strings.HasPrefix(b, "refs/") && !strings.HasPrefix(b, "refs/heads/") {
		args = append(args, "+"+b+":"+remoteRef(b))
	}
	return g.cmd(args...)
}

func (g *gitBackend) IsDirtyCmd() Cmd {
	return g.cmd("status", "-s")
}

func (g *gitBackend) CheckoutCmd(force bool) (Cmd, bool) {
	args := []string{"checkout", "-q"}
	if force {
		args = append(args, "--force")
	}
	switch {
	case g.spec.Commit != "" && g.spec.Branch != "":
		args = append(args, "-B", localBranch(g.spec.Branch), g.spec.Commit)
	case g.spec.Commit != "":
		args = append(args, g.spec.Commit)
	case g.spec.Branch != "":
		args = append(args, "-B", localBranch(g.spec.Branch), remoteRef(g.spec.Branch))
	default:
		return Cmd{}, false
	}
	return g.cmd(args...), true
}

func (g *gitBackend) RevisionCmd() Cmd {
	return g.cmd("rev-parse", "HEAD")
}

func (g *gitBackend) ApplyPatchCmd(file string) Cmd {
	return g.cmd("apply", "--whitespace=nowarn", file)
}

func (g *gitBackend) AddCmd() Cmd {
	return g.cmd("add", "-A")
}

// CommitCmd sets the committer through -c so it works without a user git config.
func (g *gitBackend) CommitCmd(msg string) Cmd {
	return g.cmd(
		"-c", "user.name=bake",
		"-c", "user.email=bake@localhost",
		"commit", "-q", "-a", "--no-verify",
		"--author", PatchAuthor,
		"-m", msg,
	)
}
