package vcs

import "path/filepath"

type hgBackend struct {
	spec Spec
}

func (h *hgBackend) Kind() Kind { return Hg }

func (h *hgBackend) cmd(args ...string) Cmd {
	return Cmd{Name: "hg", Args: args, Dir: h.spec.Path}
}

// CloneCmd ignores refDir; mercurial has no object borrowing equivalent.
func (h *hgBackend) CloneCmd(string) Cmd {
	return Cmd{Name: "hg", Args: []string{"clone", "--quiet", h.spec.URL, h.spec.Path}, Dir: filepath.Dir(h.spec.Path)}
}

// SetRemoteCmd is empty; hg clone records the source as default path.
func (h *hgBackend) SetRemoteCmd() Cmd { return Cmd{} }

func (h *hgBackend) ref() string {
	if h.spec.Commit != "" {
		return h.spec.Commit
	}
	return h.spec.Branch
}

func (h *hgBackend) ContainsRefCmd() Cmd {
	ref := h.ref()
	if ref == "" {
		ref = "tip"
	}
	return h.cmd("log", "-r", ref, "--template", "{node}\n")
}

func (h *hgBackend) FetchCmd() Cmd {
	return h.cmd("pull", "--quiet")
}

func (h *hgBackend) IsDirtyCmd() Cmd {
	return h.cmd("status")
}

func (h *hgBackend) CheckoutCmd(force bool) (Cmd, bool) {
	ref := h.ref()
	if ref == "" {
		return Cmd{}, false
	}
	args := []string{"checkout", "--quiet"}
	if force {
		args = append(args, "--clean")
	}
	args = append(args, ref)
	return h.cmd(args...), true
}

func (h *hgBackend) RevisionCmd() Cmd {
	return h.cmd("identify", "--id", "--debug")
}

func (h *hgBackend) ApplyPatchCmd(file string) Cmd {
	return h.cmd("import", "--no-commit", file)
}

func (h *hgBackend) AddCmd() Cmd {
	return h.cmd("add")
}

func (h *hgBackend) CommitCmd(msg string) Cmd {
	return h.cmd("commit", "--user", PatchAuthor, "-m", msg)
}
