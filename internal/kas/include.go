// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package kas

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	xglog "github.com/ManuGH/bake/internal/log"
)

// IncludeHandler resolves the include graph rooted at one or more top files.
type IncludeHandler struct {
	topFiles    []string
	topRepoPath string
}

// NewIncludeHandler returns a handler for the given absolute top files.
// topRepoPath is the repository root string includes of the top files are
// resolved against.
func NewIncludeHandler(topFiles []string, topRepoPath string) *IncludeHandler {
	return &IncludeHandler{
		topFiles:    append([]string(nil), topFiles...),
		topRepoPath: topRepoPath,
	}
}

// TopFiles returns the top files in merge order.
func (h *IncludeHandler) TopFiles() []string {
	return append([]string(nil), h.topFiles...)
}

// TopRepoPath returns the repository root of the top files.
func (h *IncludeHandler) TopRepoPath() string {
	return h.topRepoPath
}

// Resolution is the outcome of resolving includes with a given set of known
// repository paths.
type Resolution struct {
	// Tree is the merged mapping node.
	Tree *yaml.Node
	// Config is Tree decoded into the typed model.
	Config *ProjectConfig
	// Missing lists repo ids whose includes could not be read yet because the
	// repository path is unknown, in first-seen order.
	Missing []string
	// Files lists every file that was merged, in merge order.
	Files []string
}

type includeWalk struct {
	ctx       context.Context
	repoPaths map[string]string
	stack     map[string]bool
	trees     []*yaml.Node
	files     []string
	missing   []string
	seen      map[string]bool
}

// Resolve loads the include graph. repoPaths maps repo ids to their checkout
// directory; includes of repos not in the map are reported in Missing.
func (h *IncludeHandler) Resolve(ctx context.Context, repoPaths map[string]string) (*Resolution, error) {
	w := &includeWalk{
		ctx:       ctx,
		repoPaths: repoPaths,
		stack:     map[string]bool{},
		seen:      map[string]bool{},
	}
	for _, f := range h.topFiles {
		if err := w.visit(f, h.topRepoPath); err != nil {
			return nil, err
		}
	}

	var tree *yaml.Node
	for _, t := range w.trees {
		tree = mergeNodes(tree, t)
	}
	cfg, err := decodeTree(tree)
	if err != nil {
		return nil, err
	}
	return &Resolution{Tree: tree, Config: cfg, Missing: w.missing, Files: w.files}, nil
}

// visit appends the trees of filename's includes, then filename itself.
func (w *includeWalk) visit(filename, repoPath string) error {
	filename = filepath.Clean(filename)
	if w.stack[filename] {
		return fmt.Errorf("%w: %s", ErrIncludeCycle, filename)
	}
	w.stack[filename] = true
	defer delete(w.stack, filename)

	cfg, tree, err := loadFile(filename)
	if err != nil {
		return err
	}

	for _, inc := range cfg.Header.Includes {
		if inc.Repo == "" {
			if err := w.visit(resolveLocalInclude(w.ctx, filename, repoPath, inc.File), repoPath); err != nil {
				return err
			}
			continue
		}

		dir, ok := w.repoPaths[inc.Repo]
		if !ok {
			if !w.seen[inc.Repo] {
				w.seen[inc.Repo] = true
				w.missing = append(w.missing, inc.Repo)
			}
			continue
		}
		if err := w.visit(filepath.Join(dir, inc.File), dir); err != nil {
			return err
		}
	}

	w.trees = append(w.trees, tree)
	w.files = append(w.files, filename)
	return nil
}

// resolveLocalInclude resolves a plain string include. Paths are relative to
// the repository root; a path relative to the including file is accepted as
// a fallback with a warning.
func resolveLocalInclude(ctx context.Context, filename, repoPath, include string) string {
	if filepath.IsAbs(include) {
		return include
	}
	candidate := filepath.Join(repoPath, include)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	alternate := filepath.Join(filepath.Dir(filename), include)
	if _, err := os.Stat(alternate); err == nil {
		logger := xglog.WithComponentFromContext(ctx, "kas")
		logger.Warn().
			Str(xglog.FieldEvent, "include.file_relative").
			Str(xglog.FieldConfig, filename).
			Str(xglog.FieldPath, include).
			Msg("falling back to file-relative addressing of local include")
		return alternate
	}
	return candidate
}

// SplitConfigSpec splits a colon separated list of project files and makes
// every entry absolute.
func SplitConfigSpec(spec string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(spec, ":") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		abs, err := filepath.Abs(part)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", part, err)
		}
		out = append(out, abs)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no project file given")
	}
	return out, nil
}
