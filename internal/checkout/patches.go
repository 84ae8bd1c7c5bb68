package checkout

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ManuGH/bake/internal/kas"
	"github.com/ManuGH/bake/internal/ledger"
	xglog "github.com/ManuGH/bake/internal/log"
	"github.com/ManuGH/bake/internal/metrics"
)

// ReposApplyPatches applies the patches of every repo and commits each one.
type ReposApplyPatches struct {
	ops *repoOps
}

func (*ReposApplyPatches) Name() string { return "repos_apply_patches" }

func (s *ReposApplyPatches) Execute(ctx context.Context, kctx *kas.Context) error {
	ids := make([]string, 0, len(kctx.Repos))
	for id := range kctx.Repos {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := s.ops.applyPatches(ctx, kctx, kctx.Repos[id]); err != nil {
			return err
		}
	}
	return nil
}

type patchFile struct {
	id   string
	path string
}

func (o *repoOps) applyPatches(ctx context.Context, kctx *kas.Context, r *kas.Repo) error {
	if len(r.Patches) == 0 {
		return nil
	}
	logger := repoLogger(ctx, r)
	if !r.Managed {
		logger.Warn().
			Str(xglog.FieldEvent, "checkout.patches_skipped").
			Msg("repo has no url - no patches applied")
		return nil
	}
	be, err := backendFor(r)
	if err != nil {
		return err
	}

	out, err := run(ctx, kctx, be.IsDirtyCmd())
	if err != nil {
		return fmt.Errorf("check %s for local changes: %w", r.ID, err)
	}
	if strings.TrimSpace(out) != "" {
		logger.Warn().
			Str(xglog.FieldEvent, "checkout.patches_skipped").
			Msg("repo is dirty - no patches applied")
		return nil
	}

	var files []patchFile
	for _, p := range r.Patches {
		paths, err := patchFiles(kctx, p)
		if err != nil {
			return fmt.Errorf("repo %s: %w", r.ID, err)
		}
		for _, path := range paths {
			files = append(files, patchFile{id: p.ID, path: path})
		}
	}

	for _, f := range files {
		if _, err := run(ctx, kctx, be.ApplyPatchCmd(f.path)); err != nil {
			metrics.IncRepoOp(string(r.VCS), "patch", err)
			return fmt.Errorf("could not apply patch %s to repo %s: %w", f.path, r.ID, err)
		}
		if _, err := run(ctx, kctx, be.AddCmd()); err != nil {
			return fmt.Errorf("could not add patched files of %s in repo %s: %w", f.path, r.ID, err)
		}
		msg := fmt.Sprintf("bake: apply %s\n\npatch %s (%s)", filepath.Base(f.path), f.id, f.path)
		if _, err := run(ctx, kctx, be.CommitCmd(msg)); err != nil {
			return fmt.Errorf("could not commit patch %s in repo %s: %w", f.path, r.ID, err)
		}
		metrics.IncRepoOp(string(r.VCS), "patch", nil)
		metrics.IncPatchApplied(r.ID)
		logger.Info().
			Str(xglog.FieldEvent, "checkout.patch_applied").
			Str(xglog.FieldPatch, f.id).
			Str(xglog.FieldPath, f.path).
			Msg("patch applied")
	}

	o.record(ctx, ledger.Entry{
		RunID:    kctx.RunID,
		RepoID:   r.ID,
		URL:      r.URL,
		Path:     r.Path,
		Revision: revision(ctx, kctx, be),
		Action:   ledger.ActionPatched,
	})
	return nil
}

// patchFiles expands one patch entry into the files to apply. The path is
// relative to the patch repo and names a file or a quilt directory with a
// series file.
func patchFiles(kctx *kas.Context, p kas.Patch) ([]string, error) {
	other, ok := kctx.Repos[p.Repo]
	if !ok {
		return nil, fmt.Errorf("%w %q of patch %s", ErrPatchRepoUnknown, p.Repo, p.ID)
	}
	path := filepath.Join(other.Path, p.Path)

	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPatchNotFound, path)
	}
	if fi.Mode().IsRegular() {
		return []string{path}, nil
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrPatchNotFound, path)
	}

	series := filepath.Join(path, "series")
	// #nosec G304 -- the series file lives in a repo of the project
	f, err := os.Open(series)
	if err != nil {
		return nil, fmt.Errorf("%w: %s has no series file", ErrPatchNotFound, path)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		// "name [-pN] [# comment]"
		entry, _, _ := strings.Cut(line, " #")
		fields := strings.Fields(entry)
		if len(fields) == 0 {
			continue
		}
		p := filepath.Join(path, fields[0])
		if fi, err := os.Stat(p); err != nil || !fi.Mode().IsRegular() {
			return nil, fmt.Errorf("%w: %s", ErrPatchNotFound, p)
		}
		out = append(out, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", series, err)
	}
	return out, nil
}
