// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package checkout

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/ManuGH/bake/internal/kas"
	xglog "github.com/ManuGH/bake/internal/log"
)

// SetupDir creates the work and build directories.
type SetupDir struct{}

func (SetupDir) Name() string { return "setup_dir" }

func (SetupDir) Execute(_ context.Context, kctx *kas.Context) error {
	for _, dir := range []string{kctx.WorkDir, kctx.BuildDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// InitSetupRepos resolves the includes reachable without fetching anything.
type InitSetupRepos struct{}

func (InitSetupRepos) Name() string { return "init_setup_repos" }

func (InitSetupRepos) Execute(ctx context.Context, kctx *kas.Context) error {
	missing, err := kctx.Config.FindMissingRepos(ctx, repoPaths(kctx.Repos))
	if err != nil {
		return err
	}
	kctx.MissingRepoNames = missing
	kctx.MissingRepoNamesOld = nil
	return nil
}

// SetupReposStep fetches the repos that includes still need and resolves
// the includes again. It is done once nothing is missing.
type SetupReposStep struct {
	ops *repoOps
}

func (*SetupReposStep) Name() string { return "setup_repos_step" }

func (s *SetupReposStep) Step(ctx context.Context, kctx *kas.Context) (bool, error) {
	if len(kctx.MissingRepoNames) == 0 {
		return false, nil
	}
	if slices.Equal(kctx.MissingRepoNames, kctx.MissingRepoNamesOld) {
		return false, fmt.Errorf("%w: %s", ErrUnresolvableIncludes, strings.Join(kctx.MissingRepoNames, ", "))
	}

	logger := xglog.WithComponentFromContext(ctx, "checkout")
	logger.Debug().Strs("missing", kctx.MissingRepoNames).Msg("missing repos for complete config")

	repos, err := kctx.Config.Repos()
	if err != nil {
		return false, err
	}
	byID := make(map[string]*kas.Repo, len(repos))
	for _, r := range repos {
		byID[r.ID] = r
	}

	// repos defined by a later include wait for the next round
	var missing []*kas.Repo
	for _, id := range kctx.MissingRepoNames {
		if r, ok := byID[id]; ok {
			missing = append(missing, r)
		}
	}

	if err := s.ops.fetchAll(ctx, kctx, missing); err != nil {
		return false, err
	}
	for _, r := range missing {
		if _, err := s.ops.checkout(ctx, kctx, r); err != nil {
			return false, err
		}
	}

	for id, r := range byID {
		kctx.Repos[id] = r
	}
	kctx.MissingRepoNamesOld = kctx.MissingRepoNames
	kctx.MissingRepoNames, err = kctx.Config.FindMissingRepos(ctx, repoPaths(kctx.Repos))
	if err != nil {
		return false, err
	}
	return true, nil
}

// FinishSetupRepos fetches and checks out every repo of the complete config
// and records the result in the ledger.
type FinishSetupRepos struct {
	ops *repoOps
}

func (*FinishSetupRepos) Name() string { return "finish_setup_repos" }

func (s *FinishSetupRepos) Execute(ctx context.Context, kctx *kas.Context) error {
	repos, err := kctx.Config.Repos()
	if err != nil {
		return err
	}
	if err := s.ops.fetchAll(ctx, kctx, repos); err != nil {
		return err
	}

	kctx.Repos = make(map[string]*kas.Repo, len(repos))
	for _, r := range repos {
		entry, err := s.ops.checkout(ctx, kctx, r)
		if err != nil {
			return err
		}
		s.ops.record(ctx, entry)
		kctx.Repos[r.ID] = r
	}

	logger := xglog.WithComponentFromContext(ctx, "checkout")
	logger.Debug().
		Strs("files", kctx.Config.MergedFiles()).
		Int("repos", len(repos)).
		Msg("configuration complete")
	return nil
}

func repoPaths(repos map[string]*kas.Repo) map[string]string {
	out := make(map[string]string, len(repos))
	for id, r := range repos {
		out[id] = r.Path
	}
	return out
}
