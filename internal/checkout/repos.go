// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package checkout

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/bake/internal/kas"
	"github.com/ManuGH/bake/internal/ledger"
	xglog "github.com/ManuGH/bake/internal/log"
	"github.com/ManuGH/bake/internal/metrics"
	"github.com/ManuGH/bake/internal/telemetry"
	"github.com/ManuGH/bake/internal/vcs"
	"github.com/rs/zerolog"
)

// Recorder receives one ledger entry per repository and run.
type Recorder interface {
	Record(ctx context.Context, e ledger.Entry) error
}

// repoOps carries out the version control work on kas repos.
type repoOps struct {
	rec Recorder
}

func backendFor(r *kas.Repo) (vcs.Backend, error) {
	return vcs.New(vcs.Kind(r.VCS), vcs.Spec{
		URL:    r.URL,
		Path:   r.Path,
		Commit: r.Commit,
		Branch: r.Branch,
	})
}

// run executes c with the base environment of the run. Zero commands are no-ops.
func run(ctx context.Context, kctx *kas.Context, c vcs.Cmd) (string, error) {
	if c.IsZero() {
		return "", nil
	}
	if c.Env == nil {
		c.Env = kctx.EnvCopy()
	}
	return kctx.Runner.Run(ctx, c)
}

func repoLogger(ctx context.Context, r *kas.Repo) zerolog.Logger {
	return xglog.WithComponentFromContext(ctx, "checkout").With().
		Str(xglog.FieldRepo, r.ID).
		Str(xglog.FieldVCS, string(r.VCS)).
		Logger()
}

// fetchAll fetches repos concurrently, at most kctx.Jobs at a time.
func (o *repoOps) fetchAll(ctx context.Context, kctx *kas.Context, repos []*kas.Repo) error {
	jobs := kctx.Jobs
	if jobs < 1 {
		jobs = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for _, r := range repos {
		g.Go(func() error {
			return o.fetch(gctx, kctx, r)
		})
	}
	return g.Wait()
}

// fetch clones r when it is absent and updates it when the configured
// revision is missing or an update was requested. A failing update only warns.
func (o *repoOps) fetch(ctx context.Context, kctx *kas.Context, r *kas.Repo) (err error) {
	if !r.Managed {
		return nil
	}
	be, err := backendFor(r)
	if err != nil {
		return err
	}

	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "repo.fetch",
		trace.WithAttributes(telemetry.RepoAttributes(r.ID, string(r.VCS), r.URL, "")...))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	logger := repoLogger(ctx, r)

	if _, statErr := os.Stat(r.Path); errors.Is(statErr, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(r.Path), 0o755); err != nil {
			return fmt.Errorf("create parent of %s: %w", r.Path, err)
		}
		refDir := ""
		if kctx.RepoRefDir != "" {
			refDir = filepath.Join(kctx.RepoRefDir, r.QualifiedName())
			logger.Debug().Str(xglog.FieldPath, refDir).Msg("looking for repo ref dir")
		}
		_, err := run(ctx, kctx, be.CloneCmd(refDir))
		metrics.IncRepoOp(string(r.VCS), "clone", err)
		if err != nil {
			return fmt.Errorf("clone %s: %w", r.ID, err)
		}
		logger.Info().
			Str(xglog.FieldEvent, "checkout.repo_cloned").
			Str(xglog.FieldURL, r.URL).
			Msg("repository cloned")

		// the remote must match the project file even when cloned from a mirror
		if _, err := run(ctx, kctx, be.SetRemoteCmd()); err != nil {
			return fmt.Errorf("set remote url of %s: %w", r.ID, err)
		}
	}

	// without commit or branch the clone result is kept as is
	if r.Commit == "" && r.Branch == "" {
		return nil
	}

	if !kctx.Update {
		if out, err := run(ctx, kctx, be.ContainsRefCmd()); err == nil {
			logger.Info().
				Str(xglog.FieldEvent, "checkout.repo_present").
				Str(xglog.FieldRevision, firstNonEmpty(r.Commit, r.Branch)).
				Msgf("repository already contains %s as %s", firstNonEmpty(r.Commit, r.Branch), strings.TrimSpace(out))
			return nil
		}
	}

	_, err = run(ctx, kctx, be.FetchCmd())
	metrics.IncRepoOp(string(r.VCS), "fetch", err)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "checkout.repo_update_failed").
			Msg("could not update repository")
		return nil
	}
	logger.Info().Str(xglog.FieldEvent, "checkout.repo_updated").Msg("repository updated")
	return nil
}

// checkout moves r to its configured revision and returns the ledger entry
// describing the result.
func (o *repoOps) checkout(ctx context.Context, kctx *kas.Context, r *kas.Repo) (ledger.Entry, error) {
	entry := ledger.Entry{RunID: kctx.RunID, RepoID: r.ID, URL: r.URL, Path: r.Path}
	if !r.Managed {
		entry.Action = ledger.ActionUnmanaged
		return entry, nil
	}
	be, err := backendFor(r)
	if err != nil {
		return entry, err
	}
	logger := repoLogger(ctx, r)

	if !kctx.ForceCheckout {
		out, err := run(ctx, kctx, be.IsDirtyCmd())
		if err != nil {
			return entry, fmt.Errorf("check %s for local changes: %w", r.ID, err)
		}
		if strings.TrimSpace(out) != "" {
			logger.Warn().
				Str(xglog.FieldEvent, "checkout.repo_dirty").
				Msg("repo is dirty - no checkout")
			entry.Action = ledger.ActionDirty
			entry.Revision = revision(ctx, kctx, be)
			return entry, nil
		}
	}

	if c, ok := be.CheckoutCmd(kctx.ForceCheckout); ok {
		_, err := run(ctx, kctx, c)
		metrics.IncRepoOp(string(r.VCS), "checkout", err)
		if err != nil {
			return entry, fmt.Errorf("checkout %s: %w", r.ID, err)
		}
	}

	entry.Action = ledger.ActionCheckout
	entry.Revision = revision(ctx, kctx, be)
	logger.Info().
		Str(xglog.FieldEvent, "checkout.repo_checked_out").
		Str(xglog.FieldRevision, entry.Revision).
		Str(xglog.FieldPath, r.Path).
		Msg("repository checked out")
	return entry, nil
}

// record writes e to the ledger. The ledger is informational; failures only warn.
func (o *repoOps) record(ctx context.Context, e ledger.Entry) {
	if o.rec == nil {
		return
	}
	if err := o.rec.Record(ctx, e); err != nil {
		logger := xglog.WithComponentFromContext(ctx, "checkout")
		logger.Warn().Err(err).Str(xglog.FieldRepo, e.RepoID).Msg("failed to record checkout")
	}
}

func revision(ctx context.Context, kctx *kas.Context, be vcs.Backend) string {
	out, err := run(ctx, kctx, be.RevisionCmd())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
