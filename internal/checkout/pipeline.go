// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package checkout

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/bake/internal/kas"
	xglog "github.com/ManuGH/bake/internal/log"
	"github.com/ManuGH/bake/internal/metrics"
	"github.com/ManuGH/bake/internal/telemetry"
)

const tracerName = "github.com/ManuGH/bake/internal/checkout"

// Options control a checkout run.
type Options struct {
	// Target and Task override the project and KAS_TARGET/KAS_TASK.
	Target []string
	Task   string
	// Update fetches every repo and ignores lock files.
	Update bool
	// Skip names steps that are not executed.
	Skip []string
	// Recorder receives the checked out revisions; nil disables recording.
	Recorder Recorder
}

// Steps returns the checkout commands in execution order.
func Steps(rec Recorder) []Command {
	ops := &repoOps{rec: rec}
	return []Command{
		SetupDir{},
		InitSetupRepos{},
		NewLoop("repo_setup_loop", &SetupReposStep{ops: ops}),
		&FinishSetupRepos{ops: ops},
		&ReposApplyPatches{ops: ops},
		SetupEnviron{},
		WriteBBConfig{},
	}
}

// StepNames lists the names accepted by Options.Skip.
func StepNames() []string {
	steps := Steps(nil)
	names := make([]string, 0, len(steps))
	for _, s := range steps {
		names = append(names, s.Name())
	}
	return names
}

// Prepare loads the project described by spec into kctx without running any step.
func Prepare(ctx context.Context, kctx *kas.Context, spec string, opts Options) error {
	if opts.Update {
		kctx.Update = true
	}
	cfg, err := kas.NewConfig(ctx, kctx, spec, kas.Options{
		Target: opts.Target,
		Task:   opts.Task,
		Update: kctx.Update,
	})
	if err != nil {
		return err
	}
	kctx.Config = cfg
	return nil
}

// Run executes the checkout pipeline for the project spec, a colon
// separated list of project files.
func Run(ctx context.Context, kctx *kas.Context, spec string, opts Options) (err error) {
	skip := make(map[string]bool, len(opts.Skip))
	valid := StepNames()
	for _, name := range opts.Skip {
		if !slices.Contains(valid, name) {
			return fmt.Errorf("%w: %s (valid: %v)", ErrUnknownStep, name, valid)
		}
		skip[name] = true
	}

	if err := Prepare(ctx, kctx, spec, opts); err != nil {
		metrics.ObserveRun(err)
		return err
	}

	ctx = xglog.ContextWithRunID(ctx, kctx.RunID)
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "checkout",
		trace.WithAttributes(telemetry.RunAttributes(kctx.RunID, spec, kctx.Config.Targets())...))
	logger := xglog.WithComponentFromContext(ctx, "checkout")
	start := time.Now()
	defer func() {
		metrics.ObserveRun(err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	logger.Info().
		Str(xglog.FieldEvent, "checkout.started").
		Str(xglog.FieldConfig, spec).
		Str(xglog.FieldWorkDir, kctx.WorkDir).
		Str(xglog.FieldBuildDir, kctx.BuildDir).
		Msg("checkout started")

	for _, cmd := range Steps(opts.Recorder) {
		if skip[cmd.Name()] {
			logger.Debug().Str(xglog.FieldStep, cmd.Name()).Msgf("skipping %s", cmd.Name())
			continue
		}
		if err := runStep(ctx, kctx, cmd); err != nil {
			logger.Error().
				Err(err).
				Str(xglog.FieldEvent, "checkout.failed").
				Str(xglog.FieldStep, cmd.Name()).
				Msg("checkout failed")
			return err
		}
	}

	logger.Info().
		Str(xglog.FieldEvent, "checkout.finished").
		Int64(xglog.FieldDuration, time.Since(start).Milliseconds()).
		Int("repos", len(kctx.Repos)).
		Msg("checkout finished")
	return nil
}

func runStep(ctx context.Context, kctx *kas.Context, cmd Command) error {
	name := cmd.Name()
	ctx = xglog.ContextWithStep(ctx, name)
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "checkout."+name,
		trace.WithAttributes(telemetry.StepAttributes(name)...))
	defer span.End()

	logger := xglog.WithComponentFromContext(ctx, "checkout")
	logger.Info().Str(xglog.FieldEvent, "checkout.step").Msgf("execute %s", name)

	start := time.Now()
	err := cmd.Execute(ctx, kctx)
	metrics.ObserveStep(name, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(telemetry.ErrorAttributes(err, name)...)
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
