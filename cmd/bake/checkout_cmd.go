// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ManuGH/bake/internal/checkout"
	"github.com/ManuGH/bake/internal/config"
	"github.com/ManuGH/bake/internal/kas"
	"github.com/ManuGH/bake/internal/ledger"
	xglog "github.com/ManuGH/bake/internal/log"
	"github.com/ManuGH/bake/internal/metrics"
	"github.com/ManuGH/bake/internal/telemetry"
	"github.com/ManuGH/bake/internal/watch"
)

type checkoutFlags struct {
	common      commonFlags
	force       bool
	update      bool
	target      stringList
	task        string
	skip        stringList
	watch       bool
	metricsFile string
	ledgerPath  string
	noLedger    bool
}

func runCheckout(args []string, _, stderr io.Writer) int {
	s, ok := loadSettings(stderr)
	if !ok {
		return 1
	}

	fs := newFlagSet("checkout", stderr)
	var f checkoutFlags
	f.common.register(fs, s)
	fs.BoolVar(&f.force, "force-checkout", false, "discard local changes in managed repositories")
	fs.BoolVar(&f.update, "update", false, "fetch every repository and ignore lock files")
	fs.Var(&f.target, "target", "bitbake target, repeatable (env "+kas.EnvTarget+")")
	fs.StringVar(&f.task, "task", "", "bitbake task (env "+kas.EnvTask+")")
	fs.Var(&f.skip, "skip", "step to skip, repeatable: "+strings.Join(checkout.StepNames(), ", "))
	fs.BoolVar(&f.watch, "watch", false, "run again whenever a project file changes")
	fs.StringVar(&f.metricsFile, "metrics-file", s.MetricsFile, "write Prometheus metrics to this file after each run (env "+config.EnvMetricsFile+")")
	fs.StringVar(&f.ledgerPath, "ledger", s.LedgerPath, "checkout ledger database, default <work-dir>/.bake/ledger.sqlite (env "+config.EnvLedgerPath+")")
	fs.BoolVar(&f.noLedger, "no-ledger", false, "do not record checked out revisions")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	spec, ok := projectArg(fs, stderr)
	if !ok {
		return 2
	}
	f.common.configureLogging(stderr)
	logger := xglog.WithComponent("cli")

	ctx, stop := signalContext()
	defer stop()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        s.Telemetry.Enabled(),
		ServiceName:    "bake",
		ServiceVersion: checkout.BuildVersion,
		ExporterType:   s.Telemetry.Exporter,
		Endpoint:       s.Telemetry.Endpoint,
		SamplingRate:   s.Telemetry.SamplingRate,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Telemetry error: %v\n", err)
		return 1
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	opts := checkout.Options{
		Target: f.target,
		Task:   f.task,
		Update: f.update,
		Skip:   f.skip,
	}
	if f.ledgerPath == "" {
		f.ledgerPath = s.LedgerFor(f.common.workDir)
	}
	if !f.noLedger {
		store, err := ledger.Open(f.ledgerPath)
		if err != nil {
			fmt.Fprintf(stderr, "Ledger error: %v\n", err)
			return 1
		}
		defer func() { _ = store.Close() }()
		opts.Recorder = store
	}

	once := func(ctx context.Context) error {
		kctx, err := f.common.newContext(s, kas.WithForceCheckout(f.force))
		if err != nil {
			return err
		}
		err = checkout.Run(ctx, kctx, spec, opts)
		if werr := metrics.WriteTextfile(f.metricsFile); werr != nil {
			logger.Warn().Err(werr).Str(xglog.FieldPath, f.metricsFile).Msg("could not write metrics textfile")
		}
		return err
	}

	if !f.watch {
		if err := once(ctx); err != nil {
			fmt.Fprintf(stderr, "Checkout failed: %v\n", err)
			return 1
		}
		return 0
	}

	files, err := watchedFiles(spec)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	w, err := watch.New(files, s.WatchDebounce)
	if err != nil {
		fmt.Fprintf(stderr, "Watch error: %v\n", err)
		return 1
	}
	if err := w.Run(ctx, once); err != nil {
		fmt.Fprintf(stderr, "Watch error: %v\n", err)
		return 1
	}
	return 0
}

// watchedFiles lists the top files of spec and their lock files.
func watchedFiles(spec string) ([]string, error) {
	files, err := kas.SplitConfigSpec(spec)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, 2*len(files))
	for _, f := range files {
		out = append(out, f, kas.LockFileName(f))
	}
	return out, nil
}
