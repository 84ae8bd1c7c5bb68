// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ManuGH/bake/internal/config"
	"github.com/ManuGH/bake/internal/ledger"
	"github.com/ManuGH/bake/internal/persistence/sqlite"
)

func runHistory(args []string, stdout, stderr io.Writer) int {
	s, ok := loadSettings(stderr)
	if !ok {
		return 1
	}

	fset := newFlagSet("history", stderr)
	var (
		workDir string
		path    string
		filter  ledger.Filter
		format  string
		verify  string
	)
	fset.StringVar(&workDir, "work-dir", s.WorkDir, "work dir whose ledger is shown (env "+config.EnvWorkDir+")")
	fset.StringVar(&path, "ledger", s.LedgerPath, "checkout ledger database, default <work-dir>/.bake/ledger.sqlite (env "+config.EnvLedgerPath+")")
	fset.StringVar(&filter.RunID, "run", "", "only show this run")
	fset.StringVar(&filter.RepoID, "repo", "", "only show this repository")
	fset.IntVar(&filter.Limit, "limit", 20, "maximum number of entries, 0 for all")
	fset.StringVar(&format, "format", "table", "output format: table or json")
	fset.StringVar(&verify, "verify", "", "check the database first: quick or full")
	if err := fset.Parse(args); err != nil {
		return 2
	}
	if format != "table" && format != "json" {
		fmt.Fprintf(stderr, "Unsupported format: %s (use table or json)\n", format)
		return 2
	}
	if verify != "" && verify != "quick" && verify != "full" {
		fmt.Fprintf(stderr, "Unsupported verify mode: %s (use quick or full)\n", verify)
		return 2
	}

	if path == "" {
		path = s.LedgerFor(workDir)
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stdout, "no checkouts recorded in %s\n", path)
		return 0
	}

	if verify != "" {
		issues, err := sqlite.VerifyIntegrity(path, verify)
		if err != nil {
			fmt.Fprintf(stderr, "Verify failed: %v\n", err)
			return 1
		}
		if len(issues) > 0 {
			fmt.Fprintf(stderr, "Ledger %s is corrupt:\n", path)
			for _, i := range issues {
				fmt.Fprintf(stderr, "  %s\n", i)
			}
			return 1
		}
	}

	store, err := ledger.Open(path)
	if err != nil {
		fmt.Fprintf(stderr, "Ledger error: %v\n", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	ctx, stop := signalContext()
	defer stop()

	entries, err := store.List(ctx, filter)
	if err != nil {
		fmt.Fprintf(stderr, "Ledger error: %v\n", err)
		return 1
	}

	if format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			fmt.Fprintf(stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tRUN\tREPO\tACTION\tREVISION\tPATH")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.At.UTC().Format(time.RFC3339), shortID(e.RunID), e.RepoID, e.Action, shortID(e.Revision), e.Path)
	}
	if err := tw.Flush(); err != nil {
		return 1
	}
	return 0
}

// shortID trims run ids and commit hashes for the table view.
func shortID(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
