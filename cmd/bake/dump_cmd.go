package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/bake/internal/checkout"
	"github.com/ManuGH/bake/internal/kas"
)

// dumpSkip leaves only the steps that resolve includes.
var dumpSkip = []string{"finish_setup_repos", "repos_apply_patches", "setup_environ", "write_bbconfig"}

func runDump(args []string, stdout, stderr io.Writer) int {
	s, ok := loadSettings(stderr)
	if !ok {
		return 1
	}

	fs := newFlagSet("dump", stderr)
	var common commonFlags
	var format string
	var update bool
	common.register(fs, s)
	fs.StringVar(&format, "format", "yaml", "output format: yaml or json")
	fs.BoolVar(&update, "update", false, "fetch every repository and ignore lock files")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	spec, ok := projectArg(fs, stderr)
	if !ok {
		return 2
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "yaml" && format != "yml" && format != "json" {
		fmt.Fprintf(stderr, "Unsupported format: %s (use yaml or json)\n", format)
		return 2
	}
	common.configureLogging(stderr)

	ctx, stop := signalContext()
	defer stop()

	kctx, err := common.newContext(s)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	// includes from other repos are only known after those repos are fetched
	if err := checkout.Run(ctx, kctx, spec, checkout.Options{Update: update, Skip: dumpSkip}); err != nil {
		fmt.Fprintf(stderr, "Resolve failed: %v\n", err)
		return 1
	}

	tree := kctx.Config.Raw()
	if format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(kas.PlainValue(tree)); err != nil {
			fmt.Fprintf(stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}
	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(tree); err != nil {
		fmt.Fprintf(stderr, "Failed to encode YAML: %v\n", err)
		return 1
	}
	_ = enc.Close()
	return 0
}
