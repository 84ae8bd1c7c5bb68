// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// bake checks out the repositories of a kas project and prepares a bitbake
// build directory.
//
// Usage:
//
//	bake checkout [flags] kas.yml[:extra.yml...]
//	bake dump [flags] kas.yml
//	bake validate kas.yml
//	bake exec [flags] kas.yml -- bitbake core-image-minimal
//	bake history [flags]
//	bake version
//
// Exit codes:
//   - 0: success
//   - 1: the command failed
//   - 2: usage error
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ManuGH/bake/internal/checkout"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}

	switch args[0] {
	case "checkout":
		return runCheckout(args[1:], stdout, stderr)
	case "dump":
		return runDump(args[1:], stdout, stderr)
	case "validate":
		return runValidate(args[1:], stdout, stderr)
	case "exec":
		return runExec(args[1:], stdout, stderr)
	case "history":
		return runHistory(args[1:], stdout, stderr)
	case "version", "--version", "-version":
		fmt.Fprintln(stdout, checkout.Version().String())
		return 0
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  bake checkout [flags] kas.yml[:extra.yml...]")
	fmt.Fprintln(w, "  bake dump [--format=yaml|json] kas.yml")
	fmt.Fprintln(w, "  bake validate kas.yml")
	fmt.Fprintln(w, "  bake exec [flags] kas.yml -- command [args...]")
	fmt.Fprintln(w, "  bake history [--run id] [--repo id] [--limit n] [--verify=quick|full]")
	fmt.Fprintln(w, "  bake version")
}
