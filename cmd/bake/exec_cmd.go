package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ManuGH/bake/internal/checkout"
	"github.com/ManuGH/bake/internal/kas"
	"github.com/ManuGH/bake/internal/vcs"
)

// runExec checks out the project, sets up the build environment and runs a
// command in the build dir.
func runExec(args []string, stdout, stderr io.Writer) int {
	s, ok := loadSettings(stderr)
	if !ok {
		return 1
	}

	fs := newFlagSet("exec", stderr)
	var common commonFlags
	var force, update bool
	var skip stringList
	common.register(fs, s)
	fs.BoolVar(&force, "force-checkout", false, "discard local changes in managed repositories")
	fs.BoolVar(&update, "update", false, "fetch every repository and ignore lock files")
	fs.Var(&skip, "skip", "checkout step to skip, repeatable")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) < 2 {
		fmt.Fprintln(stderr, "Error: exec expects a project file and a command")
		fmt.Fprintln(stderr, "  bake exec kas.yml -- bitbake core-image-minimal")
		return 2
	}
	spec, argv := rest[0], rest[1:]
	if argv[0] == "--" {
		argv = argv[1:]
	}
	if len(argv) == 0 {
		fmt.Fprintln(stderr, "Error: no command given after --")
		return 2
	}
	common.configureLogging(stderr)

	ctx, stop := signalContext()
	defer stop()

	kctx, err := common.newContext(s, kas.WithForceCheckout(force))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := checkout.Run(ctx, kctx, spec, checkout.Options{Update: update, Skip: skip}); err != nil {
		fmt.Fprintf(stderr, "Checkout failed: %v\n", err)
		return 1
	}
	if err := checkout.Exec(ctx, kctx, argv, checkout.Stdio{In: os.Stdin, Out: stdout, Err: stderr}); err != nil {
		fmt.Fprintf(stderr, "Command failed: %v\n", err)
		return childExitCode(err)
	}
	return 0
}

// childExitCode passes the exit status of the command through; failures
// to start it, and deaths by signal, map to 1.
func childExitCode(err error) int {
	var exitErr *vcs.ExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	return 1
}
