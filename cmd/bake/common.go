package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/bake/internal/checkout"
	"github.com/ManuGH/bake/internal/config"
	"github.com/ManuGH/bake/internal/kas"
	xglog "github.com/ManuGH/bake/internal/log"
	"github.com/ManuGH/bake/internal/vcs"
)

// stringList collects a repeatable, comma separated flag.
type stringList []string

func (l *stringList) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(*l, ",")
}

func (l *stringList) Set(v string) error {
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			*l = append(*l, p)
		}
	}
	return nil
}

// commonFlags are shared by every command that sets up a work dir.
type commonFlags struct {
	workDir    string
	buildDir   string
	repoRefDir string
	logLevel   string
	logConsole bool
	jobs       int
}

func (c *commonFlags) register(fs *flag.FlagSet, s config.Settings) {
	fs.StringVar(&c.workDir, "work-dir", s.WorkDir, "directory repositories are checked out into (env "+config.EnvWorkDir+")")
	fs.StringVar(&c.buildDir, "build-dir", s.BuildDir, "bitbake build directory, default <work-dir>/build (env "+config.EnvBuildDir+")")
	fs.StringVar(&c.repoRefDir, "repo-ref-dir", s.RepoRefDir, "directory of reference clones (env "+config.EnvRepoRefDir+")")
	fs.StringVar(&c.logLevel, "log-level", s.LogLevel, "log level: debug, info, warn, error")
	fs.BoolVar(&c.logConsole, "log-console", s.LogConsole, "human readable log output")
	fs.IntVar(&c.jobs, "jobs", s.Jobs, "number of concurrent repository fetches")
}

func (c *commonFlags) configureLogging(stderr io.Writer) {
	xglog.Configure(xglog.Config{
		Level:   c.logLevel,
		Output:  stderr,
		Service: "bake",
		Version: checkout.BuildVersion,
		Console: c.logConsole,
	})
}

// newContext builds a fresh kas context; every checkout run gets its own run id.
func (c *commonFlags) newContext(s config.Settings, extra ...kas.Option) (*kas.Context, error) {
	opts := []kas.Option{
		kas.WithBuildDir(c.buildDir),
		kas.WithRepoRefDir(c.repoRefDir),
		kas.WithRunner(vcs.NewExecRunner(s.KillGrace)),
		kas.WithJobs(c.jobs),
	}
	return kas.NewContext(c.workDir, append(opts, extra...)...)
}

// loadSettings configures default logging, then reads the environment.
func loadSettings(stderr io.Writer) (config.Settings, bool) {
	xglog.Configure(xglog.Config{Output: stderr, Service: "bake", Version: checkout.BuildVersion})
	s, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return s, false
	}
	return s, true
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("bake "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// projectArg returns the single project spec argument.
func projectArg(fs *flag.FlagSet, stderr io.Writer) (string, bool) {
	if fs.NArg() != 1 {
		fmt.Fprintf(stderr, "Error: %s expects exactly one project file argument (colon separated for multiple files)\n", fs.Name())
		return "", false
	}
	return fs.Arg(0), true
}
