package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	xglog "github.com/ManuGH/bake/internal/log"
	"github.com/ManuGH/bake/internal/procgroup"
)

// Cmd describes one child process invocation.
type Cmd struct {
	Name string
	Args []string
	Dir  string
	// Env replaces the process environment when non-nil.
	Env map[string]string

	// Stdin, Stdout and Stderr attach the child to the caller's streams.
	// With Stdout set, Run returns an empty string.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// IsZero reports whether c names no program.
func (c Cmd) IsZero() bool {
	return c.Name == ""
}

// String renders the command line for logs and errors.
func (c Cmd) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner executes commands. Implementations must honour ctx cancellation.
type Runner interface {
	Run(ctx context.Context, c Cmd) (string, error)
}

// ExitError is returned when a command ran but exited non-zero.
type ExitError struct {
	Cmd    string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s: exit status %d", e.Cmd, e.Code)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Cmd, e.Code, msg)
}

// ExecRunner runs commands as real child processes in their own process group.
type ExecRunner struct {
	// Grace is the time between SIGTERM and SIGKILL on cancellation.
	Grace time.Duration
}

// NewExecRunner returns an ExecRunner with the given kill grace period.
func NewExecRunner(grace time.Duration) *ExecRunner {
	if grace <= 0 {
		grace = 5 * time.Second
	}
	return &ExecRunner{Grace: grace}
}

// Run starts c, waits for it and returns its stdout.
func (r *ExecRunner) Run(ctx context.Context, c Cmd) (string, error) {
	if c.IsZero() {
		return "", ErrEmptyCommand
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// #nosec G204 -- commands are assembled from project files chosen by the operator
	cmd := exec.Command(c.Name, c.Args...)
	cmd.Dir = c.Dir
	if c.Env != nil {
		cmd.Env = EnvList(c.Env)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdin = c.Stdin
	cmd.Stdout = &stdout
	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
	}
	cmd.Stderr = &stderr
	if c.Stderr != nil {
		cmd.Stderr = io.MultiWriter(c.Stderr, &tailWriter{buf: &stderr, max: stderrTail})
	}
	procgroup.Set(cmd)

	logger := xglog.WithComponentFromContext(ctx, "vcs")
	logger.Debug().Str("cmd", c.String()).Str(xglog.FieldPath, c.Dir).Msg("run command")

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w", c.Name, err)
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	var err error
	select {
	case err = <-waitCh:
	case <-ctx.Done():
		_ = procgroup.Terminate(cmd, waitCh, r.grace())
		return stdout.String(), ctx.Err()
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), &ExitError{Cmd: c.String(), Code: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return stdout.String(), fmt.Errorf("%s: %w", c.String(), err)
	}
	return stdout.String(), nil
}

// stderrTail bounds the stderr kept for ExitError when it is also streamed.
const stderrTail = 8 << 10

// tailWriter keeps the last max bytes written to it.
type tailWriter struct {
	buf *bytes.Buffer
	max int
}

func (w *tailWriter) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) > w.max {
		p = p[len(p)-w.max:]
	}
	if over := w.buf.Len() + len(p) - w.max; over > 0 {
		rest := append([]byte(nil), w.buf.Bytes()[over:]...)
		w.buf.Reset()
		w.buf.Write(rest)
	}
	w.buf.Write(p)
	return n, nil
}

func (r *ExecRunner) grace() time.Duration {
	if r.Grace <= 0 {
		return 5 * time.Second
	}
	return r.Grace
}

// EnvList converts an environment map into sorted KEY=VALUE pairs.
func EnvList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// EnvMap parses KEY=VALUE pairs (as returned by os.Environ or `env`).
// Lines without '=' are ignored.
func EnvMap(pairs []string) map[string]string {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// HostEnv returns the current process environment as a map.
func HostEnv() map[string]string {
	return EnvMap(os.Environ())
}
