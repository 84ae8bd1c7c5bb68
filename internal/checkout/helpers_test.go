package checkout

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ManuGH/bake/internal/kas"
	"github.com/ManuGH/bake/internal/ledger"
	"github.com/ManuGH/bake/internal/vcs"
)

// fakeRunner records commands and answers them through handle.
// Repository root queries always fail, so project files count as being
// outside version control.
type fakeRunner struct {
	mu     sync.Mutex
	calls  []vcs.Cmd
	handle func(c vcs.Cmd) (string, error)
}

func (f *fakeRunner) Run(_ context.Context, c vcs.Cmd) (string, error) {
	if isRootQuery(c) {
		return "", &vcs.ExitError{Cmd: c.String(), Code: 128}
	}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	handle := f.handle
	f.mu.Unlock()
	if handle == nil {
		return "", nil
	}
	return handle(c)
}

func (f *fakeRunner) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.String())
	}
	return out
}

func isRootQuery(c vcs.Cmd) bool {
	return (c.Name == "git" && len(c.Args) > 1 && c.Args[0] == "rev-parse" && c.Args[1] == "--show-toplevel") ||
		(c.Name == "hg" && len(c.Args) == 1 && c.Args[0] == "root")
}

func hasCommand(cmds []string, prefix string) bool {
	for _, c := range cmds {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// memRecorder keeps ledger entries in memory.
type memRecorder struct {
	mu      sync.Mutex
	entries []ledger.Entry
}

func (m *memRecorder) Record(_ context.Context, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// newProject writes content as kas.yml into a fresh project dir and returns
// a context whose config is resolved without fetching anything.
func newProject(t *testing.T, content string, r vcs.Runner, opts ...kas.Option) (*kas.Context, string) {
	t.Helper()
	projectDir := t.TempDir()
	top := writeFile(t, filepath.Join(projectDir, "kas.yml"), content)

	opts = append([]kas.Option{kas.WithRunner(r)}, opts...)
	kctx, err := kas.NewContext(t.TempDir(), opts...)
	require.NoError(t, err)
	require.NoError(t, Prepare(context.Background(), kctx, top, Options{}))
	_, err = kctx.Config.FindMissingRepos(context.Background(), nil)
	require.NoError(t, err)
	return kctx, projectDir
}
