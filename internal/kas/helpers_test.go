package kas

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ManuGH/bake/internal/vcs"
)

// noVCSRunner behaves as if no directory were under version control.
type noVCSRunner struct{}

func (noVCSRunner) Run(_ context.Context, c vcs.Cmd) (string, error) {
	return "", &vcs.ExitError{Cmd: c.String(), Code: 128}
}

// rootsRunner answers root queries from a fixed directory -> root table.
type rootsRunner map[string]string

func (r rootsRunner) Run(_ context.Context, c vcs.Cmd) (string, error) {
	if c.Name == "git" && len(c.Args) > 0 && c.Args[0] == "rev-parse" {
		if root, ok := r[c.Dir]; ok {
			return root + "\n", nil
		}
	}
	return "", &vcs.ExitError{Cmd: c.String(), Code: 128}
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestContext(t *testing.T, opts ...Option) *Context {
	t.Helper()
	opts = append([]Option{WithRunner(noVCSRunner{})}, opts...)
	c, err := NewContext(t.TempDir(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return c
}
