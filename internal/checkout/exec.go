package checkout

import (
	"context"
	"io"

	"github.com/ManuGH/bake/internal/kas"
	xglog "github.com/ManuGH/bake/internal/log"
	"github.com/ManuGH/bake/internal/vcs"
)

// Stdio are the streams handed to a command started by Exec.
type Stdio struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Exec runs argv in the build dir with the environment of kctx, usually
// after SetupEnviron filled it in.
func Exec(ctx context.Context, kctx *kas.Context, argv []string, stdio Stdio) error {
	if len(argv) == 0 {
		return ErrEmptyCommand
	}
	logger := xglog.WithComponentFromContext(ctx, "exec")
	logger.Info().
		Str(xglog.FieldEvent, "exec.started").
		Strs("argv", argv).
		Str(xglog.FieldBuildDir, kctx.BuildDir).
		Msg("running command in build environment")

	_, err := kctx.Runner.Run(ctx, vcs.Cmd{
		Name:   argv[0],
		Args:   argv[1:],
		Dir:    kctx.BuildDir,
		Env:    kctx.EnvCopy(),
		Stdin:  stdio.In,
		Stdout: stdio.Out,
		Stderr: stdio.Err,
	})
	return err
}
