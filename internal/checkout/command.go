// Package checkout prepares a bitbake build directory from a kas project:
// it fetches and checks out every repository, applies patches, captures the
// build environment and writes bblayers.conf and local.conf.
package checkout

import (
	"context"
	"fmt"

	"github.com/ManuGH/bake/internal/kas"
)

// Command is one step of the checkout pipeline.
type Command interface {
	Name() string
	Execute(ctx context.Context, kctx *kas.Context) error
}

// LoopStep is a step that runs repeatedly inside a Loop.
// It returns false once there is nothing left to do.
type LoopStep interface {
	Name() string
	Step(ctx context.Context, kctx *kas.Context) (more bool, err error)
}

// Loop runs its steps in order, over and over, until one of them reports
// that it is done.
type Loop struct {
	name  string
	steps []LoopStep
}

// NewLoop returns a loop command called name.
func NewLoop(name string, steps ...LoopStep) *Loop {
	return &Loop{name: name, steps: steps}
}

// Add appends a step.
func (l *Loop) Add(s LoopStep) {
	l.steps = append(l.steps, s)
}

func (l *Loop) Name() string { return l.name }

func (l *Loop) Execute(ctx context.Context, kctx *kas.Context) error {
	if len(l.steps) == 0 {
		return nil
	}
	for {
		for _, s := range l.steps {
			if err := ctx.Err(); err != nil {
				return err
			}
			more, err := s.Step(ctx, kctx)
			if err != nil {
				return fmt.Errorf("%s: %w", s.Name(), err)
			}
			if !more {
				return nil
			}
		}
	}
}
