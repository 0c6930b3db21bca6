package pipeline

import (
	"context"
	"os/exec"

	"git.home.luguber.info/inful/wasmrun/internal/process"
)

// Runner runs a prepared external command to completion.
type Runner interface {
	Run(ctx context.Context, cmd *exec.Cmd) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, cmd *exec.Cmd) error

func (f RunnerFunc) Run(ctx context.Context, cmd *exec.Cmd) error { return f(ctx, cmd) }

// ExecRunner starts the command under a process.Guard, so the child is killed
// when ctx is canceled or the caller returns early.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, cmd *exec.Cmd) error {
	name := cmd.Path
	if len(cmd.Args) > 0 {
		name = cmd.Args[0]
	}
	g, err := process.Start(name, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = g.Close() }()

	select {
	case <-g.Done():
		return g.Wait()
	case <-ctx.Done():
		_ = g.Close()
		return ctx.Err()
	}
}
