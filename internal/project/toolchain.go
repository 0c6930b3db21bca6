package project

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/wasmrun/internal/foundation/errors"
	"git.home.luguber.info/inful/wasmrun/internal/process"
)

// GoBinary returns the go command belonging to GoRoot, falling back to PATH.
func (c *Context) GoBinary() string {
	if c.GoRoot != "" {
		bin := filepath.Join(c.GoRoot, "bin", "go")
		if _, err := os.Stat(bin); err == nil {
			return bin
		}
	}
	return "go"
}

// Go starts a go subcommand in the directory of unit. build receives the command
// after its Dir and stdio are set and fills in Args (after "go"). The returned guard
// kills the child when closed; callers normally defer Close and use WaitSuccess.
func (c *Context) Go(ctx context.Context, unit *Unit, build func(*exec.Cmd)) (*process.Guard, error) {
	if unit == nil {
		unit = c.Frontend
	}
	if unit == nil {
		return nil, ferrors.ConfigError("no unit to run the go command in").Build()
	}
	cmd := exec.CommandContext(ctx, c.GoBinary())
	cmd.Dir = unit.Dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	cmd.Env = os.Environ()
	if build != nil {
		build(cmd)
	}
	name := "go"
	if len(cmd.Args) > 1 {
		name = "go " + cmd.Args[1]
	}
	return process.Start(name, cmd)
}
