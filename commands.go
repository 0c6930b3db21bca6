package wasmrun

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/wasmrun/internal/hooks"
)

// cli is the kong grammar. Registered commands are added as dynamic commands.
type cli[B hooks.BuildArgs, S hooks.ServeArgs[B]] struct {
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build     buildCmd[B] `cmd:"" help:"Build the frontend with the release profile"`
	Serve     serveCmd[S] `cmd:"" help:"Build the frontend, serve it and rebuild on change"`
	RunServer serveCmd[S] `cmd:"" name:"run-server" hidden:"" help:"Run the application server"`
}

type buildCmd[B any] struct {
	Args B `embed:""`
}

type serveCmd[S any] struct {
	Args S `embed:""`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *cli[B, S]) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}
