package main

import (
	"context"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"git.home.luguber.info/inful/wasmrun"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := wasmrun.New("wasmrun", wasmrun.Hooks[wasmrun.DefaultBuildArgs, wasmrun.DefaultServeArgs]{})
	app.Description = "Build and serve Go applications compiled to WebAssembly."

	args := os.Args[1:]
	if err := app.Run(ctx, args); err != nil {
		verbose := slices.Contains(args, "-v") || slices.Contains(args, "--verbose")
		cancel()
		wasmrun.HandleError(err, verbose)
	}
}
