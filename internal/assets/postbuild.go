package assets

import (
	"context"
	"log/slog"
	"os/exec"

	ferrors "git.home.luguber.info/inful/wasmrun/internal/foundation/errors"
	"git.home.luguber.info/inful/wasmrun/internal/logfields"
	"git.home.luguber.info/inful/wasmrun/internal/observability"
	"git.home.luguber.info/inful/wasmrun/internal/pipeline"
)

// Options configure the default post-build step.
type Options struct {
	Index      string
	StaticDir  string
	LookupDirs []string
	SassBinary string

	RunSass  func(ctx context.Context, cmd *exec.Cmd) error
	LookPath func(string) (string, error)
}

// PostBuild writes app.js and app_bg.wasm, the entry document and stylesheets.
func PostBuild(ctx context.Context, opts Options, a pipeline.Artifacts) error {
	if err := a.WriteOutputs(); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "could not write build outputs").
			WithContext("path", a.OutputDir).Build()
	}
	if a.Unit == nil {
		return nil
	}

	src, err := WriteEntry(a.Unit.Dir, opts.Index, opts.StaticDir, a.OutputDir)
	if err != nil {
		return err
	}

	n, err := BuildStyles(ctx, StyleOptions{
		UnitDir:    a.Unit.Dir,
		LookupDirs: opts.LookupDirs,
		SassBinary: opts.SassBinary,
		Compressed: a.Profile != pipeline.Dev,
		Run:        opts.RunSass,
		LookPath:   opts.LookPath,
	}, a.OutputDir)
	if err != nil {
		return err
	}
	observability.DebugContext(ctx, "Post-build complete", logfields.Path(a.OutputDir),
		slog.String("entry", string(src)), slog.Int("stylesheets", n))
	return nil
}
