package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	ferrors "git.home.luguber.info/inful/wasmrun/internal/foundation/errors"
	"git.home.luguber.info/inful/wasmrun/internal/logfields"
	"git.home.luguber.info/inful/wasmrun/internal/metrics"
	"git.home.luguber.info/inful/wasmrun/internal/observability"
	"git.home.luguber.info/inful/wasmrun/internal/process"
	"git.home.luguber.info/inful/wasmrun/internal/project"
)

// Stage names used for logging and metrics.
const (
	StagePreBuild  = "pre_build"
	StageCompile   = "compile"
	StageBind      = "bind"
	StageOutputDir = "output_dir"
	StageOptimize  = "optimize"
	StagePostBuild = "post_build"
)

// Artifacts are handed to the post-build hook.
type Artifacts struct {
	BuildID   string
	Profile   Profile
	Unit      *project.Unit
	OutputDir string
	Script    []byte // generated app.js content
	WasmPath  string // final (optimized when applicable) binary
}

// WriteOutputs writes app.js and app_bg.wasm into the output directory.
func (a Artifacts) WriteOutputs() error {
	if err := os.WriteFile(filepath.Join(a.OutputDir, ScriptName), a.Script, 0o644); err != nil {
		return err
	}
	return copyFile(a.WasmPath, filepath.Join(a.OutputDir, WasmName))
}

// PreBuildFunc may mutate the prepared compiler command.
type PreBuildFunc func(ctx context.Context, p Profile, cmd *exec.Cmd) error

// PostBuildFunc receives the generated artifacts once the output directory exists.
type PostBuildFunc func(ctx context.Context, a Artifacts) error

// Pipeline builds the frontend unit of a project.
type Pipeline struct {
	Project   *project.Context
	Compiler  Compiler
	Runner    Runner    // default ExecRunner
	Binder    Binder    // default RuntimeBinder for the compiler's toolchain
	Optimizer Optimizer // nil skips optimization
	Recorder  metrics.Recorder

	PreBuild  PreBuildFunc
	PostBuild PostBuildFunc // nil writes app.js and app_bg.wasm only
}

// Build runs the pipeline with the effective profile derived from requested and profiling.
func (p *Pipeline) Build(ctx context.Context, requested Profile, profiling bool) (Artifacts, error) {
	if p.Project == nil || p.Project.Frontend == nil {
		return Artifacts{}, ferrors.InternalError("pipeline has no frontend unit").Build()
	}
	profile := Effective(requested, profiling)
	unit := p.Project.Frontend
	rec := p.recorder()

	buildID := uuid.NewString()
	ctx = observability.WithBuildID(ctx, buildID)
	ctx = observability.WithProfile(ctx, profile.String())
	ctx = observability.WithUnit(ctx, unit.Name)

	start := time.Now()
	a, err := p.run(ctx, profile, unit)
	a.BuildID = buildID
	dur := time.Since(start)
	rec.ObserveBuildDuration(profile.String(), dur)

	result := metrics.ResultOf(err)
	if errors.Is(err, context.Canceled) {
		result = metrics.ResultCanceled
	}
	rec.IncBuildOutcome(profile.String(), result)

	if err != nil {
		return a, err
	}
	observability.InfoContext(ctx, "Build finished", logfields.DurationMS(float64(dur.Milliseconds())), logfields.Path(a.OutputDir))
	return a, nil
}

func (p *Pipeline) run(ctx context.Context, profile Profile, unit *project.Unit) (Artifacts, error) {
	a := Artifacts{Profile: profile, Unit: unit, OutputDir: p.Project.OutputDir}
	binPath := BinaryPath(p.Project, unit, profile)

	cmd := p.Compiler.Command(p.Project, unit, profile, binPath)
	if err := p.stage(ctx, StagePreBuild, func(ctx context.Context) error {
		if p.PreBuild == nil {
			return nil
		}
		if err := p.PreBuild(ctx, profile, cmd); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryBuild, "pre-build hook failed").Build()
		}
		return nil
	}); err != nil {
		return a, err
	}

	if err := p.stage(ctx, StageCompile, func(ctx context.Context) error {
		return p.compile(ctx, unit, cmd, binPath)
	}); err != nil {
		return a, err
	}

	var binding Binding
	if err := p.stage(ctx, StageBind, func(ctx context.Context) error {
		var err error
		binding, err = p.binder().Bind(ctx, binPath)
		if err != nil {
			var be *BindingError
			if !errors.As(err, &be) {
				err = &BindingError{Path: binPath, Err: err}
			}
			return ferrors.BindingError("failed to generate JavaScript binding").WithCause(err).Build()
		}
		return nil
	}); err != nil {
		return a, err
	}
	a.Script = binding.Script
	a.WasmPath = binding.WasmPath

	if err := p.stage(ctx, StageOutputDir, func(context.Context) error {
		return recreateDir(p.Project, a.OutputDir)
	}); err != nil {
		return a, err
	}

	if profile.Optimized() && p.Optimizer != nil {
		if err := p.stage(ctx, StageOptimize, func(ctx context.Context) error {
			out, err := p.Optimizer.Optimize(ctx, profile, a.WasmPath)
			if err != nil {
				var oe *OptimizationError
				if !errors.As(err, &oe) {
					err = &OptimizationError{Attempts: 1, Err: err}
				}
				return ferrors.OptimizeError("failed to optimize WASM binary").WithCause(err).Build()
			}
			a.WasmPath = out
			return nil
		}); err != nil {
			return a, err
		}
	} else {
		p.recorder().IncStageResult(StageOptimize, metrics.ResultSkipped)
	}

	if fi, err := os.Stat(a.WasmPath); err == nil {
		observability.DebugContext(ctx, "WASM binary ready", logfields.Path(a.WasmPath), logfields.Size(humanize.Bytes(uint64(fi.Size()))))
	}

	err := p.stage(ctx, StagePostBuild, func(ctx context.Context) error {
		post := p.PostBuild
		if post == nil {
			return a.WriteOutputs()
		}
		return post(ctx, a)
	})
	if _, classified := ferrors.AsClassified(err); err != nil && !classified {
		err = ferrors.WrapError(err, ferrors.CategoryBuild, "post-build hook failed").Build()
	}
	return a, err
}

func (p *Pipeline) compile(ctx context.Context, unit *project.Unit, cmd *exec.Cmd, binPath string) error {
	if err := os.MkdirAll(filepath.Dir(binPath), 0o755); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to create target directory").
			WithContext("path", filepath.Dir(binPath)).Build()
	}
	observability.DebugContext(ctx, "Running compiler", logfields.Command(fmt.Sprint(cmd.Args)))

	err := p.runner().Run(ctx, cmd)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	ce := &CompileError{ExitCode: -1, Err: err}
	if status, ok := process.StatusOf(err); ok {
		ce.ExitCode = status.Code
		ce.Signal = status.Signal
		if status.Signal != "" {
			ce.ExitCode = -1
		}
	}
	return ferrors.CompileError(fmt.Sprintf("failed to compile %s", unit.Name)).
		WithCause(ce).
		WithContext("unit", unit.ModulePath).
		Build()
}

// stage runs fn and records its duration and result.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx = observability.WithStage(ctx, name)
	if err := ctx.Err(); err != nil {
		p.recorder().IncStageResult(name, metrics.ResultCanceled)
		return err
	}
	t0 := time.Now()
	err := fn(ctx)
	d := time.Since(t0)

	rec := p.recorder()
	rec.ObserveStageDuration(name, d)
	result := metrics.ResultOf(err)
	if errors.Is(err, context.Canceled) {
		result = metrics.ResultCanceled
	}
	rec.IncStageResult(name, result)

	if err != nil {
		observability.DebugContext(ctx, "Stage failed", logfields.Error(err))
		return err
	}
	observability.DebugContext(ctx, "Stage complete", logfields.DurationMS(float64(d.Microseconds())/1000))
	return nil
}

func (p *Pipeline) recorder() metrics.Recorder {
	if p.Recorder == nil {
		return metrics.NoopRecorder{}
	}
	return p.Recorder
}

func (p *Pipeline) runner() Runner {
	if p.Runner == nil {
		return ExecRunner{}
	}
	return p.Runner
}

func (p *Pipeline) binder() Binder {
	if p.Binder == nil {
		return RuntimeBinder{Toolchain: p.Compiler.Toolchain, GoRoot: p.Project.GoRoot}
	}
	return p.Binder
}

// recreateDir removes dir and creates it empty. It refuses to remove the workspace root
// or any of its ancestors.
func recreateDir(pc *project.Context, dir string) error {
	if dir == "" {
		return ferrors.ConfigError("output directory is empty").Build()
	}
	if rel, err := filepath.Rel(dir, pc.Root); err == nil && !startsWithDotDot(rel) {
		return ferrors.ConfigError("output directory must not contain the workspace root").
			WithContext("path", dir).Build()
	}
	if err := os.RemoveAll(dir); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to remove output directory").
			WithContext("path", dir).Build()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to create output directory").
			WithContext("path", dir).Build()
	}
	slog.Debug("Recreated output directory", logfields.Path(dir))
	return nil
}

func startsWithDotDot(rel string) bool {
	return rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator)
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		return err
	}
	return dstFile.Close()
}
