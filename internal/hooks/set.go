package hooks

import (
	"context"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/wasmrun/internal/assets"
	"git.home.luguber.info/inful/wasmrun/internal/config"
	ferrors "git.home.luguber.info/inful/wasmrun/internal/foundation/errors"
	"git.home.luguber.info/inful/wasmrun/internal/pipeline"
	"git.home.luguber.info/inful/wasmrun/internal/project"
	"git.home.luguber.info/inful/wasmrun/internal/server"
	"git.home.luguber.info/inful/wasmrun/internal/watcher"
)

// RunServerCommand is the hidden command the external-backend mode re-executes.
const RunServerCommand = "run-server"

// MissingBackendUnit is the message reported when no backend can be started.
const MissingBackendUnit = "missing backend unit"

// Set holds one function per extension point. A nil field means "use the default".
type Set[B BuildArgs, S ServeArgs[B]] struct {
	PreBuild  func(ctx context.Context, bc *BuildContext[B], cmd *exec.Cmd) error
	PostBuild func(ctx context.Context, bc *BuildContext[B], a pipeline.Artifacts) error

	Serve         func(sc *ServeContext[S], mux *http.ServeMux) error
	Watch         func(sc *ServeContext[S], w *watcher.Watcher) error
	FrontendWatch func(sc *ServeContext[S], w *watcher.Watcher) error
	BackendWatch  func(sc *ServeContext[S], w *watcher.Watcher) error

	BackendCommand func(ctx context.Context, sc *ServeContext[S]) (*exec.Cmd, error)
	// RunServer has no default. When set, the backend is this executable running it.
	RunServer func(ctx context.Context, sc *ServeContext[S]) error

	OtherCommand func(ctx context.Context, kctx *kong.Context, pc *project.Context) error

	DefaultBuildPath func(pc *project.Context) string
	BackendUnit      func(pc *project.Context) string
}

// Resolve returns a copy of s where every nil hook except RunServer is its default.
func (s Set[B, S]) Resolve(cfg *config.Config) Set[B, S] {
	if cfg == nil {
		cfg = config.Default()
	}
	if s.PreBuild == nil {
		s.PreBuild = func(context.Context, *BuildContext[B], *exec.Cmd) error { return nil }
	}
	if s.PostBuild == nil {
		s.PostBuild = DefaultPostBuild[B]
	}
	if s.Serve == nil {
		s.Serve = DefaultServe[S]
	}
	if s.Watch == nil {
		s.Watch = DefaultWatch[S]
	}
	if s.FrontendWatch == nil {
		s.FrontendWatch = DefaultFrontendWatch[S]
	}
	if s.BackendWatch == nil {
		s.BackendWatch = DefaultBackendWatch[S]
	}
	if s.BackendCommand == nil {
		runServer := s.RunServer != nil
		s.BackendCommand = func(ctx context.Context, sc *ServeContext[S]) (*exec.Cmd, error) {
			if runServer {
				return SelfCommand(sc.Argv)
			}
			return BuildBackend(ctx, sc.Project, sc.Config)
		}
	}
	if s.OtherCommand == nil {
		s.OtherCommand = DefaultOtherCommand
	}
	if s.DefaultBuildPath == nil {
		buildPath := cfg.Build.Path
		s.DefaultBuildPath = func(*project.Context) string { return buildPath }
	}
	if s.BackendUnit == nil {
		unit := cfg.Backend.Unit
		s.BackendUnit = func(*project.Context) string { return unit }
	}
	return s
}

// Pipeline adapts the build hooks to the pipeline's callbacks. Each call sees a copy
// of bc carrying the effective profile.
func (s Set[B, S]) Pipeline(bc *BuildContext[B]) (pipeline.PreBuildFunc, pipeline.PostBuildFunc) {
	var pre pipeline.PreBuildFunc
	var post pipeline.PostBuildFunc
	if s.PreBuild != nil {
		pre = func(ctx context.Context, p pipeline.Profile, cmd *exec.Cmd) error {
			c := *bc
			c.Profile = p
			return s.PreBuild(ctx, &c, cmd)
		}
	}
	if s.PostBuild != nil {
		post = func(ctx context.Context, a pipeline.Artifacts) error {
			c := *bc
			c.Profile = a.Profile
			return s.PostBuild(ctx, &c, a)
		}
	}
	return pre, post
}

// DefaultPostBuild writes app.js and app_bg.wasm, provides index.html and compiles
// the stylesheets, all into the output directory.
func DefaultPostBuild[B BuildArgs](ctx context.Context, bc *BuildContext[B], a pipeline.Artifacts) error {
	cfg := bc.Config
	if cfg == nil {
		cfg = config.Default()
	}
	return assets.PostBuild(ctx, assets.Options{
		Index:      cfg.Frontend.Index,
		StaticDir:  cfg.Frontend.StaticDir,
		LookupDirs: cfg.Style.LookupDirs,
		SassBinary: cfg.Style.SassBinary,
	}, a)
}

// DefaultServe serves the output directory with a fallback to index.html. When live
// reload is enabled the reload script is injected into served HTML documents.
func DefaultServe[S any](sc *ServeContext[S], mux *http.ServeMux) error {
	inject := ""
	if sc.Config != nil && sc.Config.Serve.LiveReload {
		inject = server.LiveReloadScript
	}
	mux.Handle("/", server.StaticHandler(sc.Project.OutputDir, config.DefaultIndex, inject))
	return nil
}

// DefaultWatch registers the whole workspace: the entry document, the static
// directory, go.work, and every member's go.mod and module directory.
func DefaultWatch[S any](sc *ServeContext[S], w *watcher.Watcher) error {
	pc := sc.Project
	paths := frontendAssets(sc)
	if pc.WorkFile != "" {
		paths = append(paths, pc.WorkFile)
	}
	for _, u := range pc.Units {
		paths = append(paths, u.Manifest, u.Dir)
	}
	return addAll(w, append(paths, extraPaths(sc)...))
}

// DefaultFrontendWatch registers the frontend unit, its internal dependencies, the
// entry document and the static directory.
func DefaultFrontendWatch[S any](sc *ServeContext[S], w *watcher.Watcher) error {
	paths := append(frontendAssets(sc), sc.Project.UnitDirs(sc.Project.Frontend)...)
	return addAll(w, append(paths, extraPaths(sc)...))
}

// DefaultBackendWatch registers the backend unit and its internal dependencies.
func DefaultBackendWatch[S any](sc *ServeContext[S], w *watcher.Watcher) error {
	return addAll(w, sc.Project.UnitDirs(sc.Project.Backend))
}

func frontendAssets[S any](sc *ServeContext[S]) []string {
	fe := sc.Project.Frontend
	if fe == nil {
		return nil
	}
	index, static := config.DefaultIndex, config.DefaultStaticDir
	if sc.Config != nil {
		index, static = sc.Config.Frontend.Index, sc.Config.Frontend.StaticDir
	}
	return []string{filepath.Join(fe.Dir, index), filepath.Join(fe.Dir, static)}
}

func extraPaths[S any](sc *ServeContext[S]) []string {
	if sc.Config == nil {
		return nil
	}
	out := make([]string, 0, len(sc.Config.Watch.ExtraPaths))
	for _, p := range sc.Config.Watch.ExtraPaths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(sc.Project.Root, p)
		}
		out = append(out, p)
	}
	return out
}

func addAll(w *watcher.Watcher, paths []string) error {
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		if err := w.Add(p); err != nil {
			return err
		}
	}
	return nil
}

// SelfCommand runs this executable with the first "serve" argument of argv replaced
// by the run-server command.
func SelfCommand(argv []string) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryProcess, "could not locate the running executable").Build()
	}
	cmd := exec.Command(exe, RunServerArgs(argv)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd, nil
}

// RunServerArgs rewrites a serve command line into a run-server command line.
func RunServerArgs(argv []string) []string {
	out := append([]string(nil), argv...)
	for i, a := range out {
		if a == "serve" {
			out[i] = RunServerCommand
			return out
		}
	}
	return append([]string{RunServerCommand}, out...)
}

// BuildBackend compiles the backend unit for the host into <target>/backend/<name>
// and returns the command running it with backend.args.
func BuildBackend(ctx context.Context, pc *project.Context, cfg *config.Config) (*exec.Cmd, error) {
	if pc.Backend == nil {
		return nil, ferrors.ConfigError(MissingBackendUnit).
			WithHint("set backend.unit in wasmrun.yaml or provide a RunServer hook").Build()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	out := BackendBinary(pc)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "could not create backend target directory").
			WithContext("path", filepath.Dir(out)).Build()
	}

	guard, err := pc.Go(ctx, pc.Backend, func(cmd *exec.Cmd) {
		cmd.Args = append(cmd.Args, "build", "-o", out, cfg.Backend.Package)
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = guard.Close() }()
	if err := guard.WaitSuccess(); err != nil {
		return nil, ferrors.CompileError("failed to compile backend unit " + pc.Backend.Name).WithCause(err).Build()
	}

	cmd := exec.Command(out, cfg.Backend.Args...)
	cmd.Dir = pc.Backend.Dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd, nil
}

// BackendBinary is where BuildBackend places the backend executable.
func BackendBinary(pc *project.Context) string {
	name := pc.Backend.Name
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(pc.TargetDir, "backend", name)
}

// DefaultOtherCommand runs the selected kong command, binding the project and context.
func DefaultOtherCommand(ctx context.Context, kctx *kong.Context, pc *project.Context) error {
	kctx.BindTo(ctx, (*context.Context)(nil))
	return kctx.Run(pc)
}
