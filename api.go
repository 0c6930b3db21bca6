package wasmrun

import (
	"context"
	"log/slog"
	"net/http"
	"os/exec"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/wasmrun/internal/config"
	ferrors "git.home.luguber.info/inful/wasmrun/internal/foundation/errors"
	"git.home.luguber.info/inful/wasmrun/internal/hooks"
	"git.home.luguber.info/inful/wasmrun/internal/pipeline"
	"git.home.luguber.info/inful/wasmrun/internal/process"
	"git.home.luguber.info/inful/wasmrun/internal/project"
	"git.home.luguber.info/inful/wasmrun/internal/server"
	"git.home.luguber.info/inful/wasmrun/internal/watcher"
)

// Types that appear in hook signatures and App fields.
type (
	// Project describes the workspace of one invocation. It is loaded once per process.
	Project = project.Context
	// Unit is one module of the workspace.
	Unit = project.Unit
	// Guard owns a child process started through Project.Go.
	Guard = process.Guard

	// Config is the parsed wasmrun.yaml.
	Config    = config.Config
	ServeMode = config.ServeMode

	// Artifacts are handed to the PostBuild hook.
	Artifacts = pipeline.Artifacts
	Profile   = pipeline.Profile

	// Watcher is handed to the watch hooks to register paths with Add.
	Watcher = watcher.Watcher

	Runner     = pipeline.Runner
	RunnerFunc = pipeline.RunnerFunc
	Binder     = pipeline.Binder
	Binding    = pipeline.Binding
	Optimizer  = pipeline.Optimizer

	GoEnv       = project.GoEnv
	GoEnvReader = project.GoEnvReader
	StaticGoEnv = project.StaticGoEnv
)

const (
	ProfileDev       = pipeline.Dev
	ProfileRelease   = pipeline.Release
	ProfileProfiling = pipeline.Profiling

	ServeModeEmbedded = config.ServeModeEmbedded
	ServeModeBackend  = config.ServeModeBackend
)

// Output file names of the default post-build step and the live-reload endpoint.
const (
	ScriptName     = pipeline.ScriptName
	WasmName       = pipeline.WasmName
	LiveReloadPath = server.LiveReloadPath
)

// DefaultConfig returns the configuration used when no wasmrun.yaml exists.
func DefaultConfig() *Config { return config.Default() }

// LoadConfig reads WASMRUN_CONFIG or wasmrun.yaml for an invocation in dir.
func LoadConfig(dir string) (*Config, error) { return config.LoadDefault(dir) }

// The default hooks, for overrides that extend rather than replace them.

func DefaultPostBuild[B BuildArgs](ctx context.Context, bc *BuildContext[B], a Artifacts) error {
	return hooks.DefaultPostBuild(ctx, bc, a)
}

func DefaultServe[S any](sc *ServeContext[S], mux *http.ServeMux) error {
	return hooks.DefaultServe(sc, mux)
}

func DefaultWatch[S any](sc *ServeContext[S], w *Watcher) error {
	return hooks.DefaultWatch(sc, w)
}

func DefaultFrontendWatch[S any](sc *ServeContext[S], w *Watcher) error {
	return hooks.DefaultFrontendWatch(sc, w)
}

func DefaultBackendWatch[S any](sc *ServeContext[S], w *Watcher) error {
	return hooks.DefaultBackendWatch(sc, w)
}

// BuildBackend compiles the backend unit and returns the command that runs it.
func BuildBackend(ctx context.Context, pc *Project, cfg *Config) (*exec.Cmd, error) {
	return hooks.BuildBackend(ctx, pc, cfg)
}

// SelfCommand is the default BackendCommand when a RunServer hook is set.
func SelfCommand(argv []string) (*exec.Cmd, error) { return hooks.SelfCommand(argv) }

func DefaultOtherCommand(ctx context.Context, kctx *kong.Context, pc *Project) error {
	return hooks.DefaultOtherCommand(ctx, kctx, pc)
}

// StaticHandler serves root with a fallback to index. A non-empty inject script is
// added to served HTML documents.
func StaticHandler(root, index, inject string) http.Handler {
	return server.StaticHandler(root, index, inject)
}

// LiveReloadScript is what DefaultServe injects when serve.livereload is set.
const LiveReloadScript = server.LiveReloadScript

// ExitCode maps an error returned by App.Run to the process exit code.
func ExitCode(err error) int {
	return ferrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err)
}

// HandleError prints err to stderr and exits with ExitCode(err). Verbose mode also
// logs the error context and shows internal errors in full. A nil err is a no-op.
func HandleError(err error, verbose bool) {
	ferrors.NewCLIErrorAdapter(verbose, slog.Default()).HandleError(err)
}
