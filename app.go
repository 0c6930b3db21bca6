package wasmrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/wasmrun/internal/config"
	"git.home.luguber.info/inful/wasmrun/internal/devloop"
	ferrors "git.home.luguber.info/inful/wasmrun/internal/foundation/errors"
	"git.home.luguber.info/inful/wasmrun/internal/hooks"
	"git.home.luguber.info/inful/wasmrun/internal/metrics"
	"git.home.luguber.info/inful/wasmrun/internal/pipeline"
	"git.home.luguber.info/inful/wasmrun/internal/project"
	"git.home.luguber.info/inful/wasmrun/internal/retry"
	"git.home.luguber.info/inful/wasmrun/internal/version"
	"git.home.luguber.info/inful/wasmrun/internal/watcher"
)

// Built-in command names. Registered commands may not reuse them.
const (
	CommandBuild     = "build"
	CommandServe     = "serve"
	CommandRunServer = hooks.RunServerCommand
)

var reservedCommands = map[string]bool{
	CommandBuild:     true,
	CommandServe:     true,
	CommandRunServer: true,
	"help":           true,
	"version":        true,
}

// App is one embedding application: its hooks, its extra commands and the project
// context of the running invocation.
type App[B hooks.BuildArgs, S hooks.ServeArgs[B]] struct {
	Name        string
	Description string
	Hooks       Hooks[B, S]

	// Config is loaded from WASMRUN_CONFIG or wasmrun.yaml, relative to Dir, when nil.
	Config *config.Config
	// Dir is the invocation directory; empty means the working directory.
	Dir string

	// Toolchain seams; nil uses the real go, wasm_exec.js and wasm-opt.
	GoEnv     project.GoEnvReader
	Runner    pipeline.Runner
	Binder    pipeline.Binder
	Optimizer pipeline.Optimizer

	Stdout io.Writer
	Stderr io.Writer
	Exit   func(int)

	commands []registeredCommand
	project  project.Cell
}

type registeredCommand struct {
	name string
	help string
	cmd  any
}

// New returns an App with the given hooks.
func New[B hooks.BuildArgs, S hooks.ServeArgs[B]](name string, h Hooks[B, S]) *App[B, S] {
	return &App[B, S]{Name: name, Hooks: h}
}

// RegisterCommand adds a command dispatched to the OtherCommand hook. cmd is a kong
// command struct; with the default hook its Run method receives the context.Context
// and the *project.Context.
func (a *App[B, S]) RegisterCommand(name, help string, cmd any) error {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return ferrors.ConfigError("command name is empty").Build()
	case reservedCommands[name]:
		return ferrors.ConfigError(fmt.Sprintf("command %q is reserved", name)).Build()
	case cmd == nil:
		return ferrors.ConfigError(fmt.Sprintf("command %q has no implementation", name)).Build()
	}
	for _, c := range a.commands {
		if c.name == name {
			return ferrors.ConfigError(fmt.Sprintf("command %q is already registered", name)).Build()
		}
	}
	a.commands = append(a.commands, registeredCommand{name: name, help: help, cmd: cmd})
	return nil
}

// Project returns the project context once Run has loaded it.
func (a *App[B, S]) Project() *project.Context {
	return a.project.Get()
}

// Run parses args (without the executable name) and runs the selected command.
func (a *App[B, S]) Run(ctx context.Context, args []string) error {
	cfg := a.Config
	if cfg == nil {
		var err error
		if cfg, err = config.LoadDefault(a.Dir); err != nil {
			return err
		}
	}
	h := a.Hooks.Resolve(cfg)

	grammar := &cli[B, S]{}
	parser, err := a.parser(grammar, cfg)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return ferrors.ValidationError(err.Error()).WithCause(err).Build()
	}

	fields := strings.Fields(kctx.Command())
	if len(fields) == 0 {
		return ferrors.ValidationError("no command given").Build()
	}
	command := fields[0]
	buildPath := ""
	switch command {
	case CommandBuild:
		buildPath = grammar.Build.Args.BuildPath()
	case CommandServe:
		buildPath = grammar.Serve.Args.BuildArgs().BuildPath()
	case CommandRunServer:
		buildPath = grammar.RunServer.Args.BuildArgs().BuildPath()
	}

	pc, err := project.Load(ctx, project.Options{
		Dir:          a.Dir,
		Env:          a.GoEnv,
		FrontendUnit: cfg.Frontend.Unit,
		TargetDir:    cfg.Build.TargetDir,
		OutputDir:    buildPath,
		BuildPath:    h.DefaultBuildPath,
		BackendUnit:  h.BackendUnit,
	})
	if err != nil {
		return err
	}
	if err := a.project.Set(pc); err != nil {
		if errors.Is(err, project.ErrAlreadyInitialized) {
			panic("wasmrun: App.Run called twice on the same App")
		}
		return ferrors.InternalError("could not store project context").WithCause(err).Build()
	}

	switch command {
	case CommandBuild:
		return a.build(ctx, h, cfg, pc, grammar.Build.Args)
	case CommandServe:
		return a.serve(ctx, h, cfg, pc, grammar.Serve.Args, args)
	case CommandRunServer:
		if h.RunServer == nil {
			return ferrors.ConfigError(hooks.MissingBackendUnit).
				WithHint("provide a RunServer hook").Build()
		}
		return h.RunServer(ctx, &hooks.ServeContext[S]{Args: grammar.RunServer.Args, Project: pc, Config: cfg, Argv: args})
	default:
		return h.OtherCommand(ctx, kctx, pc)
	}
}

func (a *App[B, S]) parser(grammar *cli[B, S], cfg *config.Config) (*kong.Kong, error) {
	name := a.Name
	if name == "" {
		name = filepath.Base(os.Args[0])
	}
	opts := []kong.Option{
		kong.Name(name),
		kong.Description(a.Description),
		kong.UsageOnError(),
		kong.Vars{
			"ip":      cfg.Serve.IP,
			"port":    strconv.Itoa(cfg.Serve.Port),
			"version": version.String(),
		},
	}
	if a.Stdout != nil || a.Stderr != nil {
		opts = append(opts, kong.Writers(writerOr(a.Stdout, os.Stdout), writerOr(a.Stderr, os.Stderr)))
	}
	if a.Exit != nil {
		opts = append(opts, kong.Exit(a.Exit))
	}
	for _, c := range a.commands {
		opts = append(opts, kong.DynamicCommand(c.name, c.help, "", c.cmd))
	}
	parser, err := kong.New(grammar, opts...)
	if err != nil {
		return nil, ferrors.ConfigError("invalid command line definition").WithCause(err).Build()
	}
	return parser, nil
}

func (a *App[B, S]) pipeline(h Hooks[B, S], cfg *config.Config, pc *project.Context, args B, rec metrics.Recorder) *pipeline.Pipeline {
	bc := &hooks.BuildContext[B]{Args: args, Project: pc, Config: cfg}
	pre, post := h.Pipeline(bc)

	p := &pipeline.Pipeline{
		Project: pc,
		Compiler: pipeline.Compiler{
			Toolchain: cfg.Build.Toolchain,
			Package:   cfg.Frontend.Package,
			Tags:      cfg.Build.Tags,
			Env:       cfg.Build.Env,
		},
		Runner:    a.Runner,
		Binder:    a.Binder,
		Optimizer: a.Optimizer,
		Recorder:  rec,
		PreBuild:  pre,
		PostBuild: post,
	}
	if p.Optimizer == nil && cfg.Optimize.OptimizerEnabled() {
		p.Optimizer = &pipeline.WasmOpt{
			Binary:    cfg.Optimize.Binary,
			ExtraArgs: cfg.Optimize.ExtraArgs,
			Policy:    retry.FromConfig(cfg.Optimize.Retry),
			Runner:    a.Runner,
			Recorder:  rec,
		}
	}
	return p
}

func (a *App[B, S]) build(ctx context.Context, h Hooks[B, S], cfg *config.Config, pc *project.Context, args B) error {
	p := a.pipeline(h, cfg, pc, args, metrics.NoopRecorder{})
	_, err := p.Build(ctx, pipeline.Release, args.Profiling())
	return err
}

func (a *App[B, S]) serve(ctx context.Context, h Hooks[B, S], cfg *config.Config, pc *project.Context, args S, argv []string) error {
	var (
		rec     metrics.Recorder = metrics.NoopRecorder{}
		handler http.Handler
	)
	if cfg.Serve.Metrics {
		reg := prom.NewRegistry()
		rec = metrics.NewPrometheusRecorder(reg)
		handler = metrics.HTTPHandler(reg)
	}

	bargs := args.BuildArgs()
	p := a.pipeline(h, cfg, pc, bargs, rec)
	sc := &hooks.ServeContext[S]{Args: args, Project: pc, Config: cfg, Argv: argv}

	mode := cfg.Serve.Mode
	if h.RunServer != nil {
		mode = config.ServeModeBackend
	}

	filter, err := watcher.NewFilter(watcher.FilterOptions{
		Root:         pc.Root,
		OutputDir:    pc.OutputDir,
		TargetDir:    pc.TargetDir,
		UseGitignore: cfg.Watch.GitignoreEnabled(),
	})
	if err != nil {
		return err
	}

	sup := &devloop.Supervisor{
		Mode:        mode,
		IP:          args.IP(),
		Port:        args.Port(),
		LogRequests: args.Log(),
		OutputDir:   pc.OutputDir,
		Build: func(ctx context.Context) (string, error) {
			res, err := p.Build(ctx, pipeline.Dev, bargs.Profiling())
			return res.BuildID, err
		},
		Serve:          func(mux *http.ServeMux) error { return h.Serve(sc, mux) },
		Watch:          func(w *watcher.Watcher) error { return h.Watch(sc, w) },
		FrontendWatch:  func(w *watcher.Watcher) error { return h.FrontendWatch(sc, w) },
		BackendWatch:   func(w *watcher.Watcher) error { return h.BackendWatch(sc, w) },
		BackendCommand: func(ctx context.Context) (*exec.Cmd, error) { return h.BackendCommand(ctx, sc) },
		FullRestart:    cfg.Serve.FullRestart,
		RestartCommand: cfg.Serve.RestartCommand,
		LiveReload:     cfg.Serve.LiveReload,
		Metrics:        handler,
		Recorder:       rec,
		Window:         cfg.Watch.DebounceWindow(),
		Filter:         filter,
		Stdout:         a.Stdout,
	}
	return sup.Run(ctx)
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w == nil {
		return fallback
	}
	return w
}
