package wasmrun

import (
	"git.home.luguber.info/inful/wasmrun/internal/hooks"
)

// Hooks is the set of overridable extension points, parameterized over the
// application's build and serve argument types.
type Hooks[B hooks.BuildArgs, S hooks.ServeArgs[B]] = hooks.Set[B, S]

// BuildContext is what the build hooks receive.
type BuildContext[B hooks.BuildArgs] = hooks.BuildContext[B]

// ServeContext is what the serve and watch hooks receive.
type ServeContext[S any] = hooks.ServeContext[S]

// BuildArgs is the capability set of a build argument type.
type BuildArgs = hooks.BuildArgs

// ServeArgs is the capability set of a serve argument type.
type ServeArgs[B hooks.BuildArgs] = hooks.ServeArgs[B]

// DefaultBuildArgs are the flags of the build command.
type DefaultBuildArgs struct {
	Path    string `name:"build-path" help:"Output directory (default: build.path from wasmrun.yaml)" type:"path"`
	Profile bool   `name:"profiling" help:"Build with the profiling profile"`
}

func (a DefaultBuildArgs) BuildPath() string { return a.Path }
func (a DefaultBuildArgs) Profiling() bool   { return a.Profile }

// DefaultServeArgs are the flags of the serve command.
type DefaultServeArgs struct {
	LogRequests bool   `name:"log" help:"Log HTTP requests"`
	Address     string `name:"ip" default:"${ip}" help:"Address to bind the dev server to"`
	ListenPort  int    `name:"port" default:"${port}" help:"Port to bind the dev server to"`

	Build DefaultBuildArgs `embed:""`
}

func (a DefaultServeArgs) Log() bool                   { return a.LogRequests }
func (a DefaultServeArgs) IP() string                  { return a.Address }
func (a DefaultServeArgs) Port() int                   { return a.ListenPort }
func (a DefaultServeArgs) BuildArgs() DefaultBuildArgs { return a.Build }
