package hooks

import (
	"git.home.luguber.info/inful/wasmrun/internal/config"
	"git.home.luguber.info/inful/wasmrun/internal/pipeline"
	"git.home.luguber.info/inful/wasmrun/internal/project"
)

// BuildArgs is the capability set a build argument type must expose.
type BuildArgs interface {
	BuildPath() string
	Profiling() bool
}

// ServeArgs is the capability set a serve argument type must expose.
type ServeArgs[B BuildArgs] interface {
	Log() bool
	IP() string
	Port() int
	BuildArgs() B
}

// BuildContext is passed to the build hooks.
type BuildContext[B BuildArgs] struct {
	Args    B
	Project *project.Context
	Config  *config.Config
	// Profile is the effective profile of the running build.
	Profile pipeline.Profile
}

// OutputDir is the pipeline-owned output directory.
func (bc *BuildContext[B]) OutputDir() string { return bc.Project.OutputDir }

// ServeContext is passed to the serve and watch hooks.
type ServeContext[S any] struct {
	Args    S
	Project *project.Context
	Config  *config.Config
	// Argv is the command line of the running process, without the executable.
	Argv []string
}
