package project

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"

	ferrors "git.home.luguber.info/inful/wasmrun/internal/foundation/errors"
)

// Unit is one buildable Go module of the workspace.
type Unit struct {
	Name       string   // final element of the module path
	ModulePath string   // module path declared in go.mod
	Dir        string   // absolute module directory
	Manifest   string   // absolute path of go.mod
	Deps       []string // module paths of other workspace members this unit requires
}

// Context is the immutable description of the workspace for one invocation.
// It is built once by Load and shared by reference afterwards.
type Context struct {
	Root      string // directory containing go.work, or go.mod in single-module mode
	WorkFile  string // absolute go.work path, empty in single-module mode
	Units     []Unit
	Frontend  *Unit
	Backend   *Unit // nil unless a backend unit was designated
	OutputDir string
	TargetDir string
	GoRoot    string
}

// Options control how Load resolves the context.
type Options struct {
	// Dir is the invocation directory; empty means os.Getwd.
	Dir string
	// Env defaults to OSGoEnvReader.
	Env GoEnvReader

	// FrontendUnit selects the frontend by module path or name; empty picks the unit
	// containing Dir, else the first unit.
	FrontendUnit string
	// TargetDir is relative to Root unless absolute; empty means "target".
	TargetDir string

	// OutputDir overrides BuildPath for this invocation (e.g. --build-path).
	OutputDir string
	// BuildPath computes the default output directory from the partially resolved context.
	BuildPath func(*Context) string
	// BackendUnit names the designated backend unit; empty result means none.
	BackendUnit func(*Context) string
}

// Load discovers the workspace around opts.Dir.
func Load(ctx context.Context, opts Options) (*Context, error) {
	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to get working directory").Build()
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to resolve working directory").Build()
	}
	env := opts.Env
	if env == nil {
		env = OSGoEnvReader{}
	}

	goEnv, err := env.Read(ctx, dir)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read go environment").
			WithContext("dir", dir).Build()
	}

	pc := &Context{GoRoot: goEnv.GoRoot}
	switch {
	case goEnv.GoWork != "":
		pc.Root = filepath.Dir(goEnv.GoWork)
		pc.WorkFile = goEnv.GoWork
		if pc.Units, err = loadWorkUnits(goEnv.GoWork); err != nil {
			return nil, err
		}
	case goEnv.GoMod != "":
		pc.Root = filepath.Dir(goEnv.GoMod)
		u, err := loadUnit(pc.Root)
		if err != nil {
			return nil, err
		}
		pc.Units = []Unit{u}
	default:
		return nil, ferrors.ConfigError("no go.mod or go.work found").
			WithContext("dir", dir).Build()
	}
	if len(pc.Units) == 0 {
		return nil, ferrors.ConfigError("workspace has no modules").
			WithContext("path", pc.WorkFile).Build()
	}
	linkDeps(pc.Units)

	if pc.Frontend, err = pc.selectFrontend(opts.FrontendUnit, dir); err != nil {
		return nil, err
	}

	pc.TargetDir = pc.abs(opts.TargetDir, "target")
	if opts.OutputDir != "" {
		pc.OutputDir = pc.abs(opts.OutputDir, "")
	} else if opts.BuildPath != nil {
		pc.OutputDir = pc.abs(opts.BuildPath(pc), "build")
	} else {
		pc.OutputDir = pc.abs("", "build")
	}

	if opts.BackendUnit != nil {
		if name := opts.BackendUnit(pc); name != "" {
			u := pc.Unit(name)
			if u == nil {
				return nil, ferrors.ConfigError(fmt.Sprintf("backend unit %q is not part of the workspace", name)).Build()
			}
			pc.Backend = u
		}
	}
	return pc, nil
}

func (c *Context) abs(p, fallback string) string {
	if p == "" {
		p = fallback
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Root, p)
}

func (c *Context) selectFrontend(name, dir string) (*Unit, error) {
	if name != "" {
		u := c.Unit(name)
		if u == nil {
			return nil, ferrors.ConfigError(fmt.Sprintf("frontend unit %q is not part of the workspace", name)).Build()
		}
		return u, nil
	}
	var best *Unit
	for i := range c.Units {
		u := &c.Units[i]
		if within(dir, u.Dir) && (best == nil || len(u.Dir) > len(best.Dir)) {
			best = u
		}
	}
	if best == nil {
		best = &c.Units[0]
	}
	return best, nil
}

// Unit looks a unit up by module path, name, or directory base name.
func (c *Context) Unit(name string) *Unit {
	for i := range c.Units {
		if c.Units[i].ModulePath == name {
			return &c.Units[i]
		}
	}
	for i := range c.Units {
		u := &c.Units[i]
		if u.Name == name || filepath.Base(u.Dir) == name {
			return u
		}
	}
	return nil
}

// DepsOf returns the workspace-internal dependencies of u, transitively, in discovery order.
func (c *Context) DepsOf(u *Unit) []*Unit {
	if u == nil {
		return nil
	}
	seen := map[string]bool{u.ModulePath: true}
	var out []*Unit
	queue := append([]string(nil), u.Deps...)
	for len(queue) > 0 {
		mod := queue[0]
		queue = queue[1:]
		if seen[mod] {
			continue
		}
		seen[mod] = true
		dep := c.Unit(mod)
		if dep == nil {
			continue
		}
		out = append(out, dep)
		queue = append(queue, dep.Deps...)
	}
	return out
}

// UnitDirs returns the directory and manifest of u and of each internal dependency.
func (c *Context) UnitDirs(u *Unit) []string {
	if u == nil {
		return nil
	}
	paths := []string{u.Manifest, u.Dir}
	for _, dep := range c.DepsOf(u) {
		paths = append(paths, dep.Manifest, dep.Dir)
	}
	return paths
}

func within(p, dir string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func loadWorkUnits(workPath string) ([]Unit, error) {
	data, err := os.ReadFile(workPath)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to read go.work").
			WithContext("path", workPath).Build()
	}
	workFile, err := modfile.ParseWork(workPath, data, nil)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to parse go.work").
			WithContext("path", workPath).Build()
	}

	root := filepath.Dir(workPath)
	units := make([]Unit, 0, len(workFile.Use))
	for _, use := range workFile.Use {
		dir := use.Path
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, filepath.FromSlash(dir))
		}
		u, err := loadUnit(dir)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}

func loadUnit(dir string) (Unit, error) {
	goModPath := filepath.Join(dir, "go.mod")
	data, err := os.ReadFile(goModPath)
	if err != nil {
		return Unit{}, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to read go.mod").
			WithContext("path", goModPath).Build()
	}
	modFile, err := modfile.Parse(goModPath, data, nil)
	if err != nil {
		return Unit{}, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to parse go.mod").
			WithContext("path", goModPath).Build()
	}
	if modFile.Module == nil {
		return Unit{}, ferrors.ConfigError("go.mod has no module directive").
			WithContext("path", goModPath).Build()
	}

	u := Unit{
		Name:       path.Base(modFile.Module.Mod.Path),
		ModulePath: modFile.Module.Mod.Path,
		Dir:        dir,
		Manifest:   goModPath,
	}
	for _, req := range modFile.Require {
		u.Deps = append(u.Deps, req.Mod.Path)
	}
	return u, nil
}

// linkDeps keeps only requirements that name another workspace member.
func linkDeps(units []Unit) {
	members := make(map[string]bool, len(units))
	for _, u := range units {
		members[u.ModulePath] = true
	}
	for i := range units {
		var internal []string
		for _, dep := range units[i].Deps {
			if members[dep] && dep != units[i].ModulePath {
				internal = append(internal, dep)
			}
		}
		units[i].Deps = internal
	}
}
