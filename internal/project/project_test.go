package project

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/wasmrun/internal/foundation/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newWorkspace lays out go.work with app (frontend), shared, and server (backend).
func newWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.work"), "go 1.24\n\nuse (\n\t./app\n\t./shared\n\t./server\n)\n")
	writeFile(t, filepath.Join(root, "app", "go.mod"),
		"module example.com/app\n\ngo 1.24\n\nrequire (\n\texample.com/shared v0.0.0\n\tgithub.com/google/uuid v1.6.0\n)\n")
	writeFile(t, filepath.Join(root, "shared", "go.mod"), "module example.com/shared\n\ngo 1.24\n")
	writeFile(t, filepath.Join(root, "server", "go.mod"),
		"module example.com/server\n\ngo 1.24\n\nrequire example.com/shared v0.0.0\n")
	return root
}

func TestLoadWorkspace(t *testing.T) {
	root := newWorkspace(t)
	env := StaticGoEnv{GoWork: filepath.Join(root, "go.work"), GoRoot: "/usr/local/go"}

	pc, err := Load(t.Context(), Options{
		Dir:         filepath.Join(root, "app"),
		Env:         env,
		BackendUnit: func(*Context) string { return "server" },
	})
	require.NoError(t, err)

	assert.Equal(t, root, pc.Root)
	assert.Equal(t, filepath.Join(root, "go.work"), pc.WorkFile)
	require.Len(t, pc.Units, 3)
	assert.Equal(t, "example.com/app", pc.Frontend.ModulePath)
	require.NotNil(t, pc.Backend)
	assert.Equal(t, "example.com/server", pc.Backend.ModulePath)
	assert.Equal(t, filepath.Join(root, "build"), pc.OutputDir)
	assert.Equal(t, filepath.Join(root, "target"), pc.TargetDir)
	assert.Equal(t, "/usr/local/go", pc.GoRoot)

	// external requirements are dropped, workspace members kept
	assert.Equal(t, []string{"example.com/shared"}, pc.Frontend.Deps)
	deps := pc.DepsOf(pc.Frontend)
	require.Len(t, deps, 1)
	assert.Equal(t, "shared", deps[0].Name)

	assert.Equal(t, []string{
		filepath.Join(root, "app", "go.mod"), filepath.Join(root, "app"),
		filepath.Join(root, "shared", "go.mod"), filepath.Join(root, "shared"),
	}, pc.UnitDirs(pc.Frontend))
}

func TestLoadFrontendFromWorkingDirectory(t *testing.T) {
	root := newWorkspace(t)
	env := StaticGoEnv{GoWork: filepath.Join(root, "go.work")}

	pc, err := Load(t.Context(), Options{Dir: filepath.Join(root, "server", "cmd"), Env: env})
	require.NoError(t, err)
	assert.Equal(t, "server", pc.Frontend.Name)
	assert.Nil(t, pc.Backend)

	pc, err = Load(t.Context(), Options{Dir: root, Env: env})
	require.NoError(t, err)
	assert.Equal(t, "app", pc.Frontend.Name, "falls back to the first unit")
}

func TestLoadOutputDirResolution(t *testing.T) {
	root := newWorkspace(t)
	env := StaticGoEnv{GoWork: filepath.Join(root, "go.work")}

	pc, err := Load(t.Context(), Options{
		Dir:       root,
		Env:       env,
		BuildPath: func(c *Context) string { return filepath.Join("dist", c.Frontend.Name) },
		TargetDir: "/tmp/wasmrun-target",
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "dist", "app"), pc.OutputDir)
	assert.Equal(t, "/tmp/wasmrun-target", pc.TargetDir)

	pc, err = Load(t.Context(), Options{
		Dir:       root,
		Env:       env,
		OutputDir: "public",
		BuildPath: func(*Context) string { return "ignored" },
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "public"), pc.OutputDir)
}

func TestLoadSingleModule(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.mod"), "module example.com/solo\n\ngo 1.24\n")

	pc, err := Load(t.Context(), Options{Dir: root, Env: StaticGoEnv{GoWork: "off", GoMod: filepath.Join(root, "go.mod")}})
	require.NoError(t, err)
	assert.Empty(t, pc.WorkFile)
	require.Len(t, pc.Units, 1)
	assert.Equal(t, "solo", pc.Frontend.Name)
}

func TestLoadErrors(t *testing.T) {
	root := newWorkspace(t)
	env := StaticGoEnv{GoWork: filepath.Join(root, "go.work")}

	_, err := Load(t.Context(), Options{Dir: root, Env: StaticGoEnv{GoMod: os.DevNull}})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))

	_, err = Load(t.Context(), Options{Dir: root, Env: env, FrontendUnit: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `frontend unit "nope"`)

	_, err = Load(t.Context(), Options{Dir: root, Env: env, BackendUnit: func(*Context) string { return "nope" }})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `backend unit "nope"`)
}

func TestCellIsWriteOnce(t *testing.T) {
	var cell Cell
	assert.Nil(t, cell.Get())

	first := &Context{Root: "/a"}
	require.NoError(t, cell.Set(first))
	require.ErrorIs(t, cell.Set(&Context{Root: "/b"}), ErrAlreadyInitialized)
	assert.Same(t, first, cell.Get())
}

func TestGoHelperRunsInUnitDir(t *testing.T) {
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go not on PATH")
	}
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.mod"), "module example.com/solo\n\ngo 1.24\n")
	pc, err := Load(t.Context(), Options{Dir: root, Env: StaticGoEnv{GoMod: filepath.Join(root, "go.mod")}})
	require.NoError(t, err)

	g, err := pc.Go(t.Context(), nil, func(cmd *exec.Cmd) {
		cmd.Args = append(cmd.Args, "version")
		cmd.Stdout = nil
	})
	require.NoError(t, err)
	defer func() { _ = g.Close() }()
	require.NoError(t, g.WaitSuccess())
}
