package hooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/wasmrun/internal/config"
	ferrors "git.home.luguber.info/inful/wasmrun/internal/foundation/errors"
	"git.home.luguber.info/inful/wasmrun/internal/pipeline"
	"git.home.luguber.info/inful/wasmrun/internal/project"
	"git.home.luguber.info/inful/wasmrun/internal/watcher"
)

type buildArgs struct {
	path      string
	profiling bool
	Feature   string
}

func (b buildArgs) BuildPath() string { return b.path }
func (b buildArgs) Profiling() bool   { return b.profiling }

type serveArgs struct {
	build buildArgs
}

func (serveArgs) Log() bool              { return false }
func (serveArgs) IP() string             { return "127.0.0.1" }
func (serveArgs) Port() int              { return 3000 }
func (s serveArgs) BuildArgs() buildArgs { return s.build }

type testSet = Set[buildArgs, serveArgs]

type nopSource struct {
	events chan fsnotify.Event
	errs   chan error
	added  []string
}

func newNopSource() *nopSource {
	return &nopSource{events: make(chan fsnotify.Event), errs: make(chan error)}
}

func (s *nopSource) Add(path string) error         { s.added = append(s.added, path); return nil }
func (s *nopSource) Events() <-chan fsnotify.Event { return s.events }
func (s *nopSource) Errors() <-chan error          { return s.errs }
func (s *nopSource) Close() error                  { return nil }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// workspace lays out go.work with a frontend and a backend member; the frontend
// requires a shared module.
func workspace(t *testing.T) *project.Context {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.work"), "go 1.24\n\nuse (\n\t./app\n\t./server\n\t./shared\n)\n")
	writeFile(t, filepath.Join(root, "app", "go.mod"), "module example.com/app\n\ngo 1.24\n\nrequire example.com/shared v0.0.0\n")
	writeFile(t, filepath.Join(root, "app", "index.html"), "<html></html>")
	writeFile(t, filepath.Join(root, "server", "go.mod"), "module example.com/server\n\ngo 1.24\n")
	writeFile(t, filepath.Join(root, "shared", "go.mod"), "module example.com/shared\n\ngo 1.24\n")

	pc, err := project.Load(t.Context(), project.Options{
		Dir: filepath.Join(root, "app"),
		Env: project.StaticGoEnv{GoWork: filepath.Join(root, "go.work")},
		BackendUnit: func(*project.Context) string {
			return "server"
		},
	})
	require.NoError(t, err)
	return pc
}

func newWatcher(t *testing.T) *watcher.Watcher {
	t.Helper()
	w, err := watcher.New(watcher.Options{Name: "test", Source: newNopSource()})
	require.NoError(t, err)
	return w
}

func TestResolveFillsDefaults(t *testing.T) {
	resolved := testSet{}.Resolve(config.Default())

	assert.NotNil(t, resolved.PreBuild)
	assert.NotNil(t, resolved.PostBuild)
	assert.NotNil(t, resolved.Serve)
	assert.NotNil(t, resolved.Watch)
	assert.NotNil(t, resolved.FrontendWatch)
	assert.NotNil(t, resolved.BackendWatch)
	assert.NotNil(t, resolved.BackendCommand)
	assert.NotNil(t, resolved.OtherCommand)
	assert.Nil(t, resolved.RunServer)
	assert.Equal(t, "build", resolved.DefaultBuildPath(nil))
	assert.Empty(t, resolved.BackendUnit(nil))
}

func TestResolveUsesConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Build.Path = "dist"
	cfg.Backend.Unit = "server"

	resolved := testSet{}.Resolve(cfg)
	assert.Equal(t, "dist", resolved.DefaultBuildPath(nil))
	assert.Equal(t, "server", resolved.BackendUnit(nil))
}

func TestOverrideReplacesDefaultPostBuild(t *testing.T) {
	pc := workspace(t)
	require.NoError(t, os.MkdirAll(pc.OutputDir, 0o755))

	called := false
	set := testSet{
		PostBuild: func(_ context.Context, bc *BuildContext[buildArgs], a pipeline.Artifacts) error {
			called = true
			assert.Equal(t, "feature-x", bc.Args.Feature)
			assert.Equal(t, pipeline.Release, bc.Profile)
			assert.Equal(t, pc.OutputDir, bc.OutputDir())
			return nil
		},
	}.Resolve(config.Default())

	bc := &BuildContext[buildArgs]{Args: buildArgs{Feature: "feature-x"}, Project: pc, Config: config.Default()}
	_, post := set.Pipeline(bc)
	require.NoError(t, post(t.Context(), pipeline.Artifacts{
		Profile:   pipeline.Release,
		Unit:      pc.Frontend,
		OutputDir: pc.OutputDir,
		Script:    []byte("script"),
	}))
	assert.True(t, called)

	entries, err := os.ReadDir(pc.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, pipeline.Dev, bc.Profile, "the caller's context is not mutated")
}

func TestPipelinePreBuildMutatesCommand(t *testing.T) {
	set := testSet{
		PreBuild: func(_ context.Context, bc *BuildContext[buildArgs], cmd *exec.Cmd) error {
			cmd.Args = append(cmd.Args, "-tags", bc.Args.Feature)
			cmd.Env = append(cmd.Env, "PROFILE="+bc.Profile.String())
			return nil
		},
	}
	pre, post := set.Pipeline(&BuildContext[buildArgs]{Args: buildArgs{Feature: "x"}})
	assert.Nil(t, post, "unresolved hooks stay nil")

	cmd := exec.Command("go", "build")
	require.NoError(t, pre(t.Context(), pipeline.Profiling, cmd))
	assert.Equal(t, []string{"go", "build", "-tags", "x"}, cmd.Args)
	assert.Contains(t, cmd.Env, "PROFILE=profiling")
}

func TestDefaultPostBuildWritesOutputs(t *testing.T) {
	pc := workspace(t)
	require.NoError(t, os.MkdirAll(pc.OutputDir, 0o755))
	wasm := filepath.Join(t.TempDir(), "app.wasm")
	writeFile(t, wasm, "\x00asm")

	cfg := config.Default()
	set := testSet{}.Resolve(cfg)
	_, post := set.Pipeline(&BuildContext[buildArgs]{Project: pc, Config: cfg})
	require.NoError(t, post(t.Context(), pipeline.Artifacts{
		Profile:   pipeline.Dev,
		Unit:      pc.Frontend,
		OutputDir: pc.OutputDir,
		Script:    []byte("script"),
		WasmPath:  wasm,
	}))

	for _, name := range []string{pipeline.ScriptName, pipeline.WasmName, "index.html"} {
		assert.FileExists(t, filepath.Join(pc.OutputDir, name))
	}
}

func TestDefaultWatchRegistersWorkspace(t *testing.T) {
	pc := workspace(t)
	sc := &ServeContext[serveArgs]{Project: pc, Config: config.Default()}

	w := newWatcher(t)
	require.NoError(t, DefaultWatch(sc, w))

	roots := w.Roots()
	assert.Contains(t, roots, pc.WorkFile)
	assert.Contains(t, roots, filepath.Join(pc.Frontend.Dir, "index.html"))
	for _, u := range pc.Units {
		assert.Contains(t, roots, u.Dir)
		assert.Contains(t, roots, u.Manifest)
	}
	assert.NotContains(t, roots, filepath.Join(pc.Frontend.Dir, "static"), "missing paths are skipped")
}

func TestFrontendAndBackendWatch(t *testing.T) {
	pc := workspace(t)
	sc := &ServeContext[serveArgs]{Project: pc, Config: config.Default()}
	shared := pc.Unit("shared")
	require.NotNil(t, shared)

	fw := newWatcher(t)
	require.NoError(t, DefaultFrontendWatch(sc, fw))
	assert.Contains(t, fw.Roots(), pc.Frontend.Dir)
	assert.Contains(t, fw.Roots(), shared.Dir)
	assert.NotContains(t, fw.Roots(), pc.Backend.Dir)

	bw := newWatcher(t)
	require.NoError(t, DefaultBackendWatch(sc, bw))
	assert.Equal(t, []string{pc.Backend.Manifest, pc.Backend.Dir}, bw.Roots())
}

func TestDefaultServeServesOutputDir(t *testing.T) {
	pc := workspace(t)
	writeFile(t, filepath.Join(pc.OutputDir, "index.html"), "<html><body>entry</body></html>")

	cfg := config.Default()
	cfg.Serve.LiveReload = true
	mux := http.NewServeMux()
	require.NoError(t, DefaultServe(&ServeContext[serveArgs]{Project: pc, Config: cfg}, mux))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/some/route", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "entry")
	assert.Contains(t, rec.Body.String(), "EventSource")
}

func TestRunServerArgs(t *testing.T) {
	assert.Equal(t, []string{"-v", "run-server", "--port", "4000", "serve"},
		RunServerArgs([]string{"-v", "serve", "--port", "4000", "serve"}))
	assert.Equal(t, []string{"run-server"}, RunServerArgs(nil))
}

func TestBackendCommandWithRunServer(t *testing.T) {
	set := testSet{
		RunServer: func(context.Context, *ServeContext[serveArgs]) error { return nil },
	}.Resolve(config.Default())

	cmd, err := set.BackendCommand(t.Context(), &ServeContext[serveArgs]{Argv: []string{"serve", "--log"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"run-server", "--log"}, cmd.Args[1:])
}

func TestBackendCommandMissingBackendUnit(t *testing.T) {
	pc := workspace(t)
	noBackend := *pc
	noBackend.Backend = nil

	set := testSet{}.Resolve(config.Default())
	_, err := set.BackendCommand(t.Context(), &ServeContext[serveArgs]{Project: &noBackend, Config: config.Default()})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	assert.Contains(t, err.Error(), MissingBackendUnit)
}

func TestBackendBinary(t *testing.T) {
	pc := workspace(t)
	assert.Equal(t, filepath.Join(pc.TargetDir, "backend"), filepath.Dir(BackendBinary(pc)))
}

var greetedRoot string

type greetCmd struct {
	Name string `arg:"" optional:""`
}

func (g *greetCmd) Run(ctx context.Context, pc *project.Context) error {
	if ctx == nil {
		return assert.AnError
	}
	greetedRoot = pc.Root
	return nil
}

func TestDefaultOtherCommandRunsKongCommand(t *testing.T) {
	var cli struct {
		Greet greetCmd `cmd:""`
	}

	parser, err := kong.New(&cli, kong.Exit(func(int) {}))
	require.NoError(t, err)
	kctx, err := parser.Parse([]string{"greet", "world"})
	require.NoError(t, err)

	pc := &project.Context{Root: t.TempDir()}
	require.NoError(t, DefaultOtherCommand(t.Context(), kctx, pc))
	assert.Equal(t, pc.Root, greetedRoot)
	assert.Equal(t, "world", cli.Greet.Name)
}
