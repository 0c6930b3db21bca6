package devloop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/wasmrun/internal/config"
	ferrors "git.home.luguber.info/inful/wasmrun/internal/foundation/errors"
	"git.home.luguber.info/inful/wasmrun/internal/logfields"
	"git.home.luguber.info/inful/wasmrun/internal/metrics"
	"git.home.luguber.info/inful/wasmrun/internal/process"
	"git.home.luguber.info/inful/wasmrun/internal/server"
	"git.home.luguber.info/inful/wasmrun/internal/watcher"
)

// MetricsPath is where the Prometheus handler is mounted when metrics are enabled.
const MetricsPath = "/__wasmrun/metrics"

// ErrUnexpectedExit is reported when a steady-state task returns on its own.
var ErrUnexpectedExit = ferrors.RuntimeError("server and watcher unexpectedly exited").Build()

// BuildFunc runs one Dev build and returns its build id. The id is also returned
// when the build fails.
type BuildFunc func(ctx context.Context) (string, error)

// WatchSetup registers paths on a watcher.
type WatchSetup func(w *watcher.Watcher) error

// Supervisor runs the serve command.
type Supervisor struct {
	Mode        config.ServeMode
	IP          string
	Port        int
	LogRequests bool
	// OutputDir must exist after the initial build.
	OutputDir string

	Build BuildFunc
	Serve func(mux *http.ServeMux) error
	// Watch is used in embedded mode; FrontendWatch and BackendWatch in backend mode.
	Watch          WatchSetup
	FrontendWatch  WatchSetup
	BackendWatch   WatchSetup
	BackendCommand func(ctx context.Context) (*exec.Cmd, error)

	// FullRestart re-executes RestartCommand instead of rebuilding in-process.
	FullRestart    bool
	RestartCommand []string
	Restart        func(argv []string) error // default Exec

	LiveReload bool
	Metrics    http.Handler // mounted at MetricsPath when non-nil
	Recorder   metrics.Recorder

	Window    time.Duration
	Filter    *watcher.Filter
	NewSource func() (watcher.Source, error) // nil uses fsnotify
	Stdout    io.Writer

	group     *process.Group
	backend   process.Slot
	rebuildMu sync.Mutex
	hub       *server.LiveReloadHub
}

// Run blocks until a fatal error, or until ctx is canceled which is a clean exit.
// Every child process started by the supervisor is killed and reaped before Run returns.
func (s *Supervisor) Run(ctx context.Context) error {
	s.group = process.NewGroup()
	defer s.group.CloseAll()

	var firstBackend *exec.Cmd
	if s.Mode == config.ServeModeBackend {
		if s.BackendCommand == nil {
			return ferrors.ConfigError("missing backend unit").Build()
		}
		cmd, err := s.BackendCommand(ctx)
		if err != nil {
			return err
		}
		firstBackend = cmd
	}

	slog.Info("Running initial build")
	initialID, err := s.Build(ctx)
	if err != nil {
		return err
	}
	if fi, err := os.Stat(s.OutputDir); err != nil || !fi.IsDir() {
		return ferrors.BuildError("output directory does not exist after the initial build").
			WithContext("path", s.OutputDir).Build()
	}

	if s.Mode == config.ServeModeBackend {
		err = s.runBackend(ctx, firstBackend)
	} else {
		err = s.runEmbedded(ctx, initialID)
	}
	if ctx.Err() != nil && (err == nil || errors.Is(err, context.Canceled)) {
		slog.Info("Dev loop stopped")
		return nil
	}
	return err
}

func (s *Supervisor) runEmbedded(ctx context.Context, initialID string) error {
	w, err := s.newWatcher("frontend", s.Watch)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	mux := http.NewServeMux()
	if s.LiveReload {
		s.hub = server.NewLiveReloadHub()
		s.hub.Broadcast(initialID)
		mux.Handle(server.LiveReloadPath, s.hub)
	}
	if s.Metrics != nil {
		mux.Handle(MetricsPath, s.Metrics)
	}
	if s.Serve != nil {
		if err := s.Serve(mux); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryRuntime, "serve setup failed").Fatal().Build()
		}
	}

	ln, err := server.Listen(ctx, s.IP, s.Port)
	if err != nil {
		return err
	}
	srv := server.New(ln, mux, s.LogRequests)
	_, _ = fmt.Fprintf(s.stdout(), "Development server started: http://%s\n", ln.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(steady(gctx, srv.Serve))
	g.Go(steady(gctx, func() error { return w.Run(gctx) }))
	g.Go(steady(gctx, func() error { return s.rebuildLoop(gctx, w) }))
	g.Go(func() error {
		<-gctx.Done()
		if s.hub != nil {
			s.hub.Shutdown()
		}
		if err := srv.Shutdown(); err != nil {
			slog.Warn("Dev server shutdown", logfields.Error(err))
		}
		return nil
	})
	return g.Wait()
}

func (s *Supervisor) runBackend(ctx context.Context, first *exec.Cmd) error {
	fw, err := s.newWatcher("frontend", s.FrontendWatch)
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()
	bw, err := s.newWatcher("backend", s.BackendWatch)
	if err != nil {
		return err
	}
	defer func() { _ = bw.Close() }()

	if err := s.spawnBackend(first); err != nil {
		return err
	}
	defer s.backend.Release()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(steady(gctx, func() error { return fw.Run(gctx) }))
	g.Go(steady(gctx, func() error { return bw.Run(gctx) }))
	g.Go(steady(gctx, func() error { return s.rebuildLoop(gctx, fw) }))
	g.Go(steady(gctx, func() error { return s.backendLoop(gctx, bw) }))
	return g.Wait()
}

// steady wraps a task that is not expected to return while ctx is live.
func steady(ctx context.Context, fn func() error) func() error {
	return func() error {
		err := fn()
		if err == nil && ctx.Err() == nil {
			return ErrUnexpectedExit
		}
		return err
	}
}

func (s *Supervisor) newWatcher(name string, setup WatchSetup) (*watcher.Watcher, error) {
	opts := watcher.Options{Name: name, Window: s.Window, Filter: s.Filter}
	if s.NewSource != nil {
		src, err := s.NewSource()
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryWatch, "failed to create file watcher").
				WithContext("watcher", name).Fatal().Build()
		}
		opts.Source = src
	}
	w, err := watcher.New(opts)
	if err != nil {
		return nil, err
	}
	if setup != nil {
		if err := setup(w); err != nil {
			_ = w.Close()
			return nil, ferrors.WrapError(err, ferrors.CategoryWatch, "watch setup failed").
				WithContext("watcher", name).Fatal().Build()
		}
	}
	return w, nil
}

func (s *Supervisor) rebuildLoop(ctx context.Context, w *watcher.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			if err := s.onChange(ctx, w.Name(), batch); err != nil {
				return err
			}
		}
	}
}

// onChange handles one frontend batch. Only a failed full restart is fatal.
func (s *Supervisor) onChange(ctx context.Context, name string, batch []watcher.Event) error {
	if s.FullRestart {
		slog.Info("Change detected; restarting", logfields.Watcher(name), slog.Int("events", len(batch)))
		s.backend.Release()
		s.group.CloseAll()
		restart := s.Restart
		if restart == nil {
			restart = Exec
		}
		return restart(s.restartCommand())
	}

	slog.Info("Change detected; rebuilding", logfields.Watcher(name), slog.Int("events", len(batch)))
	s.rebuildMu.Lock()
	id, err := s.Build(ctx)
	s.rebuildMu.Unlock()

	s.recorder().IncRebuild(name, metrics.ResultOf(err))
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		slog.Error("rebuild failed", logfields.Watcher(name), logfields.BuildID(id), logfields.Error(err))
		if s.hub != nil && id != "" {
			s.hub.Broadcast(server.ErrorPrefix + id)
		}
		return nil
	}
	if s.hub != nil {
		s.hub.Broadcast(id)
	}
	return nil
}

func (s *Supervisor) backendLoop(ctx context.Context, w *watcher.Watcher) error {
	for {
		var exited <-chan struct{}
		if g := s.backend.Current(); g != nil {
			exited = g.Done()
		}
		select {
		case <-ctx.Done():
			return nil
		case <-exited:
			g := s.backend.Current()
			if g != nil {
				slog.Warn("Backend process exited", logfields.PID(g.PID()), logfields.Error(g.Wait()))
			}
			s.backend.Release()
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			slog.Info("Change detected; restarting backend", logfields.Watcher(w.Name()), slog.Int("events", len(batch)))
			s.restartBackend(ctx)
		}
	}
}

// restartBackend waits for an in-flight frontend rebuild, resolves the new command,
// then replaces the running backend. A failed resolution keeps the old backend.
func (s *Supervisor) restartBackend(ctx context.Context) {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	cmd, err := s.BackendCommand(ctx)
	if err != nil {
		s.recorder().IncRebuild("backend", metrics.ResultFailed)
		slog.Error("backend rebuild failed", logfields.Error(err))
		return
	}
	s.recorder().IncRebuild("backend", metrics.ResultSuccess)
	if err := s.spawnBackend(cmd); err != nil {
		slog.Error("backend restart failed", logfields.Error(err))
		return
	}
	s.recorder().IncBackendRestart()
}

func (s *Supervisor) spawnBackend(cmd *exec.Cmd) error {
	g, err := s.backend.Replace(func() (*process.Guard, error) {
		return s.group.Start("backend", cmd)
	})
	if err != nil {
		return err
	}
	slog.Info("Backend started", logfields.PID(g.PID()), logfields.Command(cmd.Path))
	return nil
}

func (s *Supervisor) recorder() metrics.Recorder {
	if s.Recorder == nil {
		return metrics.NoopRecorder{}
	}
	return s.Recorder
}

func (s *Supervisor) stdout() io.Writer {
	if s.Stdout == nil {
		return os.Stdout
	}
	return s.Stdout
}
