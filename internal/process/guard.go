package process

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/wasmrun/internal/foundation/errors"
	"git.home.luguber.info/inful/wasmrun/internal/logfields"
)

// ErrNotStarted is returned when a guard is asked to wait on a child it never started.
var ErrNotStarted = errors.New("process not started")

// Guard owns one child process. Close kills and reaps it; calling Close more
// than once, or after the child exited on its own, is a no-op.
type Guard struct {
	Name string

	cmd     *exec.Cmd
	started time.Time
	done    chan struct{}

	mu      sync.Mutex
	waitErr error
	closed  bool
	group   *Group
}

// Start starts cmd and returns the guard owning it.
func Start(name string, cmd *exec.Cmd) (*Guard, error) {
	if err := cmd.Start(); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryProcess, "could not start "+name).
			WithContext("command", commandLine(cmd)).
			Build()
	}
	g := &Guard{Name: name, cmd: cmd, started: time.Now(), done: make(chan struct{})}
	go g.reap()
	slog.Debug("Process started", slog.String("name", name), logfields.PID(g.PID()), logfields.Command(commandLine(cmd)))
	return g, nil
}

func (g *Guard) reap() {
	err := g.cmd.Wait()
	g.mu.Lock()
	g.waitErr = err
	g.mu.Unlock()
	close(g.done)
}

// PID returns the child's process id, or -1 if it never started.
func (g *Guard) PID() int {
	if g == nil || g.cmd == nil || g.cmd.Process == nil {
		return -1
	}
	return g.cmd.Process.Pid
}

// Done is closed once the child has been reaped.
func (g *Guard) Done() <-chan struct{} {
	return g.done
}

// Wait blocks until the child exits and returns the raw exec error.
func (g *Guard) Wait() error {
	if g == nil || g.done == nil {
		return ErrNotStarted
	}
	<-g.done
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.waitErr
}

// WaitSuccess waits for the child and reports an unsuccessful exit as a classified
// process error that distinguishes an exit code from a signal.
func (g *Guard) WaitSuccess() error {
	err := g.Wait()
	if err == nil {
		return nil
	}
	if status, ok := StatusOf(err); ok {
		return ferrors.WrapError(err, ferrors.CategoryProcess, fmt.Sprintf("%s: %s", g.Name, status)).
			WithContext("exit_code", status.Code).
			Build()
	}
	return ferrors.WrapError(err, ferrors.CategoryProcess, g.Name+" failed").Build()
}

// Close kills the child if it is still running and waits for it to be reaped.
func (g *Guard) Close() error {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	group := g.group
	g.mu.Unlock()

	select {
	case <-g.done:
	default:
		if err := g.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			slog.Warn("Failed to kill process", slog.String("name", g.Name), logfields.PID(g.PID()), logfields.Error(err))
		}
		<-g.done
		slog.Debug("Process killed", slog.String("name", g.Name), logfields.PID(g.PID()),
			logfields.DurationMS(float64(time.Since(g.started).Milliseconds())))
	}
	if group != nil {
		group.forget(g)
	}
	return nil
}

func commandLine(cmd *exec.Cmd) string {
	return strings.Join(cmd.Args, " ")
}
