// Package watcher turns raw filesystem notifications into debounced batches.
//
// A Watcher delivers at most one batch per quiescence window: every relevant
// event restarts the window, and the batch is sent once the window elapses
// without further events. Batches of one watcher are delivered in order.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	ferrors "git.home.luguber.info/inful/wasmrun/internal/foundation/errors"
	"git.home.luguber.info/inful/wasmrun/internal/logfields"
)

// DefaultWindow is the quiescence window used when Options.Window is zero.
const DefaultWindow = 2 * time.Second

// Options configure a Watcher.
type Options struct {
	Name   string // used in logs, e.g. "frontend"
	Window time.Duration
	Filter *Filter
	Source Source // nil creates an fsnotify source
}

// Watcher debounces a Source.
type Watcher struct {
	name   string
	window time.Duration
	filter *Filter
	src    Source

	batches chan []Event

	mu    sync.Mutex
	roots []string
	dirs  map[string]bool // directories watched as part of a recursive root
	// Files are watched through their parent directory so that a rename-over
	// save keeps the watch. fileDirs are parents watched only for that purpose.
	files    map[string]bool
	fileDirs map[string]bool

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a watcher. Failing to create the OS watcher is a watch error.
func New(opts Options) (*Watcher, error) {
	src := opts.Source
	if src == nil {
		s, err := NewFSNotifySource()
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryWatch, "failed to create file watcher").
				WithContext("watcher", opts.Name).Fatal().Build()
		}
		src = s
	}
	window := opts.Window
	if window <= 0 {
		window = DefaultWindow
	}
	return &Watcher{
		name:    opts.Name,
		window:  window,
		filter:  opts.Filter,
		src:     src,
		batches:  make(chan []Event),
		dirs:     map[string]bool{},
		files:    map[string]bool{},
		fileDirs: map[string]bool{},
		closed:   make(chan struct{}),
	}, nil
}

// Name returns the watcher's log name.
func (w *Watcher) Name() string { return w.name }

// Window returns the quiescence window.
func (w *Watcher) Window() time.Duration { return w.window }

// Add registers a file or, recursively, a directory. Missing paths are skipped so that
// optional inputs like static/ can be registered unconditionally. A file is watched
// through its directory, and only events for that file are reported unless the
// directory is also watched on its own.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("Watch path does not exist; skipping", logfields.Watcher(w.name), logfields.Path(abs))
		return nil
	}
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryWatch, "failed to stat watch path").
			WithContext("path", abs).Build()
	}
	if w.filter.Ignored(abs, info.IsDir()) {
		return nil
	}

	w.mu.Lock()
	w.roots = append(w.roots, abs)
	w.mu.Unlock()

	if !info.IsDir() {
		return w.addFile(abs)
	}
	return w.addDirsRecursive(abs)
}

// Roots returns the registered paths.
func (w *Watcher) Roots() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

func (w *Watcher) addFile(path string) error {
	dir := filepath.Dir(path)
	w.mu.Lock()
	w.files[path] = true
	watched := w.dirs[dir] || w.fileDirs[dir]
	w.fileDirs[dir] = true
	w.mu.Unlock()
	if watched {
		return nil
	}
	if err := w.src.Add(dir); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryWatch, "failed to watch path").
			WithContext("path", path).Build()
	}
	return nil
}

// tracked reports whether an event for path belongs to a registered root.
func (w *Watcher) tracked(path string) bool {
	dir := filepath.Dir(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dirs[dir] || !w.fileDirs[dir] {
		return true
	}
	return w.files[path]
}

func (w *Watcher) addDirsRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.filter.Ignored(path, true) {
			return filepath.SkipDir
		}
		if err := w.src.Add(path); err != nil {
			slog.Warn("watch add failed", logfields.Watcher(w.name), logfields.Path(path), logfields.Error(err))
			return nil
		}
		w.mu.Lock()
		w.dirs[path] = true
		w.mu.Unlock()
		return nil
	})
}

// Events delivers coalesced batches. The channel is closed when Run returns.
func (w *Watcher) Events() <-chan []Event {
	return w.batches
}

// Close stops the watcher; Run returns shortly after.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closed)
		err = w.src.Close()
	})
	return err
}

// Run pumps the source until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.batches)

	var (
		pending batch
		ready   []Event
		timer   *time.Timer
		fire    <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
	}
	defer stopTimer()

	srcEvents := w.src.Events()
	srcErrors := w.src.Errors()

	for {
		var out chan []Event
		if len(ready) > 0 {
			out = w.batches
		}

		select {
		case <-ctx.Done():
			return nil
		case <-w.closed:
			return nil

		case ev, ok := <-srcEvents:
			if !ok {
				return nil
			}
			if !w.record(&pending, ev) {
				continue
			}
			stopTimer()
			timer = time.NewTimer(w.window)
			fire = timer.C

		case err, ok := <-srcErrors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				slog.Warn("Watcher event queue overflowed; requesting rescan", logfields.Watcher(w.name))
				for _, root := range w.Roots() {
					pending.add(Event{Kind: Rescan, Path: root})
				}
				stopTimer()
				timer = time.NewTimer(w.window)
				fire = timer.C
				continue
			}
			slog.Warn("watcher error", logfields.Watcher(w.name), logfields.Error(err))

		case <-fire:
			fire = nil
			ready = append(ready, pending.take()...)
			slog.Debug("Change batch ready", logfields.Watcher(w.name), slog.Int("events", len(ready)))

		case out <- ready:
			ready = nil
		}
	}
}

// record converts and filters ev, returning false when it is irrelevant.
func (w *Watcher) record(b *batch, ev fsnotify.Event) bool {
	isDir := false
	if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			isDir = true
		}
	}
	if w.filter.Ignored(ev.Name, isDir) || !w.tracked(ev.Name) {
		return false
	}

	switch {
	case ev.Has(fsnotify.Create):
		if isDir {
			_ = w.addDirsRecursive(ev.Name)
		}
		b.add(Event{Kind: Created, Path: ev.Name})
	case ev.Has(fsnotify.Write):
		b.add(Event{Kind: Modified, Path: ev.Name})
	case ev.Has(fsnotify.Remove):
		b.add(Event{Kind: Removed, Path: ev.Name})
	case ev.Has(fsnotify.Rename):
		b.add(Event{Kind: Renamed, From: ev.Name})
	default:
		// chmod only
		return false
	}
	slog.Debug("File change detected", logfields.Watcher(w.name), logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	return true
}
