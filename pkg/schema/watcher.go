package schema

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Registry whenever descriptor files under its directory
// change. Reload failures keep the previous module set; individual file
// errors are logged and skipped, matching the loader's aggregation policy.
type Watcher struct {
	dir      string
	registry *Registry
	logger   *slog.Logger
	debounce time.Duration
	fsw      *fsnotify.Watcher
	done     chan struct{}
}

// NewWatcher wires a watcher for dir feeding registry. The logger may be
// nil, in which case slog.Default is used.
func NewWatcher(dir string, registry *Registry, logger *slog.Logger) (*Watcher, error) {
	if registry == nil {
		return nil, fmt.Errorf("schema: watcher requires a registry")
	}
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("schema: create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("schema: watch %s: %w", dir, err)
	}
	return &Watcher{
		dir:      dir,
		registry: registry,
		logger:   logger,
		debounce: 200 * time.Millisecond,
		fsw:      fsw,
		done:     make(chan struct{}),
	}, nil
}

// Run processes file events until ctx is cancelled. Bursts of events are
// collapsed into a single reload per debounce window.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.done)
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if !isDescriptor(ev.Name) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("schema watcher error", "dir", w.dir, "err", err)
		case <-fire:
			timer = nil
			fire = nil
			w.reload()
		}
	}
}

// Close stops the underlying filesystem watcher. Run returns once the
// event stream is drained.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}

func (w *Watcher) reload() {
	modules, errs := LoadDir(w.dir)
	for _, err := range errs {
		w.logger.Warn("schema reload", "dir", w.dir, "err", err)
	}
	if len(modules) == 0 && len(errs) > 0 {
		w.logger.Warn("schema reload produced no modules, keeping previous set", "dir", w.dir)
		return
	}
	w.registry.Replace(modules)
	w.logger.Info("schema registry reloaded", "dir", w.dir, "modules", len(modules))
}
