// Package watch reruns a job whenever .proto sources change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher debounces file system events below a set of directories and calls
// a job once things settle.
type Watcher struct {
	dirs     []string
	debounce time.Duration
	match    func(path string) bool
	logger   *slog.Logger
}

// New returns a watcher over dirs, recursively. Only .proto files trigger a
// run unless Match is changed.
func New(dirs []string, debounce time.Duration, logger *slog.Logger) *Watcher {
	return &Watcher{
		dirs:     dirs,
		debounce: debounce,
		match:    IsProto,
		logger:   logger,
	}
}

// Match replaces the filter deciding which paths trigger a run.
func (w *Watcher) Match(fn func(path string) bool) *Watcher {
	w.match = fn
	return w
}

// IsProto reports whether path names a .proto file.
func IsProto(path string) bool {
	return strings.HasSuffix(path, ".proto")
}

// Run calls job once, then again after every burst of matching changes, until
// ctx is done. Job errors are logged and do not stop the watch; ready, when
// non-nil, is closed once the watches are in place.
func (w *Watcher) Run(ctx context.Context, job func(context.Context) error, ready chan<- struct{}) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	for _, dir := range w.dirs {
		if err := w.addTree(fw, dir); err != nil {
			return err
		}
	}
	if ready != nil {
		close(ready)
	}

	w.runJob(ctx, job)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(fw, ev.Name); err != nil {
						w.logger.Warn("failed to watch new directory", "dir", ev.Name, "error", err)
					}
					continue
				}
			}
			if ev.Has(fsnotify.Chmod) || !w.match(ev.Name) {
				continue
			}
			w.logger.Debug("change detected", "path", ev.Name, "op", ev.Op.String())
			pending = true
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-timer.C:
			if pending {
				pending = false
				w.runJob(ctx, job)
			}
		}
	}
}

func (w *Watcher) runJob(ctx context.Context, job func(context.Context) error) {
	start := time.Now()
	if err := job(ctx); err != nil {
		w.logger.Error("run failed", "error", err)
		return
	}
	w.logger.Info("run finished", "duration", time.Since(start))
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		w.logger.Debug("watching", "dir", path)
		return nil
	})
}
