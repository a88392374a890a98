// Package watcher re-analyzes Python files as they change on disk.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/scanner"
)

// DefaultDebounce coalesces rapid editor save bursts.
const DefaultDebounce = 300 * time.Millisecond

// ChangeHandler is invoked with the absolute path of a changed Python file.
type ChangeHandler func(ctx context.Context, absPath string)

// Watcher watches a project tree recursively.
type Watcher struct {
	root     string
	debounce time.Duration
	handler  ChangeHandler
	logger   *slog.Logger
}

// New creates a watcher over root.
func New(root string, debounce time.Duration, handler ChangeHandler, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{root: root, debounce: debounce, handler: handler, logger: logger}
}

// Run watches until ctx is cancelled. New directories are added to the
// watch set as they appear.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := w.addRecursive(fsw, w.root); err != nil {
		return err
	}

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					// Newly created directories join the watch set.
					_ = w.addRecursive(fsw, event.Name)
					continue
				}
			}
			if !scanner.IsPythonFile(event.Name) {
				continue
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) {
				pending[event.Name] = struct{}{}
				timer.Reset(w.debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch_error", slog.String("error", err.Error()))

		case <-timer.C:
			for path := range pending {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.handler(ctx, path)
			}
			pending = make(map[string]struct{})
		}
	}
}

// addRecursive watches a directory and all its subdirectories, skipping
// hidden directories, __pycache__, node_modules and venv. Unlike the scanner
// it does not skip build or dist and does not consult .gitignore.
func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (name[0] == '.' || name == "__pycache__" || name == "node_modules" || name == "venv") {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			w.logger.Warn("watch_add_failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		return nil
	})
}
