package blade

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch invalidates compiled programs as their sources change on disk,
// until ctx is cancelled. It only works for engines built with New; an
// engine reading from an abstract filesystem has nothing to watch.
func (e *Engine) Watch(ctx context.Context) error {
	if e.dir == "" {
		return errors.New("blade: watch requires a directory-backed engine")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := watchTree(w, e.dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			e.handleFSEvent(w, ev)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			e.log.Warn("template watcher error", "err", err)
		}
	}
}

func (e *Engine) handleFSEvent(w *fsnotify.Watcher, ev fsnotify.Event) {
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := watchTree(w, ev.Name); err != nil {
				e.log.Warn("cannot watch new directory", "dir", ev.Name, "err", err)
			}
			return
		}
	}
	name, ok := e.logicalName(ev.Name)
	if !ok {
		return
	}
	// Any compiled program may depend on the changed file through
	// inheritance, includes or components; the fingerprint check catches
	// indirect dependents, so only the direct entry needs eager eviction.
	e.Invalidate(name)
	e.log.Debug("template source changed", "template", name, "op", ev.Op.String())
}

// logicalName maps an absolute source path back to the logical template
// name used as a cache key.
func (e *Engine) logicalName(abs string) (string, bool) {
	rel, err := filepath.Rel(e.dir, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	for _, ext := range ValidFileExtensions {
		if strings.HasSuffix(rel, ext) {
			return strings.TrimSuffix(rel, ext), true
		}
	}
	return "", false
}

func watchTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
