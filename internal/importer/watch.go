package importer

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch re-imports .md files under dir as they are created or written,
// until ctx is cancelled. New directories are added to the watch list.
// Removing or renaming a file never deletes its card.
func (im *Importer) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, dir); err != nil {
		return err
	}
	im.logger.Info("watcher: started", slog.String("root", dir))

	for {
		select {
		case <-ctx.Done():
			im.logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			im.handle(ctx, w, ev)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			im.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (im *Importer) handle(ctx context.Context, w *fsnotify.Watcher, ev fsnotify.Event) {
	path := ev.Name

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") {
				return
			}
			if err := addDirsRecursive(w, path); err != nil {
				im.logger.Warn("watcher: add new dir failed",
					slog.String("path", path),
					slog.String("error", err.Error()))
				return
			}
			if _, err := im.ImportDir(ctx, path); err != nil {
				im.logger.Warn("watcher: import new dir failed",
					slog.String("path", path),
					slog.String("error", err.Error()))
			}
			return
		}
	}

	if !isMarkdown(path) {
		return
	}

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		outcome, err := im.ImportFile(ctx, path)
		if err != nil {
			im.logger.Warn("watcher: import failed", slog.String("path", path), slog.String("error", err.Error()))
			return
		}
		im.logger.Debug("watcher: imported", slog.String("path", path), slog.String("outcome", string(outcome)))

	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		im.forget(path)
		im.logger.Debug("watcher: file gone, card kept", slog.String("path", path))
	}
}

// forget drops the checksum so a file restored at path is imported again.
func (im *Importer) forget(path string) {
	im.mu.Lock()
	defer im.mu.Unlock()
	delete(im.sums, path)
}

// addDirsRecursive adds root and its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
