package inbox

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settle is how long a file must stay quiet before it is ingested.
const settle = 200 * time.Millisecond

// Watch processes inbox files as they appear until ctx is cancelled.
// Writes are debounced so a file is read once its writer has finished.
// Files already present when the watch starts are processed too.
// New subdirectories are watched as they are created; hidden ones are not.
func (in *Inbox) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := in.dir.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	in.logger.Info("inbox: watching", slog.String("root", root))

	pending := make(map[string]struct{})
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	schedule := func(rel string) {
		pending[rel] = struct{}{}
		if flushTimer == nil {
			flushTimer = time.NewTimer(settle)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(settle)
		}
	}

	// Files dropped before the watches were in place.
	items, err := in.dir.List()
	if err != nil {
		return err
	}
	for _, it := range items {
		schedule(it.Path)
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			in.logger.Info("inbox: stopped")
			return nil

		case <-flushCh:
			for rel := range pending {
				delete(pending, rel)
				if _, err := in.Process(ctx, rel); err != nil {
					in.logger.Warn("inbox: ingest failed", slog.String("path", rel), slog.String("error", err.Error()))
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
				if hidden(ev.Name) {
					continue
				}
				if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
					in.logger.Warn("inbox: add new dir failed",
						slog.String("path", ev.Name),
						slog.String("error", addErr.Error()))
					continue
				}
				// Files may have landed before the watch was in place.
				_ = filepath.WalkDir(ev.Name, func(p string, d fs.DirEntry, err error) error {
					if err == nil && !d.IsDir() && in.dir.Accepts(p) {
						if rel, relErr := in.dir.Rel(p); relErr == nil {
							schedule(rel)
						}
					}
					return nil
				})
				continue
			}

			if !in.dir.Accepts(ev.Name) {
				continue
			}
			rel, relErr := in.dir.Rel(ev.Name)
			if relErr != nil || strings.HasPrefix(rel, FailedDir+string(os.PathSeparator)) {
				continue
			}
			schedule(rel)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			in.logger.Error("inbox: watch error", slog.String("error", watchErr.Error()))
		}
	}
}

func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
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
		if path != root && hidden(path) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
