package collection

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/dagaz/internal/storage"
)

// EventCallback is called after a watcher-driven collection change.
// kind is one of "synced", "removed".
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on the decks root and processes file
// change events until ctx is cancelled. It calls cb (if non-nil) after
// each successful collection mutation.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a reconciliation pass that removes notes
// whose deck files no longer exist on disk.
func Watch(ctx context.Context, db Store, store storage.Provider, decksRoot string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, decksRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", decksRoot))

	// reconcileTimer debounces rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcileAfterRename(db, store, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// New directories: start watching them and sync any deck
			// files they already contain.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					syncNewDir(db, store, decksRoot, absPath, logger, cb)
					continue
				}
			}

			// Only deck files from here on.
			if !storage.IsDeckFile(absPath) {
				continue
			}

			rel, relErr := filepath.Rel(decksRoot, absPath)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(rel)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				if syncErr := syncFile(db, rel, data); syncErr != nil {
					logger.Warn("watcher: apply failed", slog.String("path", rel), slog.String("error", syncErr.Error()))
					continue
				}
				logger.Debug("watcher: applied", slog.String("path", rel))
				if cb != nil {
					cb("synced", rel)
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.RemoveSource(rel); delErr != nil {
					logger.Warn("watcher: remove failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: removed", slog.String("path", rel))
				if cb != nil {
					cb("removed", rel)
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only; the new path
				// arrives as a separate Create event if it stays inside a
				// watched dir. Remove the old source now and schedule a
				// reconciliation pass for stragglers.
				if delErr := db.RemoveSource(rel); delErr != nil {
					logger.Warn("watcher: rename remove failed", slog.String("path", rel), slog.String("error", delErr.Error()))
				} else {
					logger.Debug("watcher: rename old removed", slog.String("path", rel))
					if cb != nil {
						cb("removed", rel)
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcileAfterRename does a lightweight sync using batch lookups:
// removes notes whose deck file is gone and applies on-disk files whose
// checksum differs from the stored one.
func reconcileAfterRename(db Store, store storage.Provider, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.SourceChecksums()
	if err != nil {
		logger.Warn("reconcile: source checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := store.List("")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if delErr := db.RemoveSource(p); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("path", p))
				if cb != nil {
					cb("removed", p)
				}
			}
		}
	}

	for p, cs := range disk {
		if checksums[p] == cs {
			continue
		}
		data, readErr := store.Read(p)
		if readErr != nil {
			continue
		}
		if syncErr := syncFile(db, p, data); syncErr == nil {
			logger.Debug("reconcile: applied", slog.String("path", p))
			if cb != nil {
				cb("synced", p)
			}
		}
	}
}

// syncNewDir applies any deck files found in a newly created directory.
func syncNewDir(db Store, store storage.Provider, decksRoot, dirPath string, logger *slog.Logger, cb EventCallback) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !storage.IsDeckFile(path) {
			return nil
		}
		rel, relErr := filepath.Rel(decksRoot, path)
		if relErr != nil {
			return nil
		}
		data, readErr := store.Read(rel)
		if readErr != nil {
			return nil
		}
		if syncErr := syncFile(db, rel, data); syncErr == nil {
			logger.Debug("watcher: applied from new dir", slog.String("path", rel))
			if cb != nil {
				cb("synced", rel)
			}
		}
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
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
