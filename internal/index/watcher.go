package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/daybook/internal/journal"
)

// ReloadCallback is called after a watcher-driven resync of the index,
// e.g. when the journal file was edited outside the application.
type ReloadCallback func()

// Watch starts an fsnotify watcher on the journal file's directory and
// resyncs the index whenever the file changes, until ctx is cancelled.
// Events are debounced: editors and the store's own atomic rename tend to
// fire several events per logical write.
func Watch(ctx context.Context, db *DB, store *journal.Store, logger *slog.Logger, cb ReloadCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(store.Path())
	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("journal", store.Path()))

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(200 * time.Millisecond)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reloadCh:
			snap, loadErr := store.Load()
			if loadErr != nil {
				logger.Warn("watcher: reload failed", slog.String("error", loadErr.Error()))
				continue
			}
			if syncErr := Sync(db, snap, logger); syncErr != nil {
				logger.Warn("watcher: sync failed", slog.String("error", syncErr.Error()))
				continue
			}
			logger.Debug("watcher: resynced", slog.Int("entries", snap.Len()))
			if cb != nil {
				cb()
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			// Only the journal file matters; renames cover the store's
			// own atomic commit path.
			if ev.Name != store.Path() {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0 {
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
