// Package watcher monitors the SQLite database file and triggers a store
// reopen when the file is deleted externally, so a wiped data directory heals
// without a restart.
package watcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher watches the parent directory of the database file, since fsnotify
// cannot watch a path that no longer exists.
type Watcher struct {
	dbPath     string
	parentPath string
	onDelete   func()
	watcher    *fsnotify.Watcher
	debounce   time.Duration
}

// New creates a Watcher for dbPath. onDelete runs after the file disappears
// and stays gone past a short debounce window.
func New(dbPath string, onDelete func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		dbPath:     filepath.Clean(dbPath),
		parentPath: filepath.Dir(dbPath),
		onDelete:   onDelete,
		watcher:    fsw,
		debounce:   100 * time.Millisecond,
	}, nil
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.watcher.Add(w.parentPath); err != nil {
		return err
	}
	defer w.watcher.Close()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			eventPath := filepath.Clean(event.Name)

			if eventPath == w.dbPath && event.Op&fsnotify.Remove != 0 {
				log.Warn().Str("path", w.dbPath).Msg("Database file deleted")
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(w.debounce, w.handleDeletion)
				continue
			}

			// Recreated within the debounce window, e.g. by the reopen
			// itself or an external restore. Nothing to do.
			if eventPath == w.dbPath && event.Op&fsnotify.Create != 0 {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) handleDeletion() {
	log.Info().Str("path", w.dbPath).Msg("Recreating store after database deletion")
	if w.onDelete != nil {
		w.onDelete()
	}
}
