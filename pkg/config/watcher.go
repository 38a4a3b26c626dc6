package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultReloadDebounce = 250 * time.Millisecond

// Watcher reloads a Store whenever its file changes on disk.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	debounce time.Duration
}

// NewWatcher watches the directory holding the store's file; editors that
// save by rename would otherwise drop a watch placed on the file itself.
func NewWatcher(store *Store) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := fw.Add(filepath.Dir(store.Path())); err != nil {
		_ = fw.Close()

		return nil, fmt.Errorf("failed to watch '%s': %w", store.Path(), err)
	}

	return &Watcher{
		store:    store,
		watcher:  fw,
		debounce: defaultReloadDebounce,
	}, nil
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	target := filepath.Clean(w.store.Path())

	var (
		timer  *time.Timer
		reload <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}

			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != target {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}

			reload = timer.C
		case <-reload:
			reload = nil

			if err := w.store.Reload(); err != nil {
				logger.WithError(err).Warn("Ignoring unreadable configuration change")
				continue
			}

			logger.WithField("path", target).Info("Configuration reloaded")
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}

			logger.WithError(err).Warn("Config watcher error")
		}
	}
}
