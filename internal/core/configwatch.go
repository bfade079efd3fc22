package core

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// configReloadDelay coalesces the burst of events an editor or an atomic
// rename produces into one reload.
const configReloadDelay = 200 * time.Millisecond

// ConfigWatcher reloads a ConfigStore when its file changes on disk.
type ConfigWatcher struct {
	store    ConfigStore
	logger   *slog.Logger
	onReload func()
}

// NewConfigWatcher creates a watcher for store. onReload, if set, runs after
// every successful reload.
func NewConfigWatcher(store ConfigStore, logger *slog.Logger, onReload func()) *ConfigWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigWatcher{store: store, logger: logger, onReload: onReload}
}

// Run watches until ctx is cancelled. The directory is watched rather than
// the file so atomic replacements are seen.
func (w *ConfigWatcher) Run(ctx context.Context) error {
	path := w.store.Path()
	if path == "" {
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	target := filepath.Clean(path)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				pending = time.After(configReloadDelay)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", "error", err)
		case <-pending:
			pending = nil
			if err := w.store.Reload(); err != nil {
				w.logger.Warn("config reload failed", "path", path, "error", err)
				continue
			}
			if w.onReload != nil {
				w.onReload()
			}
		}
	}
}
