package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const reloadDebounce = 150 * time.Millisecond

// Watch reloads path whenever it changes and hands the new config to fn.
// The parent directory is watched so editors that replace the file on save
// are still seen. Invalid files are logged and skipped. Watching stops when
// ctx is done.
func Watch(ctx context.Context, path string, fn func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	go func() {
		defer func() { _ = watcher.Close() }()

		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				// editors often write in several steps
				pending = time.After(reloadDebounce)

			case <-pending:
				pending = nil
				cfg, err := LoadFrom(target)
				if err != nil {
					log.Warn().Str("component", "config").Err(err).Msg("ignoring invalid config change")
					continue
				}
				log.Info().Str("component", "config").Str("path", target).Msg("config reloaded")
				fn(cfg)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Str("component", "config").Err(err).Msg("watch error")
			}
		}
	}()

	return nil
}
