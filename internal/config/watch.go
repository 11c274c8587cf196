package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/legaltrack/pjnsync/internal/logging"
)

// debounceWindow coalesces the editor write/rename event bursts a single
// save produces into one reload.
const debounceWindow = 500 * time.Millisecond

// Watch re-loads the config file on change and hands each valid result to
// onChange. Invalid intermediate states are logged and skipped, the previous
// configuration stays in effect. Blocks until the context is cancelled.
func Watch(ctx context.Context, path string, log *logging.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace files by rename,
	// which would silently drop a file-level watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	target := filepath.Base(path)

	var timer *time.Timer
	reloads := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceWindow, func() {
				select {
				case reloads <- struct{}{}:
				default:
				}
			})

		case <-reloads:
			if err := viper.ReadInConfig(); err != nil {
				log.Warn("config reload: read failed", "error", err.Error())
				continue
			}
			cfg, err := Load()
			if err != nil {
				log.Warn("config reload: validation failed, keeping previous", "error", err.Error())
				continue
			}
			log.Info("configuration reloaded", "path", path)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", "error", err.Error())
		}
	}
}
