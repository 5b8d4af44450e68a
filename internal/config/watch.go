package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file from path whenever it changes on disk,
// replacing cfg's fields in place under its own lock so components
// holding a *Config reference observe the new values without a
// restart — used for integration credential rotation, matching the
// teacher's fsnotify-based hot-reload.
func Watch(path string, cfg *Config) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				fresh, err := Load(path)
				if err != nil {
					slog.Warn("config reload failed", "path", path, "error", err)
					continue
				}
				cfg.ReplaceFrom(fresh)
				slog.Info("config reloaded", "path", path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "error", err)
			}
		}
	}()

	return watcher, nil
}
