package broker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rufus173/vanillachat/internal/vcconfig"
)

// configReloadDebounce is a debounce window absorbing the burst of
// rename/write events an editor's atomic save emits.
const configReloadDebounce = 500 * time.Millisecond

// WatchConfig watches path for changes and hot-reloads the sweep interval
// and notification toggle into srv without restarting any listener. Editors
// saving atomically replace the file via rename, which drops it from the
// watch list, so the watch is re-armed on rename/remove/create before the
// debounced reload fires.
func WatchConfig(path string, srv *Server) {
	if path == "" {
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("failed to create config watcher", "error", err)
		return
	}
	if err := watcher.Add(path); err != nil {
		slog.Debug("config file not present to watch yet", "path", path, "error", err)
	}

	var mu sync.Mutex
	var timer *time.Timer

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Rename|fsnotify.Remove|fsnotify.Create) != 0 {
					_ = watcher.Add(path)
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(configReloadDebounce, func() {
					reloadConfig(path, srv)
				})
				mu.Unlock()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("config watcher error", "error", err)
			}
		}
	}()
}

func reloadConfig(path string, srv *Server) {
	cfg, err := vcconfig.Load(path)
	if err != nil {
		slog.Warn("config reload failed", "error", err)
		return
	}
	srv.SetSweepInterval(time.Duration(cfg.SweepIntervalMS) * time.Millisecond)
	if cfg.NotifyEnabled {
		srv.SetNotifier(NewDBusNotifier())
	} else {
		srv.SetNotifier(NewNoopNotifier())
	}
	slog.Info("configuration reloaded", "sweep_ms", cfg.SweepIntervalMS, "notify_enabled", cfg.NotifyEnabled)
}
