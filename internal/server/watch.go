package server

import (
	"context"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/voxhost/voxhost/internal/manager"
)

// watchEngines notifies UI clients when engine binaries appear or disappear
// under the resources directory, so the engine list can refresh without
// polling. Best effort: a missing resources dir just means nothing to
// watch yet.
func watchEngines(ctx context.Context, resourcesDir string, notify manager.Notifier) {
	enginesDir := filepath.Join(resourcesDir, "engines")
	if _, err := os.Stat(enginesDir); err != nil {
		log.Debug("No engines directory to watch", "dir", enginesDir)
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("Engine watcher unavailable", "error", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(enginesDir); err != nil {
		log.Warn("Could not watch engines directory", "dir", enginesDir, "error", err)
		return
	}
	log.Debug("Watching engines directory", "dir", enginesDir)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			log.Info("Engine installation changed", "path", event.Name, "op", event.Op.String())
			notify.Notify(manager.Notification{
				Level:   manager.LevelInfo,
				Title:   "Engines changed",
				Message: "The set of installed voice engines changed.",
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn("Engine watcher error", "error", err)
		}
	}
}
