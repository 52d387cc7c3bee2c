package search

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/spimidx/internal/ilog"
)

// WatchForReload watches indexDir's parent for the atomic rename that
// publishes a fresh build (merge.Run's publish step renames a ".building"
// directory onto indexDir) and calls Reload whenever a Create or Write
// event there names indexDir. Only the parent is watched, so changes to
// files inside indexDir do not trigger a reload. It runs until ctx is
// cancelled.
func (e *Engine) WatchForReload(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	parent := filepath.Dir(e.indexDir)
	if err := watcher.Add(parent); err != nil {
		watcher.Close()
		return err
	}

	metaPath := filepath.Join(e.indexDir, "index.meta.json")

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != e.indexDir && event.Name != metaPath {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				if err := e.Reload(); err != nil {
					ilog.Logf("search: reload from %s failed: %v", e.indexDir, err)
					continue
				}
				ilog.Logf("search: reloaded index from %s", e.indexDir)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				ilog.Logf("search: watcher error: %v", err)
			}
		}
	}()

	return nil
}
