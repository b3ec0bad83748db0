package prompt

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads src whenever its backing file is written. It blocks
// until ctx is done. A Source using the embedded default has nothing to
// watch, so Watch returns immediately.
//
// The watch is placed on the containing directory rather than the file
// itself: editors that save by rename-and-replace would otherwise
// silently drop the watch.
func Watch(ctx context.Context, src *Source, log *zap.Logger) error {
	if src.Path() == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(src.Path())
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	base := filepath.Base(src.Path())

	log.Info("watching prompt file", zap.String("path", src.Path()))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := src.Reload(); err != nil {
				log.Warn("prompt reload failed", zap.String("path", src.Path()), zap.Error(err))
				continue
			}
			log.Info("prompt reloaded", zap.String("path", src.Path()))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("prompt watcher error", zap.Error(err))
		}
	}
}
