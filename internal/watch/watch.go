// Package watch requests an immediate guardian cycle when the auth file
// changes, so a deleted or truncated credential file is caught without
// waiting for the next poll interval.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceDefault = 500 * time.Millisecond

// FileWatcher watches one file through its parent directory, so the file
// may be created, replaced or removed while watched.
type FileWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	trigger  chan struct{}
	debounce time.Duration
	logger   *slog.Logger
}

// New starts watching the directory that contains path.
func New(path string, logger *slog.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	clean := filepath.Clean(path)
	if err := w.Add(filepath.Dir(clean)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", filepath.Dir(clean), err)
	}
	return &FileWatcher{
		path:     clean,
		watcher:  w,
		trigger:  make(chan struct{}, 1),
		debounce: debounceDefault,
		logger:   logger,
	}, nil
}

// Trigger delivers one signal per burst of changes to the watched file.
func (fw *FileWatcher) Trigger() <-chan struct{} {
	return fw.trigger
}

// Run forwards debounced change events until ctx is cancelled.
func (fw *FileWatcher) Run(ctx context.Context) error {
	defer fw.watcher.Close()

	timer := time.NewTimer(fw.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			select {
			case fw.trigger <- struct{}{}:
			default:
				// A cycle is already pending.
			}

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			fw.logger.Debug("auth file changed", "path", fw.path, "op", event.Op.String())
			timer.Reset(fw.debounce)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return nil
			}
			fw.logger.Warn("file watcher error", "error", err)
		}
	}
}
