package viewer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 100 * time.Millisecond

// Watcher re-processes the pipeline whenever the source image file changes
// on disk. Editors replace files rather than write in place, so the parent
// directory is watched and events are filtered to the target path.
type Watcher struct {
	path    string
	viewer  *Viewer
	logger  *slog.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher for the given image path. Run must be called
// to start it.
func NewWatcher(path string, v *Viewer, logger *slog.Logger) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("viewer: resolve watch path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("viewer: create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("viewer: watch directory: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{path: absPath, viewer: v, logger: logger, watcher: fsw}, nil
}

// Run blocks processing file events until ctx is cancelled. Write bursts are
// debounced so a partially written file is not decoded mid-save.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		if err := w.watcher.Close(); err != nil {
			w.logger.Error("Failed to close file watcher", "error", err)
		}
	}()

	var debounce *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			if err := w.reload(ctx); err != nil {
				w.logger.Error("Failed to reload source image", "path", w.path, "error", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("File watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) error {
	f, err := os.Open(w.path)
	if err != nil {
		return fmt.Errorf("viewer: open source image: %w", err)
	}
	defer f.Close()

	w.logger.Info("Source image changed, re-processing pipeline", "path", w.path)
	return w.viewer.LoadImage(ctx, f)
}
