package store

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// DefaultReloadInterval is the minimum gap between two reloads in Watch.
const DefaultReloadInterval = 250 * time.Millisecond

// Watch reloads the workspace whenever another process rewrites the file and
// calls onChange after each reload that changed the content. It blocks until
// ctx is done. Reloads are spaced at least interval apart; bursts of events
// inside one interval collapse into a single reload.
func (r *FileRepository) Watch(ctx context.Context, interval time.Duration, onChange func(error)) error {
	if interval <= 0 {
		interval = DefaultReloadInterval
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// the file is replaced by rename, so watch its directory
	dir := filepath.Dir(r.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(r.path)
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if onChange != nil {
				onChange(fmt.Errorf("watch error: %w", err))
			}
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			drain(watcher.Events)
			changed, err := r.Reload()
			if onChange != nil && (changed || err != nil) {
				onChange(err)
			}
		}
	}
}

func drain(events <-chan fsnotify.Event) {
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
