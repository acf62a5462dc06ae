// Package watch reruns a sweep whenever its config file changes.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nvandessel/echonull/internal/logging"
)

// DefaultDebounce is how long the file must be quiet before a rerun.
const DefaultDebounce = 500 * time.Millisecond

// Watcher calls OnChange once the watched file has settled after a change.
// It watches the file's directory rather than the file, so editors that
// save by rename are seen too.
type Watcher struct {
	Path     string
	Debounce time.Duration
	Logger   *slog.Logger

	// OnChange runs on the watcher goroutine. Its error is logged and the
	// watcher keeps going, so a bad edit does not end the session.
	OnChange func(ctx context.Context) error

	mu      sync.Mutex
	pending time.Time
	reruns  int
}

// Reruns returns how many times OnChange has been called.
func (w *Watcher) Reruns() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reruns
}

// Run blocks until ctx is cancelled or the underlying watcher fails.
// ready, if non-nil, is closed once the directory is being watched.
func (w *Watcher) Run(ctx context.Context, ready chan<- struct{}) error {
	if w.OnChange == nil {
		return fmt.Errorf("watch: OnChange is required")
	}
	log := logging.OrDiscard(w.Logger)

	target, err := filepath.Abs(w.Path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", w.Path, err)
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(target), err)
	}
	log.Info("watching config", "path", target)
	if ready != nil {
		close(ready)
	}

	tick := time.NewTicker(max(debounce/5, 10*time.Millisecond))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			log.Debug("config changed", "op", ev.Op.String())
			w.mu.Lock()
			w.pending = time.Now()
			w.mu.Unlock()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "error", err)

		case now := <-tick.C:
			w.mu.Lock()
			due := !w.pending.IsZero() && now.Sub(w.pending) >= debounce
			if due {
				w.pending = time.Time{}
				w.reruns++
			}
			w.mu.Unlock()

			if due {
				if err := w.OnChange(ctx); err != nil {
					log.Error("rerun failed", "error", err)
				}
			}
		}
	}
}
