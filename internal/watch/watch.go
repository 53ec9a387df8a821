// Package watch reports changes to a fixed set of tags files.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 500 * time.Millisecond

// Handler receives the tags files whose content changed, sorted.
type Handler func(ctx context.Context, changed []string)

// Watcher observes the directories holding the tags files, since generators
// commonly replace the file rather than write it in place.
type Watcher struct {
	fs       *fsnotify.Watcher
	files    map[string]struct{}
	hashes   map[string]uint64
	debounce time.Duration
	handler  Handler
	logger   *slog.Logger
}

// New creates a watcher for paths. A zero debounce selects DefaultDebounce
// and a nil logger selects slog.Default().
func New(paths []string, debounce time.Duration, handler Handler, logger *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fs:       fsw,
		files:    make(map[string]struct{}, len(paths)),
		hashes:   make(map[string]uint64, len(paths)),
		debounce: debounce,
		handler:  handler,
		logger:   logger,
	}

	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		w.files[abs] = struct{}{}
		if sum, ok := fingerprint(abs); ok {
			w.hashes[abs] = sum
		}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	return w, nil
}

// Run delivers changes until ctx is done, then releases the underlying
// watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	w.logger.Info("watch.start", "files", len(w.files), "debounce", w.debounce)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			name := filepath.Clean(ev.Name)
			if _, tracked := w.files[name]; !tracked {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			pending[name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch.error", "error", err)

		case <-fire:
			fire = nil
			changed := w.settle(pending)
			pending = make(map[string]struct{})
			if len(changed) > 0 {
				w.logger.Debug("watch.changed", "files", changed)
				w.handler(ctx, changed)
			}
		}
	}
}

// settle returns the pending files whose content differs from the last
// fingerprint seen.
func (w *Watcher) settle(pending map[string]struct{}) []string {
	var changed []string
	for name := range pending {
		sum, ok := fingerprint(name)
		if !ok {
			continue
		}
		if prev, seen := w.hashes[name]; seen && prev == sum {
			continue
		}
		w.hashes[name] = sum
		changed = append(changed, name)
	}
	sort.Strings(changed)
	return changed
}

func fingerprint(path string) (uint64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	return xxhash.Sum64(data), true
}
