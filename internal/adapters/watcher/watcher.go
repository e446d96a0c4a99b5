// Package watcher reloads the configuration file when it changes on disk.
package watcher

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
	"go.trai.ch/concord/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ConfigWatcher = (*ConfigWatcher)(nil)

// DefaultDebounceWindow absorbs the write, chmod and rename bursts editors produce on save.
const DefaultDebounceWindow = 200 * time.Millisecond

// ConfigWatcher watches a single file through its parent directory so that
// atomic replace-by-rename saves are observed. A change is reported only
// when the settled content differs from the last reported content.
type ConfigWatcher struct {
	fsWatcher *fsnotify.Watcher
	logger    ports.Logger
	debouncer *Debouncer
	changes   chan string

	mu     sync.Mutex
	path   string
	digest uint64
	closed bool
}

// NewConfigWatcher creates a watcher that settles changes over window.
func NewConfigWatcher(logger ports.Logger, window time.Duration) (*ConfigWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, zerr.Wrap(err, "create file watcher")
	}
	w := &ConfigWatcher{
		fsWatcher: fsw,
		logger:    logger,
		changes:   make(chan string, 1),
	}
	w.debouncer = NewDebouncer(window, w.settle)
	return w, nil
}

// Start begins watching path until ctx is cancelled or Stop is called.
func (w *ConfigWatcher) Start(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "resolve watched path"), "path", path)
	}

	w.mu.Lock()
	w.path = abs
	w.digest, _ = digestFile(abs)
	w.mu.Unlock()

	if err := w.fsWatcher.Add(filepath.Dir(abs)); err != nil {
		return zerr.With(zerr.Wrap(err, "watch config directory"), "path", abs)
	}

	go w.processEvents(ctx, abs)
	return nil
}

// Stop stops the watcher and releases all resources.
func (w *ConfigWatcher) Stop() error {
	w.debouncer.Stop()
	return w.fsWatcher.Close()
}

// Changes yields the watched path each time its content settles on a new value.
func (w *ConfigWatcher) Changes() iter.Seq[string] {
	return func(yield func(string) bool) {
		for path := range w.changes {
			if !yield(path) {
				return
			}
		}
	}
}

func (w *ConfigWatcher) processEvents(ctx context.Context, path string) {
	defer w.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.debouncer.Trigger()
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn(fmt.Sprintf("config watcher: %v", err))
		}
	}
}

// settle runs once a burst of events has gone quiet.
func (w *ConfigWatcher) settle() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	sum, err := digestFile(w.path)
	if err != nil {
		// The file is mid-replace or gone; the next event will settle again.
		return
	}
	if sum == w.digest {
		return
	}
	w.digest = sum

	select {
	case w.changes <- w.path:
	default:
		// A reload is already pending and will read the latest content.
	}
}

func (w *ConfigWatcher) shutdown() {
	w.debouncer.Stop()
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.changes)
	}
}

func digestFile(path string) (uint64, error) {
	// #nosec G304 -- the watched path is chosen by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(data), nil
}
