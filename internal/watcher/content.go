package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ContentWatcher watches a content root with fsnotify, or by polling when
// fsnotify cannot be used, and emits debounced batches of entry events.
type ContentWatcher struct {
	fsWatcher      *fsnotify.Watcher
	pollWatcher    *PollingWatcher
	useFsnotify    bool
	debouncer      *Debouncer
	events         chan []FileEvent
	errors         chan error
	stopCh         chan struct{}
	rootPath       string
	opts           Options
	mu             sync.RWMutex
	stopped        bool
	droppedBatches atomic.Uint64
}

// NewContentWatcher creates a watcher. fsnotify is tried first.
func NewContentWatcher(opts Options) (*ContentWatcher, error) {
	opts = opts.WithDefaults()

	w := &ContentWatcher{
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		opts:      opts,
	}

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			w.fsWatcher = fsw
			w.useFsnotify = true
		} else {
			slog.Warn("fsnotify_unavailable", slog.String("error", err.Error()))
		}
	}
	if !w.useFsnotify {
		w.pollWatcher = NewPollingWatcher(opts.PollInterval)
	}

	return w, nil
}

// Start watches path until ctx is cancelled or Stop is called.
func (w *ContentWatcher) Start(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat watch root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch root %s is not a directory", absPath)
	}

	w.mu.Lock()
	w.rootPath = absPath
	w.mu.Unlock()

	go w.forwardDebouncedEvents(ctx)

	if w.useFsnotify {
		return w.startFsnotify(ctx)
	}
	return w.startPolling(ctx)
}

func (w *ContentWatcher) startFsnotify(ctx context.Context) error {
	if err := w.fsWatcher.Add(w.rootPath); err != nil {
		return fmt.Errorf("watch root: %w", err)
	}
	entries, err := os.ReadDir(w.rootPath)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() && isCollectionDir(e.Name()) {
			if err := w.fsWatcher.Add(filepath.Join(w.rootPath, e.Name())); err != nil {
				w.emitError(fmt.Errorf("watch collection %s: %w", e.Name(), err))
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleFsnotifyEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *ContentWatcher) startPolling(ctx context.Context) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case event, ok := <-w.pollWatcher.Events():
				if !ok {
					return
				}
				w.debouncer.Add(event)
			case err, ok := <-w.pollWatcher.Errors():
				if !ok {
					return
				}
				w.emitError(err)
			}
		}
	}()

	err := w.pollWatcher.Start(ctx, w.rootPath)
	if ctx.Err() != nil {
		_ = w.Stop()
	}
	return err
}

// handleFsnotifyEvent filters and converts one fsnotify event.
func (w *ContentWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(w.rootPath, event.Name)
	if err != nil {
		return
	}

	// New collection directories join the watch set.
	if event.Op&fsnotify.Create != 0 && isCollectionDir(rel) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fsWatcher.Add(event.Name); err != nil {
				w.emitError(fmt.Errorf("watch collection %s: %w", rel, err))
			}
			return
		}
	}

	if _, _, ok := EntryPath(rel); !ok {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}

	w.debouncer.Add(FileEvent{
		Path:      filepath.ToSlash(rel),
		Operation: op,
		Timestamp: time.Now(),
	})
}

func (w *ContentWatcher) forwardDebouncedEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case events, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			if len(events) > 0 {
				w.emitEvents(events)
			}
		}
	}
}

// emitEvents hands a batch to the consumer, dropping it if the buffer is full.
func (w *ContentWatcher) emitEvents(events []FileEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return
	}

	select {
	case w.events <- events:
	default:
		count := w.droppedBatches.Add(1)
		slog.Warn("watcher_buffer_full",
			slog.Int("batch_size", len(events)),
			slog.Uint64("total_dropped_batches", count))
	}
}

func (w *ContentWatcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// DroppedBatches returns the number of batches dropped due to buffer overflow.
func (w *ContentWatcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}

// Stop stops the watcher and releases resources. Safe to call multiple times.
func (w *ContentWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)

	w.debouncer.Stop()
	if w.fsWatcher != nil {
		_ = w.fsWatcher.Close()
	}
	if w.pollWatcher != nil {
		_ = w.pollWatcher.Stop()
	}

	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the channel of debounced batches.
func (w *ContentWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns the channel of non-fatal watcher errors.
func (w *ContentWatcher) Errors() <-chan error {
	return w.errors
}

// Mode returns "fsnotify" or "polling".
func (w *ContentWatcher) Mode() string {
	if w.useFsnotify {
		return "fsnotify"
	}
	return "polling"
}

// Running reports whether the watcher has not been stopped.
func (w *ContentWatcher) Running() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return !w.stopped
}

// RootPath returns the root path being watched.
func (w *ContentWatcher) RootPath() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.rootPath
}
