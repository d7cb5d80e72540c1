package retrieval

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// DefaultDebounce is the default quiet period before a change event fires.
const DefaultDebounce = 2 * time.Second

// CorpusEvent signals that the corpus cache file changed on disk.
type CorpusEvent struct {
	// Path is the cache file that changed.
	Path string

	// Timestamp is when the change settled.
	Timestamp time.Time
}

// CorpusWatcher watches the corpus cache file and emits an event once
// writes settle. The cache is replaced by rename, so the watcher observes
// the parent directory and filters for the cache file name.
type CorpusWatcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	events   chan CorpusEvent
	stop     chan struct{}
	logger   *zap.Logger
}

// NewCorpusWatcher creates a watcher for the given cache file path.
func NewCorpusWatcher(path string, debounce time.Duration, logger *zap.Logger) (*CorpusWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: cache path is required", ErrInvalidConfig)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	return &CorpusWatcher{
		path:     path,
		debounce: debounce,
		watcher:  watcher,
		events:   make(chan CorpusEvent, 10),
		stop:     make(chan struct{}),
		logger:   logger,
	}, nil
}

// Start begins watching for cache changes.
//
// Events are sent to the Events() channel. Call Stop() to clean up.
func (w *CorpusWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating watch directory: %w", err)
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	go w.processEvents(ctx)

	w.logger.Info("corpus watcher started",
		zap.String("path", w.path),
		zap.Duration("debounce", w.debounce),
	)
	return nil
}

// Stop stops the watcher and cleans up resources.
func (w *CorpusWatcher) Stop() {
	select {
	case <-w.stop:
		// Already stopped
		return
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}
}

// Events returns the channel for receiving corpus change events.
func (w *CorpusWatcher) Events() <-chan CorpusEvent {
	return w.events
}

// processEvents filters filesystem events and debounces them so a burst
// of writes produces a single corpus event after the quiet period.
func (w *CorpusWatcher) processEvents(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.matches(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			evt := CorpusEvent{Path: w.path, Timestamp: time.Now()}
			select {
			case w.events <- evt:
			default:
				// Channel full, skip event
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("corpus watcher error", zap.Error(err))
		}
	}
}

// matches reports whether the event is a content change of the cache file.
func (w *CorpusWatcher) matches(event fsnotify.Event) bool {
	if filepath.Base(event.Name) != filepath.Base(w.path) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}
