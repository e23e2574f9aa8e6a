package autosave

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"manuscript/internal/logging"
	"manuscript/internal/store"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a changed file is saved.
const DefaultDebounce = 750 * time.Millisecond

// Sink receives the settled content of the watched file.
type Sink func(ctx context.Context, content string) error

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Saves         int
	Skipped       int // content hash unchanged
	Errors        int
	LastSave      time.Time
	LastEventType string
}

// Watcher follows one file and saves it through a Sink after edits settle.
// It watches the file's directory so editors that save by rename keep
// being followed.
type Watcher struct {
	mu        sync.RWMutex
	watcher   *fsnotify.Watcher
	path      string
	sink      Sink
	debouncer *Debouncer
	lastHash  string
	ctx       context.Context
	stopCh    chan struct{}
	doneCh    chan struct{}
	running   bool

	stats Stats
}

// NewWatcher creates a Watcher for path. A non-positive debounce selects
// DefaultDebounce.
func NewWatcher(path string, sink Sink, debounce time.Duration) (*Watcher, error) {
	if sink == nil {
		return nil, errors.New("autosave: nil sink")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("autosave: resolve %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("autosave: create watcher: %w", err)
	}

	return &Watcher{
		watcher:   fw,
		path:      filepath.Clean(abs),
		sink:      sink,
		debouncer: NewDebouncer(debounce),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Start begins watching. The current file content is taken as already
// saved. Start is non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	data, err := os.ReadFile(w.path)
	if err != nil {
		w.mu.Unlock()
		w.watcher.Close()
		return fmt.Errorf("autosave: read %s: %w", w.path, err)
	}
	w.lastHash = store.ContentHash(string(data))

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		w.mu.Unlock()
		w.watcher.Close()
		return fmt.Errorf("autosave: watch %s: %w", filepath.Dir(w.path), err)
	}
	// Saves outlive cancellation so Stop can still flush the last edit.
	w.ctx = context.WithoutCancel(ctx)
	w.running = true
	w.mu.Unlock()

	logging.Autosave("Watching %s", w.path)
	go w.run(ctx)
	return nil
}

// Stop stops watching, saves any edit still waiting out its debounce, and
// waits for in-flight saves.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if w.debouncer.Flush() {
		logging.AutosaveDebug("Flushed pending save of %s", w.path)
	}
	w.debouncer.Wait()

	if err := w.watcher.Close(); err != nil {
		logging.AutosaveError("Error closing watcher: %v", err)
	}
	logging.Autosave("Stopped watching %s", w.path)
}

// Done is closed when the event loop exits.
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

// Stats returns a copy of the activity counters.
func (w *Watcher) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			logging.AutosaveDebug("Context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.AutosaveError("Watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}

	var eventType string
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = "create"
	case event.Op&fsnotify.Write != 0:
		eventType = "modify"
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		// Editors that save by rename recreate the file right after.
		logging.AutosaveDebug("%s moved or removed, waiting for it to return", w.path)
		return
	default:
		return
	}

	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEventType = eventType
	w.mu.Unlock()

	w.debouncer.Debounce(w.save)
}

// save reads the file and hands it to the sink when its hash changed.
func (w *Watcher) save() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.AutosaveError("Failed to read %s: %v", w.path, err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		}
		return
	}
	content := string(data)
	hash := store.ContentHash(content)

	w.mu.RLock()
	unchanged := hash == w.lastHash
	ctx := w.ctx
	w.mu.RUnlock()

	if unchanged {
		w.mu.Lock()
		w.stats.Skipped++
		w.mu.Unlock()
		logging.AutosaveDebug("%s unchanged, skipping save", w.path)
		return
	}

	start := time.Now()
	if err := w.sink(ctx, content); err != nil {
		logging.AutosaveError("Save of %s failed: %v", w.path, err)
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	w.lastHash = hash
	w.stats.Saves++
	w.stats.LastSave = time.Now()
	w.mu.Unlock()

	logging.Autosave("Saved %s (%d bytes)", w.path, len(data))
	logging.Audit().Log(logging.AuditEvent{
		EventType: logging.AuditAutosave,
		Success:   true,
		Duration:  time.Since(start),
		Fields:    map[string]interface{}{"path": w.path},
	})
}
