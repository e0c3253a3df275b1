package sheet

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must be quiet before a change is
// reported. Editors often write a file in several steps.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reports changes to a schedule file.
//
// It watches the parent directory rather than the file so that editors
// which save by writing a new file and renaming it over the old one are
// still seen. Bursts of events are coalesced into one notification.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	dir      string
	debounce time.Duration

	changes chan struct{}
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewWatcher creates a watcher for path. A debounce of 0 uses
// DefaultDebounce. The watcher must be started with Start.
func NewWatcher(path string, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		watcher:  fw,
		path:     abs,
		dir:      filepath.Dir(abs),
		debounce: debounce,
		changes:  make(chan struct{}, 1),
		errors:   make(chan error, 10),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", w.dir, err)
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents(w.done)
	return nil
}

// Stop stops watching and closes the Changes and Errors channels. It is
// safe to call more than once and on a watcher that was never started.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.done == nil {
		w.mu.Unlock()
		return nil
	}
	wasRunning := w.running
	w.running = false
	close(w.done)
	w.done = nil
	w.mu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()
	if wasRunning {
		close(w.changes)
		close(w.errors)
	}
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// Changes emits once per settled change to the file.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Errors emits watcher errors. Errors are dropped when nobody reads them.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// IsRunning reports whether the watcher has been started and not stopped.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) processEvents(done <-chan struct{}) {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-done:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.relevant(ev) {
				timer.Reset(w.debounce)
			}

		case <-timer.C:
			select {
			case w.changes <- struct{}{}:
			default:
				// A change is already pending.
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

// relevant reports whether ev touches the watched file's content.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove)
}
