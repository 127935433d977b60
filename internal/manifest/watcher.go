package manifest

import (
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/mvpkit/internal/logging"
)

// DefaultDebounce is how long the watcher waits after the last change
// before reloading.
const DefaultDebounce = 100 * time.Millisecond

// Errors returned by the watcher.
var (
	ErrWatcherClosed  = errors.New("manifest: watcher is closed")
	ErrWatcherStarted = errors.New("manifest: watcher already started")
)

// ChangeFunc receives each reload. Exactly one of m and err is non-nil.
type ChangeFunc func(m *Manifest, err error)

// Watcher reloads a manifest whenever its file changes.
//
// The containing directory is watched rather than the file so that editors
// which save by rename are seen. Bursts of events are coalesced.
type Watcher struct {
	path     string
	onChange ChangeFunc
	debounce time.Duration
	logger   logging.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	timer   *time.Timer
	started bool
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup

	reloads atomic.Uint64
	errs    atomic.Uint64
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the coalescing delay.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the watcher logger.
func WithLogger(l logging.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = logging.WithComponent(l, "manifest")
		}
	}
}

// NewWatcher creates a watcher for the manifest at path. Call Start to begin.
func NewWatcher(path string, onChange ChangeFunc, opts ...WatcherOption) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("manifest: change callback cannot be nil")
	}
	if _, err := FormatOf(path); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:     abs,
		onChange: onChange,
		debounce: DefaultDebounce,
		logger:   logging.NewNop(),
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Path returns the absolute manifest path.
func (w *Watcher) Path() string { return w.path }

// Start begins watching.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWatcherClosed
	}
	if w.started {
		return ErrWatcherStarted
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return err
	}
	w.fsw = fsw
	w.started = true

	w.wg.Add(1)
	go w.processLoop()
	return nil
}

// Close stops watching and waits for the event loop to exit. A pending
// reload is dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	if w.timer != nil {
		w.timer.Stop()
	}
	fsw := w.fsw
	w.mu.Unlock()

	w.wg.Wait()
	if fsw != nil {
		return fsw.Close()
	}
	return nil
}

// Reloads returns the number of reloads delivered.
func (w *Watcher) Reloads() uint64 { return w.reloads.Load() }

// processLoop handles incoming fsnotify events.
func (w *Watcher) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.schedule()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.errs.Add(1)
			w.logger.Warn("watch error", "path", w.path, "error", err)
		}
	}
}

// schedule (re)arms the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}

	m, err := Load(w.path)
	if err != nil {
		w.errs.Add(1)
		w.logger.Warn("manifest reload failed", "path", w.path, "error", err)
		w.onChange(nil, err)
		return
	}
	w.reloads.Add(1)
	w.logger.Info("manifest reloaded", "path", w.path, "actions", len(m.Bindings))
	w.onChange(m, nil)
}
