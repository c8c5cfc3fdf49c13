package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/zerbitx/gnockfs/route"
)

// DefaultDebounce is how long a burst of events is collected before the cache
// is invalidated.
const DefaultDebounce = 50 * time.Millisecond

const qualifyingOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

type (
	// Invalidator drops whatever is cached for a file.
	Invalidator interface {
		Invalidate(file string)
	}

	// Watcher invalidates cached fixtures when anything under the fixture root
	// is written, created, removed or renamed.
	Watcher struct {
		deriver      *route.Deriver
		cache        Invalidator
		logger       logrus.FieldLogger
		debounce     time.Duration
		onInvalidate func(int)

		mu       sync.Mutex
		fsw      *fsnotify.Watcher
		done     chan struct{}
		stopOnce sync.Once
	}

	config struct {
		logger       logrus.FieldLogger
		debounce     time.Duration
		onInvalidate func(int)
	}

	// Option is a function that can modify a default config
	Option func(c *config)
)

// WithLogger overrides the default logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithDebounce sets how long events are coalesced
func WithDebounce(d time.Duration) Option {
	return func(c *config) {
		c.debounce = d
	}
}

// OnInvalidate registers a callback run after every invalidation pass with
// the number of files invalidated.
func OnInvalidate(fn func(count int)) Option {
	return func(c *config) {
		c.onInvalidate = fn
	}
}

// New returns a Watcher for the deriver's root. Nothing is watched until Start.
func New(deriver *route.Deriver, cache Invalidator, options ...Option) *Watcher {
	c := &config{
		logger:   logrus.StandardLogger(),
		debounce: DefaultDebounce,
	}

	for _, applyOption := range options {
		applyOption(c)
	}

	return &Watcher{
		deriver:      deriver,
		cache:        cache,
		logger:       c.logger.WithField("directory", deriver.Root()),
		debounce:     c.debounce,
		onInvalidate: c.onInvalidate,
	}
}

// Start begins watching the root and all of its directories. The returned
// error means hot reload is unavailable; the server keeps working without it.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fsw != nil {
		w.logger.Warn("file watcher already started")
		return nil
	}

	info, err := os.Stat(w.deriver.Root())
	if err != nil {
		return fmt.Errorf("cannot watch fixture directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cannot watch %s: not a directory", w.deriver.Root())
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	dirs, err := w.deriver.Dirs()
	if err != nil {
		fsw.Close()
		return fmt.Errorf("failed to list fixture directories: %w", err)
	}

	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	w.fsw = fsw
	w.done = make(chan struct{})

	go w.loop(fsw, w.done)

	w.logger.WithField("directories", len(dirs)).Info("started watching fixture directory")

	return nil
}

// Stop releases the watch handle. Calling it more than once, or before Start,
// does nothing.
func (w *Watcher) Stop() {
	w.mu.Lock()
	fsw, done := w.fsw, w.done
	w.mu.Unlock()

	if fsw == nil {
		return
	}

	w.stopOnce.Do(func() {
		if err := fsw.Close(); err != nil {
			w.logger.WithError(err).Warn("failed to close file watcher")
		}
		<-done
		w.logger.Info("stopped watching fixture directory")
	})
}

func (w *Watcher) loop(fsw *fsnotify.Watcher, done chan<- struct{}) {
	defer close(done)

	var (
		pending = map[string]struct{}{}
		fire    <-chan time.Time
	)

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Op&qualifyingOps == 0 {
				continue
			}

			w.logger.WithFields(logrus.Fields{
				"file": event.Name,
				"op":   event.Op.String(),
			}).Debug("file system event detected")

			if event.Op&fsnotify.Create != 0 {
				w.watchNewDir(fsw, event.Name)
			}

			pending[event.Name] = struct{}{}
			if fire == nil {
				fire = time.After(w.debounce)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("file watcher error")
		case <-fire:
			fire = nil
			w.invalidate(pending)
			pending = map[string]struct{}{}
		}
	}
}

// watchNewDir adds directories created after Start, nested ones included.
func (w *Watcher) watchNewDir(fsw *fsnotify.Watcher, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || route.Hidden(filepath.Base(path)) {
		return
	}

	dirs, err := route.Subdirs(path)
	if err != nil {
		w.logger.WithError(err).WithField("file", path).Warn("failed to list new directory")
		return
	}

	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			w.logger.WithError(err).WithField("file", dir).Warn("failed to watch new directory")
		}
	}
}

// invalidate drops every fixture the events touched, then every fixture still
// in the tree.
func (w *Watcher) invalidate(touched map[string]struct{}) {
	count := 0

	for path := range touched {
		if route.IsFixture(path) {
			w.cache.Invalidate(path)
			count++
		}
	}

	files, err := w.deriver.Files()
	if err != nil {
		w.logger.WithError(err).Warn("failed to enumerate fixtures during invalidation")
	}

	for _, file := range files {
		if _, seen := touched[file]; seen {
			continue
		}
		w.cache.Invalidate(file)
		count++
	}

	if count > 0 {
		w.logger.WithField("count", count).Info("invalidated fixture caches")
	}

	if w.onInvalidate != nil {
		w.onInvalidate(count)
	}
}
