package config

import (
	"crypto/sha256"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/smazurov/uvcctl/internal/logging"
)

// Loader reads and validates the watched file.
type Loader[T any] func(path string) (T, error)

// Watcher reloads a file when it changes on disk and hands the result to
// every subscriber. It watches the parent directory, so editors that save
// by renaming a temp file over the original are followed too.
type Watcher[T any] struct {
	path     string
	load     Loader[T]
	logger   logging.Logger
	debounce time.Duration
	onError  func(error)

	subMu  sync.Mutex
	subs   map[uint64]func(T)
	nextID uint64

	// reloadMu serializes loads so subscribers see changes in order.
	reloadMu sync.Mutex
	lastSum  [sha256.Size]byte

	fs      *fsnotify.Watcher
	quit    chan struct{}
	stopped sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption[T any] func(*Watcher[T])

// WithDebounce sets how long the file must stay quiet before it is
// reloaded. The default is 500ms.
func WithDebounce[T any](d time.Duration) WatcherOption[T] {
	return func(w *Watcher[T]) { w.debounce = d }
}

// WithErrorHandler receives load failures. Subscribers never see a file
// that failed to load.
func WithErrorHandler[T any](fn func(error)) WatcherOption[T] {
	return func(w *Watcher[T]) { w.onError = fn }
}

func NewWatcher[T any](path string, load func(path string) (T, error), logger logging.Logger, opts ...WatcherOption[T]) *Watcher[T] {
	w := &Watcher[T]{
		path:     filepath.Clean(path),
		load:     load,
		logger:   logger,
		debounce: 500 * time.Millisecond,
		subs:     make(map[uint64]func(T)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OnReload subscribes fn and returns its unsubscribe function.
func (w *Watcher[T]) OnReload(fn func(T)) func() {
	w.subMu.Lock()
	defer w.subMu.Unlock()
	id := w.nextID
	w.nextID++
	w.subs[id] = fn
	return func() {
		w.subMu.Lock()
		delete(w.subs, id)
		w.subMu.Unlock()
	}
}

func (w *Watcher[T]) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return err
	}
	w.remember()

	w.fs = fw
	w.quit = make(chan struct{})
	w.stopped.Add(1)
	go w.loop()
	w.logger.Info("Watching config file", "path", w.path, "debounce", w.debounce)
	return nil
}

// Stop ends the watch and waits for a reload in progress.
func (w *Watcher[T]) Stop() error {
	if w.fs == nil {
		return nil
	}
	close(w.quit)
	err := w.fs.Close()
	w.stopped.Wait()
	w.fs = nil
	return err
}

// Reload loads the file now and notifies subscribers even when the content
// did not change.
func (w *Watcher[T]) Reload() {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()
	w.apply()
}

func (w *Watcher[T]) loop() {
	defer w.stopped.Done()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.quit:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)
		case <-timer.C:
			w.reloadChanged()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watch error", "error", err)
		}
	}
}

// reloadChanged reloads unless the file content matches the last load.
// Editors often emit several events for one save.
func (w *Watcher[T]) reloadChanged() {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	data, err := os.ReadFile(w.path)
	if errors.Is(err, os.ErrNotExist) {
		// Mid-rename; the Create that follows triggers another reload.
		return
	}
	if err == nil && sha256.Sum256(data) == w.lastSum {
		w.logger.Debug("Config file touched without changes", "path", w.path)
		return
	}
	w.logger.Info("Config file changed, reloading", "path", w.path)
	w.apply()
}

// apply loads the file and notifies subscribers. Caller holds reloadMu.
func (w *Watcher[T]) apply() {
	cfg, err := w.load(w.path)
	if err != nil {
		w.logger.Warn("Config reload failed, keeping the previous settings", "path", w.path, "error", err)
		if w.onError != nil {
			w.onError(err)
		}
		return
	}
	w.rememberLocked()

	w.subMu.Lock()
	subs := make([]func(T), 0, len(w.subs))
	for id := uint64(0); id < w.nextID; id++ {
		if fn, ok := w.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	w.subMu.Unlock()

	for _, fn := range subs {
		fn(cfg)
	}
}

func (w *Watcher[T]) remember() {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()
	w.rememberLocked()
}

func (w *Watcher[T]) rememberLocked() {
	if data, err := os.ReadFile(w.path); err == nil {
		w.lastSum = sha256.Sum256(data)
	}
}
