// Package watcher reports changes to stored source PDFs so derived data can be
// invalidated.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches a blob root and calls onChange with the blob key of every
// PDF that is written, replaced, or removed.
type Watcher struct {
	root      string
	recursive bool
	ignore    []string
	onChange  func(key string)
	debounce  time.Duration
	watcher   *fsnotify.Watcher
	mu        sync.Mutex
	pending   map[string]*time.Timer
	done      chan struct{}
	started   bool
	stopOnce  sync.Once
	logger    *zap.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a key must be quiet before onChange fires.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithIgnorePrefixes skips keys under the given prefixes, such as directories
// the service writes to itself.
func WithIgnorePrefixes(prefixes ...string) Option {
	return func(w *Watcher) { w.ignore = append(w.ignore, prefixes...) }
}

// NewWatcher creates a watcher for root. It does nothing until Start.
func NewWatcher(root string, recursive bool, onChange func(key string), opts ...Option) *Watcher {
	w := &Watcher{
		root:      filepath.Clean(root),
		recursive: recursive,
		onChange:  onChange,
		debounce:  defaultDebounce,
		pending:   make(map[string]*time.Timer),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It runs until ctx is cancelled or Stop is called. A
// missing root is created.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	if err := os.MkdirAll(w.root, 0755); err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fw
	if err := w.addTreeLocked(w.root); err != nil {
		_ = fw.Close()
		w.watcher = nil
		return err
	}
	w.started = true
	w.debugf("watcher starting", zap.String("root", w.root), zap.Bool("recursive", w.recursive))
	go w.run(ctx, fw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.debugf("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	key, ok := w.key(ev.Name)
	if !ok || w.ignored(key) {
		return
	}
	w.debugf("watcher event", zap.String("op", ev.Op.String()), zap.String("key", key))

	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err == nil && info.IsDir() {
			if w.recursive {
				w.mu.Lock()
				if w.watcher != nil {
					if err := w.addTreeLocked(ev.Name); err != nil {
						w.debugf("watcher failed to add directory", zap.String("path", ev.Name), zap.Error(err))
					}
				}
				w.mu.Unlock()
			}
			return
		}
		if isPDF(key) {
			w.schedule(key)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		if isPDF(key) {
			w.cancel(key)
			w.fire(key)
		}
	}
}

// addTreeLocked watches dir and, when recursive, every directory below it that is not ignored.
func (w *Watcher) addTreeLocked(dir string) error {
	if !w.recursive {
		return w.watcher.Add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if key, ok := w.key(path); ok && key != "" && w.ignored(key+"/") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// key returns the slash-separated blob key of path under the root.
func (w *Watcher) key(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) ignored(key string) bool {
	for _, p := range w.ignore {
		p = strings.TrimSuffix(p, "/") + "/"
		if strings.HasPrefix(key, p) || key+"/" == p {
			return true
		}
	}
	return false
}

func isPDF(key string) bool {
	return strings.EqualFold(filepath.Ext(key), ".pdf")
}

func (w *Watcher) schedule(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[key]; ok {
		t.Stop()
	}
	w.pending[key] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, key)
		w.mu.Unlock()
		w.fire(key)
	})
}

func (w *Watcher) cancel(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[key]; ok {
		t.Stop()
		delete(w.pending, key)
	}
}

func (w *Watcher) fire(key string) {
	w.debugf("source changed", zap.String("key", key))
	if w.onChange != nil {
		w.onChange(key)
	}
}

func (w *Watcher) debugf(msg string, fields ...zap.Field) {
	if w.logger != nil {
		w.logger.Debug(msg, fields...)
	}
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for key, t := range w.pending {
		t.Stop()
		delete(w.pending, key)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
