// Package watcher reloads the vector index when its files change on disk.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/orbitblue/nitamono/internal/embedding"
	"github.com/orbitblue/nitamono/internal/vector"
)

// DefaultDebounce is how long the watcher waits after the last file event
// before reloading. Rebuilds write two files; the pause lets both land.
const DefaultDebounce = 2 * time.Second

// Watcher watches the index directory and swaps a freshly loaded store
// into the serving store when the index files change.
type Watcher struct {
	dir      string
	serving  *vector.Store
	embedder embedding.Embedder
	debounce time.Duration
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	timer    *time.Timer
	done     chan struct{}
	started  bool
	stopOnce sync.Once
	logger   *zap.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger for reload and event output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the reload debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher over dir. Reloads go through a fresh store built
// with embedder and are swapped into serving only when loading succeeds.
func New(dir string, serving *vector.Store, embedder embedding.Embedder, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		serving:  serving,
		embedder: embedder,
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	if _, err := os.Stat(w.dir); os.IsNotExist(err) {
		if err := os.MkdirAll(w.dir, 0755); err != nil {
			w.mu.Unlock()
			return err
		}
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	w.mu.Unlock()

	w.logger.Info("watching index directory",
		zap.String("dir", w.dir),
		zap.Duration("debounce", w.debounce))
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	w.mu.Lock()
	fsw := w.watcher
	w.mu.Unlock()
	if fsw == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Warn("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	name := filepath.Base(ev.Name)
	if name != vector.IndexFileName && name != vector.ChunksFileName {
		return
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	w.logger.Debug("index file changed",
		zap.String("op", ev.Op.String()),
		zap.String("path", ev.Name))
	w.scheduleReload()
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	fresh := vector.NewStore(w.embedder)
	ok, err := fresh.Load(w.dir)
	if err != nil {
		w.logger.Error("index reload failed, keeping current index",
			zap.String("dir", w.dir), zap.Error(err))
		return
	}
	if !ok {
		w.logger.Warn("index files incomplete, keeping current index",
			zap.String("dir", w.dir))
		return
	}
	w.serving.Swap(fresh)
	stats := w.serving.Stats()
	w.logger.Info("index reloaded",
		zap.Int("vectors", stats.Vectors),
		zap.Int("chunks", stats.Chunks),
		zap.String("dir", w.dir))
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
