package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher feeds files dropped into watched directories through the
// ingestor. A rewritten file is re-ingested under its existing document
// id; a removed file tears its document down.
type Watcher struct {
	ingestor   *Ingestor
	dirs       []string
	extensions []string
	sessionID  string
	provider   string
	debounce   time.Duration
	logger     *zap.Logger

	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	timers   map[string]*time.Timer
	docIDs   map[string]string // absolute path -> doc id
	started  bool
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher over dirs. extensions filters which files
// are ingested (empty = all); sessionID owns every ingested document.
// logger may be nil.
func NewWatcher(ing *Ingestor, dirs, extensions []string, sessionID, provider string, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		ingestor:   ing,
		dirs:       dirs,
		extensions: extensions,
		sessionID:  sessionID,
		provider:   provider,
		debounce:   defaultDebounce,
		logger:     logger,
		timers:     make(map[string]*time.Timer),
		docIDs:     make(map[string]string),
		done:       make(chan struct{}),
	}
}

// Start ingests existing files in the watched directories, then watches
// for changes until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = fsw
	w.started = true
	w.mu.Unlock()

	for _, dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			w.logger.Warn("cannot watch directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		w.syncDirectory(ctx, dir)
	}
	go w.run(ctx)
	return nil
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
		for path, t := range w.timers {
			t.Stop()
			delete(w.timers, path)
		}
		w.mu.Unlock()
	})
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	path := ev.Name
	if !w.matchExtension(path) {
		return
	}
	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			return
		}
		w.debounceIngest(ctx, path)
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.cancelDebounce(path)
		w.removeFile(ctx, path)
	}
}

// syncDirectory ingests the files already present when watching begins.
func (w *Watcher) syncDirectory(ctx context.Context, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.logger.Warn("cannot read watched directory", zap.String("dir", dir), zap.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if w.matchExtension(path) {
			w.ingestPath(ctx, path)
		}
	}
}

func (w *Watcher) ingestPath(ctx context.Context, path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	w.mu.Lock()
	docID := w.docIDs[abs]
	w.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("cannot read file", zap.String("path", path), zap.Error(err))
		return
	}
	meta, err := w.ingestor.Ingest(ctx, Input{
		DocID:     docID, // empty on first sight, reused on rewrite
		SessionID: w.sessionID,
		Filename:  filepath.Base(path),
		Text:      string(data),
		FileSize:  int64(len(data)),
		Provider:  w.provider,
	})
	if err != nil {
		w.logger.Warn("ingest failed", zap.String("path", path), zap.Error(err))
		return
	}
	w.mu.Lock()
	w.docIDs[abs] = meta.DocID
	w.mu.Unlock()
}

func (w *Watcher) removeFile(ctx context.Context, path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	w.mu.Lock()
	docID, ok := w.docIDs[abs]
	delete(w.docIDs, abs)
	w.mu.Unlock()
	if !ok {
		return
	}
	if err := w.ingestor.Delete(ctx, docID); err != nil {
		w.logger.Warn("remove failed", zap.String("path", path), zap.Error(err))
	}
}

func (w *Watcher) matchExtension(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range w.extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

func (w *Watcher) debounceIngest(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.ingestPath(ctx, path)
	})
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}
