package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"pagecraft/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Watcher: picks up compositions written by other processes
// ─────────────────────────────────────────────────────────────

// Watcher polls the stored version of every open page and refreshes the
// sessions that fell behind, for example after an agent process wrote to
// the same database. With a database file set it also reacts to writes on
// that file instead of waiting for the next tick.
type Watcher struct {
	editor   *Editor
	interval time.Duration
	file     string
	debounce time.Duration
	log      *zap.Logger
}

type WatcherOption func(*Watcher)

// WatchFile makes the watcher listen to writes on a local database file.
func WatchFile(path string) WatcherOption { return func(w *Watcher) { w.file = path } }

func WatcherLogger(l *zap.Logger) WatcherOption { return func(w *Watcher) { w.log = l } }

func NewWatcher(editor *Editor, interval time.Duration, opts ...WatcherOption) *Watcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	w := &Watcher{editor: editor, interval: interval, debounce: 150 * time.Millisecond, log: zap.NewNop()}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Check compares every open session with the store once and returns how
// many were refreshed. Sessions of deleted pages are closed.
func (w *Watcher) Check(ctx context.Context) int {
	refreshed := 0
	for _, pageID := range w.editor.OpenPages() {
		stored, err := w.editor.store.CompositionVersion(ctx, pageID)
		if errors.Is(err, domain.ErrNotFound) {
			w.log.Info("page deleted elsewhere", zap.String("pageId", pageID))
			w.editor.Close(pageID)
			w.editor.emitter.Emit(ctx, EventPagesChanged, map[string]string{"deleted": pageID})
			continue
		}
		if err != nil {
			w.log.Warn("read composition version", zap.String("pageId", pageID), zap.Error(err))
			continue
		}
		held, ok := w.editor.Version(pageID)
		if !ok || held == stored {
			continue
		}
		changed, err := w.editor.Refresh(ctx, pageID)
		if err != nil {
			w.log.Warn("refresh page", zap.String("pageId", pageID), zap.Error(err))
			continue
		}
		if changed {
			refreshed++
		}
	}
	return refreshed
}

// Run checks on every tick, and on file writes when a file is watched,
// until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var fsEvents <-chan fsnotify.Event
	var fsErrors <-chan error
	if w.file != "" {
		fw, err := fsnotify.NewWatcher()
		if err != nil {
			w.log.Warn("file watcher unavailable, polling only", zap.Error(err))
		} else {
			defer fw.Close()
			dir := filepath.Dir(w.file)
			if err := fw.Add(dir); err != nil {
				w.log.Warn("watch database directory", zap.String("dir", dir), zap.Error(err))
			} else {
				fsEvents, fsErrors = fw.Events, fw.Errors
				w.log.Debug("watching database file", zap.String("file", w.file))
			}
		}
	}

	// Writes come in bursts (database, -wal, -shm); one check per burst.
	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Check(ctx)
		case ev, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			if w.concerns(ev) && settle == nil {
				settle = time.After(w.debounce)
			}
		case <-settle:
			settle = nil
			w.Check(ctx)
		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			w.log.Warn("file watcher", zap.Error(err))
		}
	}
}

func (w *Watcher) concerns(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return false
	}
	name := filepath.Clean(ev.Name)
	base := filepath.Clean(w.file)
	return name == base || strings.HasPrefix(name, base+"-")
}
