// Package watch observes provider roots for filesystem mutations,
// coalesces bursts, refreshes the index, and fans events out to
// subscribers. Notification runs decoupled from the request path: a slow
// scan never blocks delivery and a slow subscriber never blocks a scan.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/sessiond-dev/sessiond/internal/provider"
	"github.com/sessiond-dev/sessiond/internal/scan"
	"github.com/sessiond-dev/sessiond/internal/session"
	"github.com/sessiond-dev/sessiond/internal/store"
)

type Watcher struct {
	fsw      *fsnotify.Watcher
	store    *store.Store
	hub      *Hub
	reg      *provider.Registry
	log      *zap.Logger
	debounce time.Duration
	window   time.Duration // recency window for "active"

	mu         sync.Mutex
	pending    map[string]struct{} // session ids touched in the current burst
	structural bool                // burst included create/remove/rename
	timer      *time.Timer
	lastEvent  map[string]time.Time // session id -> last observed event

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a watcher over every configured provider root. A root that
// cannot be watched (typically missing) degrades to no notifications for
// that root instead of failing startup.
func New(roots map[string][]string, st *store.Store, hub *Hub, reg *provider.Registry,
	debounce, activeWindow time.Duration, log *zap.Logger) (*Watcher, error) {

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:       fsw,
		store:     st,
		hub:       hub,
		reg:       reg,
		log:       log,
		debounce:  debounce,
		window:    activeWindow,
		pending:   make(map[string]struct{}),
		lastEvent: make(map[string]time.Time),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}

	for prov, rs := range roots {
		for _, root := range rs {
			if root == "" {
				continue
			}
			if err := w.watchTree(root); err != nil {
				log.Warn("watch unavailable for root",
					zap.String("provider", prov), zap.String("root", root), zap.Error(err))
			}
		}
	}

	return w, nil
}

// watchTree registers root and every subdirectory under it. fsnotify
// watches are not recursive, so new directories are added as they appear.
func (w *Watcher) watchTree(root string) error {
	if err := w.fsw.Add(root); err != nil {
		return err
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && path != root {
			if strings.HasPrefix(d.Name(), ".") && d.Name() != scan.TrashDir {
				return filepath.SkipDir
			}
			if err := w.fsw.Add(path); err != nil {
				w.log.Debug("watch add failed", zap.String("dir", path), zap.Error(err))
			}
		}
		return nil
	})
}

// Start runs the event loop until Stop or ctx cancellation.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *Watcher) Stop() {
	close(w.stopCh)
	w.fsw.Close()
	<-w.doneCh
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	name := filepath.Base(ev.Name)

	// new directories join the watch set immediately so their files are
	// not missed while the debounce window is open
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !strings.HasPrefix(name, ".") || name == scan.TrashDir {
				_ = w.fsw.Add(ev.Name)
			}
			w.noteStructural(ctx)
			return
		}
	}

	if !strings.HasSuffix(name, ".jsonl") || strings.HasSuffix(name, ".jsonl.lock") {
		return
	}

	switch {
	case ev.Has(fsnotify.Write):
		w.noteSession(ctx, ev.Name)
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.noteStructural(ctx)
	}
}

func (w *Watcher) sessionID(path string) string {
	if a, ok := w.reg.ForPath(path); ok {
		return a.SessionMeta(path).SessionID
	}
	return strings.TrimSuffix(filepath.Base(path), ".jsonl")
}

func (w *Watcher) noteSession(ctx context.Context, path string) {
	id := w.sessionID(path)
	w.mu.Lock()
	w.pending[id] = struct{}{}
	w.lastEvent[id] = time.Now()
	w.schedule(ctx)
	w.mu.Unlock()
}

func (w *Watcher) noteStructural(ctx context.Context) {
	w.mu.Lock()
	w.structural = true
	w.schedule(ctx)
	w.mu.Unlock()
}

// schedule arms or rearms the burst timer. Caller holds w.mu.
func (w *Watcher) schedule(ctx context.Context) {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.flush(ctx) })
}

// flush closes the current burst: refresh the index once, then broadcast
// one classified event per touched session plus a structural event when
// files appeared or vanished.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	ids := make([]string, 0, len(w.pending))
	for id := range w.pending {
		ids = append(ids, id)
	}
	structural := w.structural
	w.pending = make(map[string]struct{})
	w.structural = false
	w.mu.Unlock()

	if err := w.store.Refresh(ctx); err != nil {
		w.log.Warn("refresh after change burst", zap.Error(err))
	}

	if structural {
		w.hub.Publish(session.ChangeEvent{Kind: session.EventIndexUpd})
	}
	for _, id := range ids {
		w.hub.Publish(session.ChangeEvent{Kind: session.EventSessionUpd, SessionID: id})
	}
}

// Active reports whether id received a filesystem event inside the recency
// window. A signal only; nothing enforces exclusivity based on it.
func (w *Watcher) Active(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.lastEvent[id]
	return ok && time.Since(t) <= w.window
}
