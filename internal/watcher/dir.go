package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DirWatcher watches the top level of one directory for PDF changes.
// Subdirectories are not watched.
type DirWatcher struct {
	dir       string
	opts      Options
	logger    *slog.Logger
	debouncer *Debouncer

	mu       sync.Mutex
	started  bool
	polling  bool
	snapshot map[string]fileSnapshot

	stopCh   chan struct{}
	stopOnce sync.Once
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// NewDirWatcher creates a watcher for dir.
func NewDirWatcher(dir string, opts Options, logger *slog.Logger) *DirWatcher {
	opts = opts.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &DirWatcher{
		dir:       dir,
		opts:      opts,
		logger:    logger,
		debouncer: NewDebouncer(opts.Debounce, opts.EventBufferSize, logger),
		snapshot:  make(map[string]fileSnapshot),
		stopCh:    make(chan struct{}),
	}
}

// Events returns debounced event batches. The channel is closed by Stop.
func (w *DirWatcher) Events() <-chan []FileEvent {
	return w.debouncer.Output()
}

// Mode reports "fsnotify" or "polling" once watching has begun, and ""
// before.
func (w *DirWatcher) Mode() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return ""
	}
	if w.polling {
		return "polling"
	}
	return "fsnotify"
}

// Start watches until ctx ends or Stop is called.
func (w *DirWatcher) Start(ctx context.Context) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", w.dir)
	}

	if !w.opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			if err = fsw.Add(w.dir); err == nil {
				w.mu.Lock()
				w.started = true
				w.mu.Unlock()
				return w.runFsnotify(ctx, fsw)
			}
			_ = fsw.Close()
		}
		w.logger.Warn("fsnotify unavailable, falling back to polling",
			slog.String("dir", w.dir),
			slog.String("error", err.Error()))
	}

	return w.runPolling(ctx)
}

func (w *DirWatcher) runFsnotify(ctx context.Context, fsw *fsnotify.Watcher) error {
	defer fsw.Close()

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *DirWatcher) handle(ev fsnotify.Event) {
	name := filepath.Base(ev.Name)
	if filepath.Dir(ev.Name) != filepath.Clean(w.dir) || !isCandidate(name) {
		return
	}

	var op Operation
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
	case ev.Op&fsnotify.Write != 0:
		op = OpModify
	case ev.Op&fsnotify.Remove != 0:
		op = OpDelete
	case ev.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}

	w.debouncer.Add(FileEvent{Path: name, Operation: op, Timestamp: time.Now()})
}

func (w *DirWatcher) runPolling(ctx context.Context) error {
	snap := w.scan()
	w.mu.Lock()
	w.snapshot = snap
	w.polling = true
	w.started = true
	w.mu.Unlock()

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case <-ticker.C:
			w.detectChanges()
		}
	}
}

// scan lists candidate files in the directory.
func (w *DirWatcher) scan() map[string]fileSnapshot {
	state := make(map[string]fileSnapshot)
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("failed to scan inbox", slog.String("dir", w.dir), slog.String("error", err.Error()))
		return state
	}
	for _, e := range entries {
		if e.IsDir() || !isCandidate(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		state[e.Name()] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
	}
	return state
}

func (w *DirWatcher) detectChanges() {
	current := w.scan()

	w.mu.Lock()
	prev := w.snapshot
	w.snapshot = current
	w.mu.Unlock()

	now := time.Now()
	for name, snap := range current {
		old, ok := prev[name]
		switch {
		case !ok:
			w.debouncer.Add(FileEvent{Path: name, Operation: OpCreate, Timestamp: now})
		case old != snap:
			w.debouncer.Add(FileEvent{Path: name, Operation: OpModify, Timestamp: now})
		}
	}
	for name := range prev {
		if _, ok := current[name]; !ok {
			w.debouncer.Add(FileEvent{Path: name, Operation: OpDelete, Timestamp: now})
		}
	}
}

// Stop ends watching and closes Events. Safe to call more than once.
func (w *DirWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.debouncer.Stop()
	})
}
