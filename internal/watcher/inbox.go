package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// Subdirectories of the inbox that receive handled files.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// UploadFunc uploads the PDF at path.
type UploadFunc func(ctx context.Context, path string) error

// Inbox uploads every PDF dropped into a directory. Uploaded files move to
// processed/, rejected ones to failed/, so a restart never uploads a file
// twice.
type Inbox struct {
	dir    string
	upload UploadFunc
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	watcher *DirWatcher

	uploaded atomic.Int64
	failed   atomic.Int64
}

// InboxStats counts handled files since start.
type InboxStats struct {
	Dir      string `json:"dir"`
	Mode     string `json:"mode"`
	Uploaded int64  `json:"uploaded"`
	Failed   int64  `json:"failed"`
}

// NewInbox creates an Inbox over dir.
func NewInbox(dir string, upload UploadFunc, opts Options, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{
		dir:    dir,
		upload: upload,
		opts:   opts.WithDefaults(),
		logger: logger.With(slog.String("component", "inbox")),
	}
}

// Run creates the inbox if needed, uploads files already present, then
// watches for new ones until ctx ends.
func (in *Inbox) Run(ctx context.Context) error {
	for _, d := range []string{in.dir, filepath.Join(in.dir, ProcessedDir), filepath.Join(in.dir, FailedDir)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create inbox: %w", err)
		}
	}

	w := NewDirWatcher(in.dir, in.opts, in.logger)
	in.mu.Lock()
	in.watcher = w
	in.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		err := w.Start(ctx)
		w.Stop()
		done <- err
	}()

	in.logger.Info("inbox watching", slog.String("dir", in.dir))

	for _, name := range in.existing() {
		in.handle(ctx, name)
	}

	for batch := range w.Events() {
		for _, ev := range batch {
			if ev.Operation == OpCreate || ev.Operation == OpModify || ev.Operation == OpRename {
				in.handle(ctx, ev.Path)
			}
		}
	}

	err := <-done
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop ends Run.
func (in *Inbox) Stop() {
	in.mu.Lock()
	w := in.watcher
	in.mu.Unlock()
	if w != nil {
		w.Stop()
	}
}

// Stats returns counters since start.
func (in *Inbox) Stats() InboxStats {
	mode := ""
	in.mu.Lock()
	if in.watcher != nil {
		mode = in.watcher.Mode()
	}
	in.mu.Unlock()
	return InboxStats{
		Dir:      in.dir,
		Mode:     mode,
		Uploaded: in.uploaded.Load(),
		Failed:   in.failed.Load(),
	}
}

func (in *Inbox) existing() []string {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		in.logger.Warn("failed to list inbox", slog.String("error", err.Error()))
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && isCandidate(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names
}

// handle uploads one file and moves it out of the inbox.
func (in *Inbox) handle(ctx context.Context, name string) {
	if ctx.Err() != nil {
		return
	}
	path := filepath.Join(in.dir, name)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return
	}

	log := in.logger.With(slog.String("file", name))

	if err := in.upload(ctx, path); err != nil {
		if ctx.Err() != nil {
			return
		}
		in.failed.Add(1)
		log.Warn("inbox upload failed", slog.String("error", err.Error()))
		in.move(path, FailedDir, log)
		return
	}

	in.uploaded.Add(1)
	log.Info("inbox file uploaded")
	in.move(path, ProcessedDir, log)
}

func (in *Inbox) move(path, sub string, log *slog.Logger) {
	dest := uniquePath(filepath.Join(in.dir, sub, filepath.Base(path)))
	if err := os.Rename(path, dest); err != nil {
		log.Warn("failed to move inbox file", slog.String("dest", dest), slog.String("error", err.Error()))
	}
}

// uniquePath appends a counter to path's stem until it names no file.
func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	stem := path[:len(path)-len(ext)]
	for i := 1; ; i++ {
		p := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return p
		}
	}
}
