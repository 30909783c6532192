package downloads

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"toolshed/internal/fsutil"

	"github.com/fsnotify/fsnotify"
)

const defaultPollInterval = 100 * time.Millisecond

// Watcher feeds new files under the watch path to a Sorter once their size
// has settled. Files already present when it starts are sorted too.
type Watcher struct {
	sorter     *Sorter
	root       string
	sortedPath string
	threshold  time.Duration
	poll       time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	pending map[string]bool
	wg      sync.WaitGroup
}

func NewWatcher(sorter *Sorter, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	poll := sorter.cfg.PollInterval()
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Watcher{
		sorter:     sorter,
		root:       sorter.cfg.WatchPath,
		sortedPath: sorter.cfg.SortedPath,
		threshold:  sorter.cfg.StabilityThreshold(),
		poll:       poll,
		logger:     logger,
		pending:    make(map[string]bool),
	}
}

// Run watches until ctx is cancelled and waits for in-flight sorts before
// returning.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()
	defer w.wg.Wait()

	if err := w.addTree(ctx, fw, w.root); err != nil {
		return err
	}
	w.logger.Info("watching", "path", w.root, "sorted", w.sortedPath)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, fw, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fw *fsnotify.Watcher, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	info, err := os.Lstat(event.Name)
	if err != nil {
		return
	}

	switch {
	case info.IsDir():
		if event.Has(fsnotify.Create) && !w.skipDir(event.Name) {
			if err := w.addTree(ctx, fw, event.Name); err != nil {
				w.logger.Error("failed to watch directory", "path", event.Name, "error", err)
			}
		}
	case info.Mode().IsRegular():
		w.schedule(ctx, event.Name)
	}
}

func (w *Watcher) skipDir(path string) bool {
	if path == w.root {
		return false
	}
	return strings.HasPrefix(filepath.Base(path), ".") || fsutil.IsWithin(path, w.sortedPath)
}

// addTree watches dir and its subdirectories and schedules the files found.
func (w *Watcher) addTree(ctx context.Context, fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			w.logger.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}

		if d.IsDir() {
			if w.skipDir(path) {
				return filepath.SkipDir
			}
			if err := fw.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			return nil
		}

		if d.Type().IsRegular() {
			w.schedule(ctx, path)
		}
		return nil
	})
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	if w.sorter.Skip(path) {
		return
	}

	w.mu.Lock()
	if w.pending[path] {
		w.mu.Unlock()
		return
	}
	w.pending[path] = true
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			delete(w.pending, path)
			w.mu.Unlock()
		}()

		if err := waitStable(ctx, path, w.threshold, w.poll); err != nil {
			w.logger.Debug("file did not settle", "path", path, "error", err)
			return
		}
		if _, err := w.sorter.Sort(path); err != nil {
			w.logger.Error("error sorting file", "path", path, "error", err)
		}
	}()
}

// waitStable returns once path has kept its size and mtime for threshold.
func waitStable(ctx context.Context, path string, threshold, poll time.Duration) error {
	last, err := os.Stat(path)
	if err != nil {
		return err
	}
	stableSince := time.Now()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for time.Since(stableSince) < threshold {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() != last.Size() || !info.ModTime().Equal(last.ModTime()) {
			last = info
			stableSince = time.Now()
		}
	}
	return nil
}
