package downloads

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"toolshed/internal/config"
	"toolshed/internal/dupes"
	"toolshed/internal/fsutil"
	"toolshed/internal/models"
)

// Sorter moves files into sortedPath/<category>/.
type Sorter struct {
	cfg     config.DownloadsConfig
	history *History
	logger  *slog.Logger

	// sortMu serializes moves so two files with the same name cannot pick
	// the same free destination.
	sortMu sync.Mutex
	mu     sync.RWMutex
	stats  models.SortStats
}

func NewSorter(cfg config.DownloadsConfig, history *History, logger *slog.Logger) *Sorter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sorter{
		cfg:     cfg,
		history: history,
		logger:  logger,
		stats:   models.SortStats{ByCategory: map[string]int{}},
	}
}

// Prepare creates the watch, sorted and category directories.
func (s *Sorter) Prepare() error {
	dirs := []string{s.cfg.WatchPath, s.cfg.SortedPath}
	for _, name := range s.cfg.Categories.Names() {
		dirs = append(dirs, filepath.Join(s.cfg.SortedPath, name))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Skip reports whether path is not a candidate for sorting.
func (s *Sorter) Skip(path string) bool {
	name := filepath.Base(path)
	return strings.HasPrefix(name, ".") ||
		fsutil.IsWithin(path, s.cfg.SortedPath) ||
		ShouldIgnore(name, s.cfg.IgnoredExtensions)
}

// Sort moves one file to its category folder and returns the history entry
// recorded for it. Skipped files return (nil, nil).
func (s *Sorter) Sort(path string) (*models.HistoryEntry, error) {
	if s.Skip(path) {
		return nil, nil
	}

	s.sortMu.Lock()
	defer s.sortMu.Unlock()

	filename := filepath.Base(path)
	category := Categorize(filename, s.cfg.Categories)
	destDir := filepath.Join(s.cfg.SortedPath, category)

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", destDir, err)
	}

	var hash *string
	if s.cfg.DuplicateCheckEnabled {
		fp, err := dupes.HashFile(path)
		if err != nil {
			s.logger.Error("error hashing file", "path", path, "error", err)
		} else {
			hash = &fp.Hash
		}
	}

	dest := fsutil.UniquePath(filepath.Join(destDir, filename))
	if err := fsutil.MoveFile(path, dest); err != nil {
		return nil, err
	}

	info, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", dest, err)
	}

	s.mu.Lock()
	s.stats.TotalSorted++
	s.stats.ByCategory[category]++
	s.mu.Unlock()

	entry := models.HistoryEntry{
		Filename:     filename,
		OriginalPath: path,
		SortedPath:   dest,
		Category:     category,
		Size:         info.Size(),
		Hash:         hash,
	}
	if s.history != nil {
		s.history.Add(entry)
	}

	s.logger.Info("sorted file", "file", filename, "category", category, "dest", dest)
	return &entry, nil
}

func (s *Sorter) Stats() models.SortStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byCategory := make(map[string]int, len(s.stats.ByCategory))
	for k, v := range s.stats.ByCategory {
		byCategory[k] = v
	}
	return models.SortStats{TotalSorted: s.stats.TotalSorted, ByCategory: byCategory}
}
