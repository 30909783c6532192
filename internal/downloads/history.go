package downloads

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
	"toolshed/internal/models"
	"toolshed/internal/store"
)

const (
	MaxHistoryEntries   = 1000
	DefaultHistoryLimit = 100
)

// History is the move log, newest entry first. It is rewritten to its file
// on every change; a failed write is logged and the in-memory log kept.
type History struct {
	mu      sync.RWMutex
	path    string
	entries []models.HistoryEntry
	logger  *slog.Logger
	now     func() time.Time
}

// OpenHistory loads the history file at path. A missing or unreadable file
// starts an empty history.
func OpenHistory(path string, logger *slog.Logger) *History {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &History{path: path, logger: logger, now: time.Now}

	if err := store.ReadJSON(path, &h.entries); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Error("error loading history", "path", path, "error", err)
		h.entries = nil
	}
	return h
}

func (h *History) Add(entry models.HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry.Timestamp = h.now().UTC().Format(time.RFC3339)
	h.entries = append([]models.HistoryEntry{entry}, h.entries...)
	if len(h.entries) > MaxHistoryEntries {
		h.entries = h.entries[:MaxHistoryEntries]
	}
	h.save()
}

// Recent returns up to limit entries, DefaultHistoryLimit when limit <= 0.
func (h *History) Recent(limit int) []models.HistoryEntry {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	limit = min(limit, len(h.entries))
	out := make([]models.HistoryEntry, limit)
	copy(out, h.entries[:limit])
	return out
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
	h.save()
}

// save must be called with mu held.
func (h *History) save() {
	entries := h.entries
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	if err := store.WriteJSON(h.path, entries); err != nil {
		h.logger.Error("error saving history", "path", h.path, "error", err)
	}
}
