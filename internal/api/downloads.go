package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"toolshed/internal/config"
	"toolshed/internal/downloads"
	"toolshed/internal/dupes"
)

// DownloadServer exposes the sorter state, the sorted files and the move
// history.
type DownloadServer struct {
	cfg     config.DownloadsConfig
	sorter  *downloads.Sorter
	history *downloads.History
	logger  *slog.Logger
}

func NewDownloadServer(cfg config.DownloadsConfig, sorter *downloads.Sorter, history *downloads.History, logger *slog.Logger) *DownloadServer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &DownloadServer{cfg: cfg, sorter: sorter, history: history, logger: logger}
}

func (s *DownloadServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/files", s.handleFiles)
	mux.HandleFunc("DELETE /api/files/{category}/{filename}", s.handleDeleteFile)
	mux.HandleFunc("GET /api/duplicates", s.handleDuplicates)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("DELETE /api/history", s.handleClearHistory)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /", indexHandler("Download Manager", s.cfg.Port, []string{
		"GET /api/status",
		"GET /api/files?category=images",
		"GET /api/duplicates",
		"GET /api/history?limit=100",
		"DELETE /api/history",
		"GET /api/categories",
		"DELETE /api/files/{category}/{filename}",
	}))
	return middleware(mux, s.logger)
}

func (s *DownloadServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"running":    true,
		"watchPath":  s.cfg.WatchPath,
		"sortedPath": s.cfg.SortedPath,
		"stats":      s.sorter.Stats(),
	})
}

func (s *DownloadServer) handleFiles(w http.ResponseWriter, r *http.Request) {
	files, err := downloads.ListFiles(s.cfg.SortedPath, s.cfg.Categories, r.URL.Query().Get("category"))
	if errors.Is(err, downloads.ErrInvalidName) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *DownloadServer) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	category, filename := r.PathValue("category"), r.PathValue("filename")

	err := downloads.DeleteFile(s.cfg.SortedPath, category, filename)
	switch {
	case errors.Is(err, downloads.ErrNotFound):
		writeError(w, http.StatusNotFound, "File not found")
	case errors.Is(err, downloads.ErrInvalidName):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.logger.Info("deleted file", "category", category, "file", filename)
		writeOK(w, "File deleted")
	}
}

func (s *DownloadServer) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := dupes.FindDuplicates(r.Context(), s.cfg.SortedPath, s.logger)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"duplicates": groups})
}

func (s *DownloadServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", downloads.DefaultHistoryLimit)
	writeJSON(w, http.StatusOK, map[string]any{"history": s.history.Recent(limit)})
}

func (s *DownloadServer) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s.history.Clear()
	writeOK(w, "History cleared")
}

func (s *DownloadServer) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": s.cfg.Categories.Names()})
}
