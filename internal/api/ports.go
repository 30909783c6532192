package api

import (
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"toolshed/internal/config"
	"toolshed/internal/models"
	"toolshed/internal/ports"
)

// PortServer exposes the listening ports and the user's port preferences.
type PortServer struct {
	cfg     config.PortsConfig
	scanner *ports.Scanner
	prefs   *ports.Preferences
	logger  *slog.Logger
}

func NewPortServer(cfg config.PortsConfig, scanner *ports.Scanner, prefs *ports.Preferences, logger *slog.Logger) *PortServer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &PortServer{cfg: cfg, scanner: scanner, prefs: prefs, logger: logger}
}

func (s *PortServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/ports", s.handlePorts)
	mux.HandleFunc("GET /api/ports/cached", s.handleCached)
	mux.HandleFunc("GET /api/scan", s.handleScan)
	mux.HandleFunc("GET /api/preferences", s.handlePreferences)
	mux.HandleFunc("POST /api/preferences", s.handleReplacePreferences)
	mux.HandleFunc("POST /api/preferences/{port}", s.handleSetPreference)
	mux.HandleFunc("DELETE /api/preferences/{port}", s.handleDeletePreference)
	mux.HandleFunc("GET /api/conflicts", s.handleConflicts)
	mux.HandleFunc("POST /api/kill/{pid}", s.handleKill)
	mux.HandleFunc("GET /api/scan-ranges", s.handleScanRanges)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /", indexHandler("Port Resolver", s.cfg.Port, []string{
		"GET /api/ports",
		"GET /api/ports/cached",
		"GET /api/scan?start=3000&end=9000",
		"GET /api/preferences",
		"POST /api/preferences",
		"POST /api/preferences/{port}",
		"DELETE /api/preferences/{port}",
		"GET /api/conflicts",
		"POST /api/kill/{pid}",
		"GET /api/scan-ranges",
		"GET /api/status",
	}))
	return middleware(mux, s.logger)
}

// scan lists the ports, falling back to the cache when the scan fails.
func (s *PortServer) scan(r *http.Request) []models.ListeningPort {
	listening, err := s.scanner.Scan(r.Context())
	if err != nil {
		s.logger.Warn("port scan failed, serving cached ports", "error", err)
	}
	return listening
}

func (s *PortServer) handlePorts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ports": s.scan(r)})
}

func (s *PortServer) handleCached(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ports": s.scanner.Cached()})
}

func (s *PortServer) handleScan(w http.ResponseWriter, r *http.Request) {
	start := queryInt(r, "start", 1)
	end := queryInt(r, "end", 65535)
	writeJSON(w, http.StatusOK, map[string]any{"ports": ports.FilterRange(s.scan(r), start, end)})
}

func (s *PortServer) handlePreferences(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"preferences": s.prefs.All()})
}

func (s *PortServer) handleReplacePreferences(w http.ResponseWriter, r *http.Request) {
	var prefs map[int]models.PortPreference
	if err := decodeJSON(r, &prefs); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid preferences: "+err.Error())
		return
	}
	if err := s.prefs.Replace(prefs); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, "Preferences saved")
}

func pathPort(r *http.Request) (int, bool) {
	port, err := strconv.Atoi(r.PathValue("port"))
	if err != nil || port < 1 || port > 65535 {
		return 0, false
	}
	return port, true
}

func (s *PortServer) handleSetPreference(w http.ResponseWriter, r *http.Request) {
	port, ok := pathPort(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid port")
		return
	}
	var pref models.PortPreference
	if err := decodeJSON(r, &pref); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid preference: "+err.Error())
		return
	}
	if err := s.prefs.Set(port, pref); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, "Preference added")
}

func (s *PortServer) handleDeletePreference(w http.ResponseWriter, r *http.Request) {
	port, ok := pathPort(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid port")
		return
	}
	if err := s.prefs.Delete(port); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, "Preference deleted")
}

func (s *PortServer) handleConflicts(w http.ResponseWriter, r *http.Request) {
	conflicts := ports.Conflicts(s.scan(r), s.prefs.All())
	writeJSON(w, http.StatusOK, map[string]any{"conflicts": conflicts})
}

func (s *PortServer) handleKill(w http.ResponseWriter, r *http.Request) {
	pid, err := strconv.Atoi(r.PathValue("pid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid pid")
		return
	}
	result := ports.Kill(pid)
	s.logger.Info("kill process", "pid", pid, "success", result.Success, "message", result.Message)
	writeJSON(w, http.StatusOK, result)
}

func (s *PortServer) handleScanRanges(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ranges": s.cfg.ScanRanges})
}

func (s *PortServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"running":         true,
		"totalPorts":      len(s.scanner.Cached()),
		"platform":        runtime.GOOS,
		"refreshInterval": s.cfg.RefreshIntervalMs,
	})
}
