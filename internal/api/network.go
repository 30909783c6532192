package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
	"toolshed/internal/config"
	"toolshed/internal/netmon"
)

// NetworkServer exposes the device store and triggers ARP scans.
type NetworkServer struct {
	cfg     config.NetworkConfig
	store   *netmon.DeviceStore
	scanner *netmon.Scanner
	logger  *slog.Logger

	// scanCtx bounds scans started from the API. It outlives the request.
	scanCtx context.Context
}

func NewNetworkServer(ctx context.Context, cfg config.NetworkConfig, store *netmon.DeviceStore, scanner *netmon.Scanner, logger *slog.Logger) *NetworkServer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &NetworkServer{cfg: cfg, store: store, scanner: scanner, logger: logger, scanCtx: ctx}
}

func (s *NetworkServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/devices", s.handleDevices)
	mux.HandleFunc("GET /api/devices/online", s.handleOnline)
	mux.HandleFunc("GET /api/devices/{mac}", s.handleDevice)
	mux.HandleFunc("POST /api/devices/{mac}/name", s.handleSetName)
	mux.HandleFunc("POST /api/scan", s.handleScan)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("POST /api/alerts/clear", s.handleClearAlerts)
	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("GET /", indexHandler("Network Device Monitor", s.cfg.Port, []string{
		"GET /api/devices",
		"GET /api/devices/online",
		"GET /api/devices/{mac}",
		"POST /api/devices/{mac}/name",
		"POST /api/scan",
		"GET /api/stats",
		"GET /api/alerts",
		"POST /api/alerts/clear",
	}))
	return middleware(mux, s.logger)
}

// lastScan is the time of the last finished scan, or nil before the first.
func (s *NetworkServer) lastScan() *string {
	t := s.scanner.LastScan()
	if t.IsZero() {
		return nil
	}
	formatted := t.UTC().Format(time.RFC3339Nano)
	return &formatted
}

func (s *NetworkServer) handleDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"devices":  s.store.All(),
		"lastScan": s.lastScan(),
		"scanning": s.scanner.Scanning(),
	})
}

func (s *NetworkServer) handleOnline(w http.ResponseWriter, r *http.Request) {
	minutes := queryInt(r, "timeout", s.cfg.OnlineTimeoutMinutes)
	devices := s.store.Online(time.Duration(minutes) * time.Minute)
	writeJSON(w, http.StatusOK, map[string]any{
		"devices":  devices,
		"count":    len(devices),
		"lastScan": s.lastScan(),
	})
}

func (s *NetworkServer) handleDevice(w http.ResponseWriter, r *http.Request) {
	device, ok := s.store.Get(r.PathValue("mac"))
	if !ok {
		writeError(w, http.StatusNotFound, "Device not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"device": device})
}

func (s *NetworkServer) handleSetName(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	if !s.store.SetName(r.PathValue("mac"), req.Name) {
		writeError(w, http.StatusNotFound, "Device not found")
		return
	}
	writeOK(w, "Device name updated")
}

// handleScan starts a scan in the background and answers right away.
func (s *NetworkServer) handleScan(w http.ResponseWriter, r *http.Request) {
	if s.scanner.Scanning() {
		writeError(w, http.StatusConflict, "Scan already in progress")
		return
	}

	go func() {
		if _, err := s.scanner.Scan(s.scanCtx); err != nil {
			s.logger.Error("manual scan failed", "error", err)
			return
		}
		s.logger.Info("manual scan completed")
	}()

	writeOK(w, "Scan started")
}

func (s *NetworkServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.store.Stats(s.cfg.OnlineTimeout())
	writeJSON(w, http.StatusOK, map[string]any{
		"total":        stats.Total,
		"online":       stats.Online,
		"offline":      stats.Offline,
		"new":          stats.New,
		"recentAlerts": stats.RecentAlerts,
		"lastScan":     s.lastScan(),
		"scanning":     s.scanner.Scanning(),
	})
}

func (s *NetworkServer) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := s.store.Alerts(queryInt(r, "limit", netmon.DefaultAlertLimit))
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts, "count": len(alerts)})
}

func (s *NetworkServer) handleClearAlerts(w http.ResponseWriter, r *http.Request) {
	s.store.ClearNewFlags()
	writeOK(w, "New device flags cleared")
}

func (s *NetworkServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"scanInterval": s.cfg.ScanIntervalMs,
		"enableAlerts": s.cfg.EnableAlerts,
		"alertSound":   s.cfg.AlertSound,
		"autoScan":     s.cfg.AutoScan,
	})
}
