package netmon

import (
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"slices"
	"strings"
	"sync"
	"time"
	"toolshed/internal/models"
	"toolshed/internal/store"
)

const (
	MaxAlerts         = 50
	DefaultAlertLimit = 20
)

type devicesFile struct {
	Devices   map[string]models.Device `json:"devices"`
	LastSaved string                   `json:"lastSaved"`
}

// DeviceStore holds every device ever seen, keyed by MAC, and the alerts
// raised for new ones. Devices are persisted; alerts live in memory only.
type DeviceStore struct {
	mu      sync.RWMutex
	path    string
	devices map[string]models.Device
	alerts  []models.Alert
	logger  *slog.Logger
	now     func() time.Time
}

// OpenDeviceStore loads the devices file at path. A missing or unreadable
// file starts an empty store.
func OpenDeviceStore(path string, logger *slog.Logger) *DeviceStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &DeviceStore{
		path:    path,
		devices: make(map[string]models.Device),
		logger:  logger,
		now:     time.Now,
	}

	var file devicesFile
	err := store.ReadJSON(path, &file)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		logger.Error("error loading devices", "path", path, "error", err)
	default:
		for mac, d := range file.Devices {
			s.devices[mac] = d
		}
		logger.Info("loaded known devices", "count", len(s.devices))
	}
	return s
}

// Update records a sighting of each device and returns the stored records.
// Unknown MACs are flagged new and raise an alert. The file is written once
// per call.
func (s *DeviceStore) Update(seen ...models.Device) []models.Device {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.timestamp()
	out := make([]models.Device, 0, len(seen))
	for _, d := range seen {
		mac := strings.ToLower(d.MAC)
		known, ok := s.devices[mac]
		if !ok {
			d.MAC = mac
			d.FirstSeen = now
			d.LastSeen = now
			d.IsNew = true
			s.devices[mac] = d

			s.alerts = append([]models.Alert{{Type: models.AlertNewDevice, Device: d, Timestamp: now}}, s.alerts...)
			if len(s.alerts) > MaxAlerts {
				s.alerts = s.alerts[:MaxAlerts]
			}
			s.logger.Info("new device detected", "ip", d.IP, "mac", mac)
			out = append(out, d)
			continue
		}

		known.IP = d.IP
		if d.Hostname != nil {
			known.Hostname = d.Hostname
		}
		if d.Vendor != "" {
			known.Vendor = d.Vendor
		}
		known.LastSeen = now
		known.IsNew = false
		s.devices[mac] = known
		out = append(out, known)
	}

	s.save()
	return out
}

func (s *DeviceStore) Get(mac string) (models.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[strings.ToLower(mac)]
	return d, ok
}

// All returns every known device ordered by IP address.
func (s *DeviceStore) All() []models.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(func(models.Device) bool { return true })
}

// Online returns the devices seen within timeout.
func (s *DeviceStore) Online(timeout time.Duration) []models.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-timeout)
	return s.sorted(func(d models.Device) bool { return seenAfter(d, cutoff) })
}

// SetName sets the user-chosen name of a known device.
func (s *DeviceStore) SetName(mac, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	mac = strings.ToLower(mac)
	d, ok := s.devices[mac]
	if !ok {
		return false
	}
	d.CustomName = name
	s.devices[mac] = d
	s.save()
	return true
}

// Alerts returns up to limit alerts, newest first. DefaultAlertLimit applies
// when limit <= 0.
func (s *DeviceStore) Alerts(limit int) []models.Alert {
	if limit <= 0 {
		limit = DefaultAlertLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = min(limit, len(s.alerts))
	out := make([]models.Alert, limit)
	copy(out, s.alerts[:limit])
	return out
}

func (s *DeviceStore) ClearNewFlags() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for mac, d := range s.devices {
		d.IsNew = false
		s.devices[mac] = d
	}
	s.save()
}

// Stats counts devices, treating those seen within timeout as online.
func (s *DeviceStore) Stats(timeout time.Duration) models.NetworkStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-timeout)
	stats := models.NetworkStats{Total: len(s.devices), RecentAlerts: len(s.alerts)}
	for _, d := range s.devices {
		if seenAfter(d, cutoff) {
			stats.Online++
		}
		if d.IsNew {
			stats.New++
		}
	}
	stats.Offline = stats.Total - stats.Online
	return stats
}

// sorted must be called with mu held.
func (s *DeviceStore) sorted(keep func(models.Device) bool) []models.Device {
	out := []models.Device{}
	for _, d := range s.devices {
		if keep(d) {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, compareIP)
	return out
}

// save must be called with mu held.
func (s *DeviceStore) save() {
	file := devicesFile{Devices: s.devices, LastSaved: s.timestamp()}
	if err := store.WriteJSON(s.path, file); err != nil {
		s.logger.Error("error saving devices", "path", s.path, "error", err)
	}
}

func (s *DeviceStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func seenAfter(d models.Device, cutoff time.Time) bool {
	seen, err := time.Parse(time.RFC3339Nano, d.LastSeen)
	if err != nil {
		return false
	}
	return seen.After(cutoff)
}

func compareIP(a, b models.Device) int {
	ipA, errA := netip.ParseAddr(a.IP)
	ipB, errB := netip.ParseAddr(b.IP)
	if errA != nil || errB != nil {
		return strings.Compare(a.IP, b.IP)
	}
	if c := ipA.Compare(ipB); c != 0 {
		return c
	}
	return strings.Compare(a.MAC, b.MAC)
}
