package netmon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"toolshed/internal/models"
)

func TestParseARP(t *testing.T) {
	output := `router.lan (192.168.1.1) at AA:BB:CC:DD:EE:01 [ether] on eth0
? (192.168.1.20) at b8:27:eb:00:00:02 [ether] on eth0
? (192.168.1.30) at <incomplete> on eth0
192.168.1.40 dev eth0 lladdr dc:a6:32:00:00:03 REACHABLE
192.168.1.50 dev eth0 lladdr aa:bb:cc:dd:ee:01 STALE
192.168.1.60 dev eth0 FAILED
`
	devices := ParseARP(output)
	if len(devices) != 3 {
		t.Fatalf("Expected 3 devices, got %+v", devices)
	}

	if devices[0].MAC != "aa:bb:cc:dd:ee:01" || devices[0].IP != "192.168.1.1" {
		t.Errorf("unexpected first device %+v", devices[0])
	}
	if devices[0].Hostname == nil || *devices[0].Hostname != "router.lan" {
		t.Errorf("Expected hostname router.lan, got %v", devices[0].Hostname)
	}
	if devices[1].Hostname != nil {
		t.Errorf("'?' should mean no hostname, got %q", *devices[1].Hostname)
	}
	if devices[2].IP != "192.168.1.40" || devices[2].MAC != "dc:a6:32:00:00:03" {
		t.Errorf("unexpected ip neigh device %+v", devices[2])
	}
}

func TestParseDarwinARP(t *testing.T) {
	output := `? (10.0.0.1) at 0:1a:11:3:4:5 on en0 ifscope [ethernet]
printer (10.0.0.7) at (incomplete) on en0 ifscope [ethernet]
laptop (10.0.0.9) at 3c:5a:b4:aa:bb:cc on en0 ifscope [ethernet]
`
	devices := ParseDarwinARP(output)
	if len(devices) != 2 {
		t.Fatalf("Expected 2 devices, got %+v", devices)
	}
	if devices[0].MAC != "00:1a:11:03:04:05" {
		t.Errorf("Expected padded MAC, got %s", devices[0].MAC)
	}
	if Vendor(devices[0].MAC) != "Google" {
		t.Errorf("Expected Google vendor for %s", devices[0].MAC)
	}
}

func TestParseWindowsARP(t *testing.T) {
	output := `
Interface: 192.168.1.100 --- 0x3
  Internet Address      Physical Address      Type
  192.168.1.1           B8-27-EB-11-22-33     dynamic
  192.168.1.255         ff-ff-ff-ff-ff-ff     static
  192.168.1.2           b8-27-eb-11-22-33     dynamic
`
	devices := ParseWindowsARP(output)
	if len(devices) != 2 {
		t.Fatalf("Expected 2 devices, got %+v", devices)
	}
	if devices[0].MAC != "b8:27:eb:11:22:33" || devices[0].IP != "192.168.1.1" {
		t.Errorf("unexpected device %+v", devices[0])
	}
}

func TestSourceFor(t *testing.T) {
	linux, err := SourceFor("linux")
	if err != nil {
		t.Fatal(err)
	}
	if len(linux.Commands) != 2 || linux.Commands[1][0] != "ip" {
		t.Errorf("linux should fall back to ip neigh, got %v", linux.Commands)
	}
	for _, goos := range []string{"darwin", "windows"} {
		if _, err := SourceFor(goos); err != nil {
			t.Errorf("%s: %v", goos, err)
		}
	}
	if _, err := SourceFor("plan9"); !errors.Is(err, ErrUnsupportedPlatform) {
		t.Errorf("Expected ErrUnsupportedPlatform, got %v", err)
	}
}

func TestVendor(t *testing.T) {
	tests := map[string]string{
		"B8:27:EB:01:02:03": "Raspberry Pi",
		"00:03:93:aa:bb:cc": "Apple",
		"12:34:56:78:9a:bc": UnknownVendor,
		"":                  UnknownVendor,
	}
	for mac, want := range tests {
		if got := Vendor(mac); got != want {
			t.Errorf("Vendor(%q) = %q, want %q", mac, got, want)
		}
	}
}

func hostname(s string) *string { return &s }

func TestDeviceStoreUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	s := OpenDeviceStore(path, nil)

	first := s.Update(models.Device{MAC: "AA:00:00:00:00:01", IP: "10.0.0.2", Hostname: hostname("nas")})
	if !first[0].IsNew || first[0].FirstSeen == "" {
		t.Errorf("Expected a new device, got %+v", first[0])
	}
	if !s.SetName("aa:00:00:00:00:01", "Storage") {
		t.Fatal("SetName should find the device")
	}

	again := s.Update(models.Device{MAC: "aa:00:00:00:00:01", IP: "10.0.0.3"})
	if again[0].IsNew {
		t.Error("seen device should not stay new")
	}
	if again[0].IP != "10.0.0.3" || again[0].CustomName != "Storage" || again[0].FirstSeen != first[0].FirstSeen {
		t.Errorf("update lost fields: %+v", again[0])
	}
	if again[0].Hostname == nil || *again[0].Hostname != "nas" {
		t.Errorf("missing hostname should keep the known one, got %v", again[0].Hostname)
	}

	if alerts := s.Alerts(0); len(alerts) != 1 || alerts[0].Type != models.AlertNewDevice {
		t.Errorf("Expected one new device alert, got %+v", alerts)
	}

	reopened := OpenDeviceStore(path, nil)
	d, ok := reopened.Get("AA:00:00:00:00:01")
	if !ok || d.CustomName != "Storage" {
		t.Errorf("device not persisted: %+v", d)
	}
	if len(reopened.Alerts(0)) != 0 {
		t.Error("alerts should not be persisted")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"lastSaved"`) || !strings.Contains(string(data), `"devices"`) {
		t.Errorf("unexpected file layout: %s", data)
	}
}

func TestDeviceStoreAlertsCapped(t *testing.T) {
	s := OpenDeviceStore(filepath.Join(t.TempDir(), "devices.json"), nil)
	var batch []models.Device
	for i := 0; i < MaxAlerts+10; i++ {
		batch = append(batch, models.Device{MAC: fmt.Sprintf("02:00:00:00:00:%02x", i), IP: "10.0.0.1"})
	}
	s.Update(batch...)

	if got := len(s.Alerts(1000)); got != MaxAlerts {
		t.Errorf("Expected %d alerts, got %d", MaxAlerts, got)
	}
	if got := len(s.Alerts(0)); got != DefaultAlertLimit {
		t.Errorf("Expected default limit %d, got %d", DefaultAlertLimit, got)
	}
	if newest := s.Alerts(1)[0]; newest.Device.MAC != batch[len(batch)-1].MAC {
		t.Errorf("newest alert should come first, got %s", newest.Device.MAC)
	}
}

func TestDeviceStoreOnlineAndStats(t *testing.T) {
	s := OpenDeviceStore(filepath.Join(t.TempDir(), "devices.json"), nil)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	s.Update(models.Device{MAC: "aa:00:00:00:00:01", IP: "10.0.0.10"})
	clock = clock.Add(10 * time.Minute)
	s.Update(models.Device{MAC: "aa:00:00:00:00:02", IP: "10.0.0.9"})

	online := s.Online(5 * time.Minute)
	if len(online) != 1 || online[0].MAC != "aa:00:00:00:00:02" {
		t.Errorf("unexpected online devices %+v", online)
	}

	all := s.All()
	if len(all) != 2 || all[0].IP != "10.0.0.9" {
		t.Errorf("devices should be ordered by IP, got %+v", all)
	}

	stats := s.Stats(5 * time.Minute)
	want := models.NetworkStats{Total: 2, Online: 1, Offline: 1, New: 2, RecentAlerts: 2}
	if stats != want {
		t.Errorf("Expected %+v, got %+v", want, stats)
	}

	s.ClearNewFlags()
	if got := s.Stats(5 * time.Minute).New; got != 0 {
		t.Errorf("Expected no new devices after clearing, got %d", got)
	}
	if s.SetName("ff:ff:ff:ff:ff:ff", "nobody") {
		t.Error("SetName should fail for an unknown device")
	}
}

func TestScanner(t *testing.T) {
	s := &Scanner{
		Store: OpenDeviceStore(filepath.Join(t.TempDir(), "devices.json"), nil),
		Source: Source{
			Commands: [][]string{{"arp", "-a"}, {"ip", "neigh", "show"}},
			Parse:    ParseARP,
		},
		Exec: func(ctx context.Context, name string, args ...string) (string, error) {
			if name == "arp" {
				return "", errors.New("arp: command not found")
			}
			return "192.168.1.40 dev eth0 lladdr b8:27:eb:00:00:03 REACHABLE\n", nil
		},
	}

	if !s.LastScan().IsZero() {
		t.Error("LastScan should be zero before scanning")
	}

	devices, err := s.Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 1 || devices[0].Vendor != "Raspberry Pi" || !devices[0].IsNew {
		t.Errorf("unexpected scan result %+v", devices)
	}
	if s.LastScan().IsZero() || s.Scanning() {
		t.Error("scan state not updated")
	}
	if _, ok := s.Store.Get("b8:27:eb:00:00:03"); !ok {
		t.Error("device should be stored")
	}
}

func TestScannerSingleFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	s := &Scanner{
		Store:  OpenDeviceStore(filepath.Join(t.TempDir(), "devices.json"), nil),
		Source: Source{Commands: [][]string{{"arp", "-a"}}, Parse: ParseARP},
		Exec: func(ctx context.Context, name string, args ...string) (string, error) {
			once.Do(func() { close(started) })
			<-release
			return "", nil
		},
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Scan(context.Background())
	}()

	<-started
	if !s.Scanning() {
		t.Error("Expected a scan in progress")
	}
	devices, err := s.Scan(context.Background())
	if devices != nil || err != nil {
		t.Errorf("concurrent scan should return nil, got %v %v", devices, err)
	}

	close(release)
	<-done
	if s.Scanning() {
		t.Error("scan flag should be cleared")
	}
}

func TestScannerCommandFailure(t *testing.T) {
	s := &Scanner{
		Store:  OpenDeviceStore(filepath.Join(t.TempDir(), "devices.json"), nil),
		Source: Source{Commands: [][]string{{"arp", "-a"}}, Parse: ParseARP},
		Exec: func(ctx context.Context, name string, args ...string) (string, error) {
			return "", errors.New("permission denied")
		},
	}
	if _, err := s.Scan(context.Background()); err == nil {
		t.Error("Expected the command error")
	}
	if !s.LastScan().IsZero() {
		t.Error("failed scan should not set LastScan")
	}
}
