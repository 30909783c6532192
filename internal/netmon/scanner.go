package netmon

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"toolshed/internal/models"
	"toolshed/internal/sysexec"
)

const lookupTimeout = 2 * time.Second

// Scanner reads the ARP table into a DeviceStore. Only one scan runs at a
// time.
type Scanner struct {
	Store  *DeviceStore
	Source Source
	// Exec runs the source commands, sysexec.Output when nil.
	Exec sysexec.Func
	// Resolver looks up hostnames the ARP listing did not carry. Nil
	// disables the lookup.
	Resolver *net.Resolver
	Logger   *slog.Logger

	scanning atomic.Bool
	mu       sync.RWMutex
	lastScan time.Time
}

// Scan reads the ARP table once and records what it finds. It returns nil
// without scanning when another scan is in progress.
func (s *Scanner) Scan(ctx context.Context) ([]models.Device, error) {
	if !s.scanning.CompareAndSwap(false, true) {
		s.logger().Debug("scan already in progress, skipping")
		return nil, nil
	}
	defer s.scanning.Store(false)

	output, err := sysexec.FirstOf(ctx, s.Exec, s.Source.Commands...)
	if err != nil {
		return nil, err
	}

	devices := s.Source.Parse(output)
	for i := range devices {
		if devices[i].Hostname == nil {
			devices[i].Hostname = s.lookup(ctx, devices[i].IP)
		}
		devices[i].Vendor = Vendor(devices[i].MAC)
	}

	s.mu.Lock()
	s.lastScan = time.Now()
	s.mu.Unlock()

	if len(devices) > 0 {
		devices = s.Store.Update(devices...)
	}
	s.logger().Info("scan complete", "devices", len(devices))
	return devices, nil
}

// Run scans immediately and then every interval until ctx is done.
func (s *Scanner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Scan(ctx); err != nil && ctx.Err() == nil {
			s.logger().Error("scan error", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// LastScan returns when the last scan finished, zero before the first one.
func (s *Scanner) LastScan() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastScan
}

func (s *Scanner) Scanning() bool {
	return s.scanning.Load()
}

func (s *Scanner) lookup(ctx context.Context, ip string) *string {
	if s.Resolver == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	names, err := s.Resolver.LookupAddr(ctx, ip)
	if err != nil || len(names) == 0 {
		return nil
	}
	name := strings.TrimSuffix(names[0], ".")
	return &name
}

func (s *Scanner) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Logger
}
