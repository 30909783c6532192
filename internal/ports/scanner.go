package ports

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"
	"toolshed/internal/models"
	"toolshed/internal/sysexec"
)

// Scanner lists listening ports and caches the last successful result.
type Scanner struct {
	Source Source
	// Exec runs the source commands, sysexec.Output when nil.
	Exec   sysexec.Func
	Logger *slog.Logger

	scanning atomic.Bool
	mu       sync.RWMutex
	cached   []models.ListeningPort
}

// Scan lists the listening ports. While another scan is running it returns
// the cached result instead. A failed scan returns the cached result along
// with the error.
func (s *Scanner) Scan(ctx context.Context) ([]models.ListeningPort, error) {
	if !s.scanning.CompareAndSwap(false, true) {
		return s.Cached(), nil
	}
	defer s.scanning.Store(false)

	output, err := sysexec.FirstOf(ctx, s.Exec, s.Source.Commands...)
	if err != nil {
		s.logger().Error("error scanning ports", "error", err)
		return s.Cached(), err
	}

	ports := s.Source.Parse(output)

	s.mu.Lock()
	s.cached = ports
	s.mu.Unlock()

	return slices.Clone(ports), nil
}

// Cached returns the result of the last successful scan.
func (s *Scanner) Cached() []models.ListeningPort {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cached == nil {
		return []models.ListeningPort{}
	}
	return slices.Clone(s.cached)
}

// Run scans immediately and then every interval until ctx is done.
func (s *Scanner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.Scan(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scanner) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Logger
}
