package core

// scheduler.go runs the store janitor.
//
// The janitor is long-running and context-aware for graceful shutdown. It
// removes tables whose TTL has passed and logs how many it evicted.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultJanitorInterval is used when no interval is configured.
const DefaultJanitorInterval = time.Minute

// StartJanitor evicts expired tables every interval until ctx is done.
// It runs once immediately.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	slog.Info("store janitor started",
		"interval", interval,
		"ttl", s.ttl,
		"max_tables", s.maxTables,
	)

	s.runJanitor()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("store janitor stopped")
			return
		case <-ticker.C:
			s.runJanitor()
		}
	}
}

// runJanitor performs one eviction pass.
func (s *Store) runJanitor() {
	start := time.Now()
	evicted := s.EvictExpired()
	if evicted == 0 {
		slog.Debug("store janitor found nothing to evict", "tables", s.Len())
		return
	}
	slog.Info("evicted expired tables",
		"evicted", evicted,
		"remaining", s.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
