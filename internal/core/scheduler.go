package core

// scheduler.go drops import previews that were never executed.
//
// A preview holds a parsed workbook in memory until its TTL runs out. The
// sweeper is long-running and context-aware for graceful shutdown.

import (
	"context"
	"time"
)

// DefaultSweepInterval is how often expired previews are removed.
const DefaultSweepInterval = time.Minute

// StartPreviewSweeper removes expired previews every interval until ctx is
// cancelled. It blocks; run it in its own goroutine.
func (s *Service) StartPreviewSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	s.logger.Info("preview sweeper started", "interval", interval, "ttl", s.cfg.PreviewTTL)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("preview sweeper stopped")
			return
		case <-ticker.C:
			if n := s.SweepPreviews(); n > 0 {
				s.logger.Info("expired import previews removed", "count", n)
			}
		}
	}
}

// SweepPreviews removes every expired preview and returns how many it removed.
func (s *Service) SweepPreviews() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, p := range s.previews {
		if !now.Before(p.ExpiresAt) {
			delete(s.previews, id)
			removed++
		}
	}
	return removed
}
