package authcore

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically deletes expired sessions.
type Sweeper struct {
	sessions *SessionManager
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper returns a sweeper for svc using Config.Session.SweepInterval.
func NewSweeper(svc *Service) *Sweeper {
	return &Sweeper{
		sessions: svc.sessions,
		interval: svc.config.Session.SweepInterval,
		logger:   svc.logger,
	}
}

// Run sweeps once immediately, then on every tick, until ctx is cancelled.
// A zero interval disables sweeping.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	start := time.Now()
	n, err := s.sessions.SweepExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("session sweep failed", slog.Any("error", err))
		}
		return
	}
	s.logger.Info("session sweep complete",
		slog.Int("deleted", n),
		slog.Duration("took", time.Since(start)),
	)
}
