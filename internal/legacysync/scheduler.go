package legacysync

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

type runner interface {
	Run(ctx context.Context, trigger string) (*Report, error)
}

// Scheduler runs a sync at start and then on every tick.
type Scheduler struct {
	runner   runner
	interval time.Duration
	logger   zerolog.Logger
}

func NewScheduler(r runner, interval time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		runner:   r,
		interval: interval,
		logger:   logger.With().Str("component", "legacysync-scheduler").Logger(),
	}
}

// Start blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Msg("booking sync scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("booking sync scheduler stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.runner.Run(ctx, TriggerScheduler)
	switch {
	case err == nil:
	case errors.Is(err, ErrSyncInProgress):
		s.logger.Debug().Msg("booking sync already running, skipping tick")
	case ctx.Err() != nil:
	default:
		s.logger.Error().Err(err).Msg("scheduled booking sync failed")
	}
}
