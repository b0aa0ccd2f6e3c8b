package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"salvage-market/pkg/clock"
)

// Sweeper runs SweepExpirations on a cron schedule.
type Sweeper struct {
	listings *ListingUsecase
	schedule string
	clock    clock.Clock
	logger   *slog.Logger
}

func NewSweeper(listings *ListingUsecase, schedule string, c clock.Clock, logger *slog.Logger) (*Sweeper, error) {
	if !gronx.New().IsValid(schedule) {
		return nil, fmt.Errorf("invalid sweep schedule %q", schedule)
	}
	return &Sweeper{listings: listings, schedule: schedule, clock: c, logger: logger}, nil
}

func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	return s.listings.SweepExpirations(ctx)
}

// Next returns the first tick strictly after t.
func (s *Sweeper) Next(t time.Time) (time.Time, error) {
	return gronx.NextTickAfter(s.schedule, t, false)
}

// Run sweeps once immediately and then on every tick until ctx is done.
// A failed sweep is logged and retried at the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("sweeper started", "schedule", s.schedule)
	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("expiration sweep failed", "error", err)
		}

		now := s.clock.Now()
		next, err := s.Next(now)
		if err != nil {
			return fmt.Errorf("next sweep tick: %w", err)
		}
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("sweeper stopped")
			return nil
		case <-timer.C:
		}
	}
}
