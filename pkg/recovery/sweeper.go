package recovery

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stchstepan/passbolt/pkg/observability"
)

// SweepSchedule is the cron expression for the expired-token sweep.
const SweepSchedule = "@every 1h"

// Sweeper periodically deactivates recovery tokens that outlived their
// lifetime, so a leaked link stops working even if never used.
type Sweeper struct {
	store    *Store
	lifetime time.Duration
	logger   *observability.Logger
	cron     *cron.Cron
}

// NewSweeper creates a sweeper; Start schedules it.
func NewSweeper(store *Store, lifetime time.Duration, logger *observability.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		lifetime: lifetime,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start schedules the sweep and runs the scheduler in its own goroutine.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(SweepSchedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	count, err := s.store.DeactivateExpired(ctx, TypeRecover, s.lifetime)
	if err != nil {
		s.logger.WithError(err).Error("recovery token sweep failed")
		return
	}
	if count > 0 {
		s.logger.WithField("count", count).Info("deactivated expired recovery tokens")
	}
}
