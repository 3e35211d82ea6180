package ingestion

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// SweepStore fails sources stuck in processing longer than olderThan and
// returns how many were swept.
type SweepStore interface {
	SweepStuckSources(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Sweeper periodically fails sources that have been in processing beyond
// the configured timeout, so a crashed or lost ingestion never leaves a
// source polling as processing forever.
type Sweeper struct {
	store   SweepStore
	timeout time.Duration
	cron    *cron.Cron
	logger  *slog.Logger
}

func NewSweeper(store SweepStore, timeout time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:   store,
		timeout: timeout,
		cron:    cron.New(),
		logger:  logger.With("component", "sweeper"),
	}
}

// Start schedules the sweep every minute until Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc("@every 1m", func() {
		swept, err := s.store.SweepStuckSources(ctx, s.timeout)
		if err != nil {
			s.logger.Error("sweep failed", "error", err)
			return
		}
		if swept > 0 {
			s.logger.Warn("swept stuck sources", "count", swept, "older_than", s.timeout)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}
