package runs

import (
	"context"
	"time"

	"github.com/owamns/clinmr/internal/shared/logging"
)

// Sweeper periodically deletes finished runs older than the retention period.
type Sweeper struct {
	interval  time.Duration
	retention time.Duration
	service   *Service
	logger    logging.Logger
	now       func() time.Time
}

func NewSweeper(interval, retention time.Duration, service *Service, logger logging.Logger) *Sweeper {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Sweeper{
		interval:  interval,
		retention: retention,
		service:   service,
		logger:    logger,
		now:       time.Now,
	}
}

// Start blocks until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep deletes expired runs once and reports how many were removed.
func (s *Sweeper) Sweep() int {
	cutoff := s.now().Add(-s.retention)
	removed := 0
	for _, status := range []Status{StatusCompleted, StatusFailed} {
		finished, _, err := s.service.List(Filter{Status: &status})
		if err != nil {
			s.logger.Error("Failed to list finished runs", "status", status, "error", err)
			continue
		}
		for _, run := range finished {
			if run.CompletedAt == nil || !run.CompletedAt.Before(cutoff) {
				continue
			}
			s.logger.Info("Removing expired run", "run_id", run.ID, "job", run.Job)
			if err := s.service.Delete(run.ID); err != nil {
				s.logger.Error("Failed to remove expired run", "run_id", run.ID, "error", err)
				continue
			}
			removed++
		}
	}
	return removed
}
