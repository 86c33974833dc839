package reminders

import (
	"context"
	"time"

	"github.com/wolfman30/salonbook/pkg/logging"
)

// BatchRunner runs one reminder batch.
type BatchRunner interface {
	Run(ctx context.Context) (*Summary, error)
}

// Scheduler runs reminder batches on a fixed interval inside a long-lived
// process. Deployments that trigger batches externally leave it disabled.
type Scheduler struct {
	runner   BatchRunner
	interval time.Duration
	logger   *logging.Logger
}

func NewScheduler(runner BatchRunner, interval time.Duration, logger *logging.Logger) *Scheduler {
	if runner == nil {
		panic("reminders: runner required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{runner: runner, interval: interval, logger: logger}
}

// Run executes a batch immediately and then on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	summary, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("scheduled reminder run failed", "error", err)
		return
	}
	s.logger.Debug("scheduled reminder run complete", "run_id", summary.RunID, "processed", summary.TotalProcessed)
}
