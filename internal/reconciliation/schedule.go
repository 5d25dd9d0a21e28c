package reconciliation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler fires the annual batch run. It wakes on a coarse interval
// and runs reconciliation for the previous calendar year once per year,
// relying on the job's skip path to make redundant wakeups cheap.
type Scheduler struct {
	log    *zap.Logger
	job    *Job
	cfg    Config
	mu     sync.Mutex
	ranFor int
}

func NewScheduler(log *zap.Logger, job *Job) *Scheduler {
	return &Scheduler{
		log: log.Named("reconciliation.scheduler"),
		job: job,
		cfg: job.jobCfg,
	}
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	targetYear := s.job.clock.Now().UTC().Year() - 1

	s.mu.Lock()
	alreadyRan := s.ranFor >= targetYear
	s.mu.Unlock()
	if alreadyRan {
		return
	}

	summary, err := s.job.Run(ctx, targetYear)
	if err != nil {
		s.log.Warn("scheduled reconciliation failed, will retry on next tick",
			zap.Int("year", targetYear),
			zap.Error(err),
		)
		return
	}

	s.mu.Lock()
	s.ranFor = targetYear
	s.mu.Unlock()

	s.log.Info("scheduled reconciliation finished",
		zap.Int("year", summary.Year),
		zap.Int("success", summary.SuccessCount),
		zap.Int("skipped", summary.SkipCount),
	)
}
