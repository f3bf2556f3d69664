package lifecycle

import (
	"context"
	"time"
)

// Scheduler runs CheckDailySplit at every split boundary. With CatchUp set it
// also checks once on start, covering boundaries missed while the daemon was
// not running.
type Scheduler struct {
	policy  *Policy
	CatchUp bool

	// after is time.After; tests replace it to fire immediately.
	after func(time.Duration) <-chan time.Time
}

func NewScheduler(p *Policy, catchUp bool) *Scheduler {
	return &Scheduler{policy: p, CatchUp: catchUp, after: time.After}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	if s.CatchUp {
		s.check(ctx)
	}

	for {
		now := s.policy.clock.Now()
		next := NextBoundary(now, s.policy.splitHour)
		s.policy.logger.Debug("next daily split check", "at", next)

		select {
		case <-ctx.Done():
			return
		case <-s.after(next.Sub(now)):
			s.check(ctx)
		}
	}
}

func (s *Scheduler) check(ctx context.Context) {
	if _, _, err := s.policy.CheckDailySplit(ctx); err != nil {
		s.policy.logger.Error("daily split check failed", "error", err)
	}
}
