package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs jobs once a day at a fixed local hour.
type Scheduler struct {
	lg    *zap.Logger
	hour  int
	jobs  []Job
	now   func() time.Time
	after func(d time.Duration) <-chan time.Time
}

// NewScheduler creates a Scheduler firing at hour (0-23) every day.
func NewScheduler(lg *zap.Logger, hour int, jobs ...Job) *Scheduler {
	if hour < 0 || hour > 23 {
		hour = 9
	}
	return &Scheduler{
		lg:    lg,
		hour:  hour,
		jobs:  jobs,
		now:   time.Now,
		after: time.After,
	}
}

// NextRun returns the first instant at hour:00 strictly after now, in now's
// location.
func NextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run blocks until ctx is done. Job failures are logged and do not stop the
// schedule.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		next := NextRun(s.now(), s.hour)
		s.lg.Debug("Next scheduled run", zap.Time("at", next))
		select {
		case <-ctx.Done():
			return nil
		case <-s.after(next.Sub(s.now())):
		}
		s.RunAll(ctx)
	}
}

// RunAll executes every job once, in order.
func (s *Scheduler) RunAll(ctx context.Context) {
	for _, j := range s.jobs {
		start := s.now()
		lg := s.lg.With(zap.String("job", j.Name))
		if err := j.Run(ctx); err != nil {
			lg.Error("Job failed", zap.Error(err))
			continue
		}
		lg.Info("Job finished", zap.Duration("took", s.now().Sub(start)))
	}
}
