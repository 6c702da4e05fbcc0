package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	appLog "calfeed/internal/log"
)

// Job is the work run on every tick.
type Job func(ctx context.Context)

// Scheduler runs a Job immediately on Start and then on a cron schedule.
type Scheduler struct {
	schedule string
	job      Job
	cron     *cron.Cron
}

// New validates schedule (standard five-field cron syntax, descriptors such as
// "@hourly" included) and returns a stopped Scheduler.
func New(schedule string, job Job) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("scheduler: invalid schedule %q: %w", schedule, err)
	}
	return &Scheduler{
		schedule: schedule,
		job:      job,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}, nil
}

// Start runs the job once synchronously, then registers it with the cron
// runner. Scheduled runs receive ctx; Stop should be called when ctx ends.
func (s *Scheduler) Start(ctx context.Context) error {
	s.job(ctx)

	if _, err := s.cron.AddFunc(s.schedule, func() {
		if ctx.Err() != nil {
			return
		}
		appLog.Debug("scheduled refresh", "schedule", s.schedule)
		s.job(ctx)
	}); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	s.cron.Start()
	appLog.Info("scheduler started", "schedule", s.schedule)
	return nil
}

// Stop halts future runs and waits for a running job to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	appLog.Info("scheduler stopped")
}
