package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "syllasync/internal/log"
)

// Job is one scheduled re-sync run.
type Job func(ctx context.Context)

// Scheduler runs a Job on a cron schedule. Runs never overlap: a tick that
// fires while the previous run is still going is skipped.
type Scheduler struct {
	cron *cron.Cron
	spec string
}

// New validates spec (standard 5-field cron, or descriptors such as
// "@daily") and registers job.
func New(ctx context.Context, spec string, job Job) (*Scheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	if _, err := c.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		appLog.Info("scheduled sync starting", "schedule", spec)
		job(ctx)
	}); err != nil {
		return nil, err
	}

	return &Scheduler{cron: c, spec: spec}, nil
}

// Run starts the scheduler and blocks until ctx is done, then waits for a
// running job to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	appLog.Info("scheduler started", "schedule", s.spec, "next", s.Next())

	<-ctx.Done()

	stopped := s.cron.Stop()
	<-stopped.Done()
	appLog.Info("scheduler stopped")
}

// Next returns the next activation time as RFC3339, or "" if none.
func (s *Scheduler) Next() string {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return ""
	}
	next := entries[0].Next
	if next.IsZero() {
		next = entries[0].Schedule.Next(time.Now())
	}
	return next.Format(time.RFC3339)
}

// RunNow invokes the registered job immediately, outside the schedule.
func (s *Scheduler) RunNow() {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return
	}
	entries[0].WrappedJob.Run()
}
