// Package scheduler re-runs the refresh pass on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"gdqnow/internal/display"
	appLog "gdqnow/internal/log"
	"gdqnow/internal/refresh"
)

// Refresher is the single refresh operation being scheduled.
type Refresher interface {
	Refresh(ctx context.Context, now time.Time) (refresh.Result, time.Duration)
}

// Options controls when passes run.
type Options struct {
	// CronSpec, if set, is a standard 5-field cron expression used instead
	// of the interval returned by the refresher.
	CronSpec string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Scheduler runs a Refresher and forwards every result to a sink.
type Scheduler struct {
	refresher Refresher
	sink      display.Sink
	spec      cron.Schedule
	now       func() time.Time
	logger    cron.Logger
}

// New validates opts. An invalid cron expression is an error here rather
// than at run time.
func New(r Refresher, sink display.Sink, opts Options) (*Scheduler, error) {
	s := &Scheduler{
		refresher: r,
		sink:      sink,
		now:       opts.Now,
		logger:    cronLogger{},
	}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.CronSpec != "" {
		spec, err := cron.ParseStandard(opts.CronSpec)
		if err != nil {
			return nil, fmt.Errorf("scheduler: invalid cron expression %q: %w", opts.CronSpec, err)
		}
		s.spec = spec
	}
	return s, nil
}

// RunOnce performs one pass and hands the result to the sink.
func (s *Scheduler) RunOnce(ctx context.Context) (refresh.Result, time.Duration) {
	res, interval := s.refresher.Refresh(ctx, s.now())
	if s.sink != nil {
		if err := s.sink.Show(res); err != nil {
			appLog.Error("scheduler: display failed", err)
		}
	}
	return res, interval
}

// Run does one pass immediately, then keeps running passes until ctx is
// canceled. Without a cron expression the delay between passes is the
// interval returned by the first pass.
func (s *Scheduler) Run(ctx context.Context) error {
	_, interval := s.RunOnce(ctx)
	if ctx.Err() != nil {
		return nil
	}

	schedule := s.spec
	if schedule == nil {
		schedule = cron.Every(interval)
	}

	c := cron.New(
		cron.WithLogger(s.logger),
		cron.WithChain(cron.Recover(s.logger), cron.SkipIfStillRunning(s.logger)),
	)
	c.Schedule(schedule, cron.FuncJob(func() {
		s.RunOnce(ctx)
	}))

	appLog.Info("scheduler started", "interval", interval.String(), "cron", s.spec != nil)
	c.Start()

	<-ctx.Done()

	// Wait for a pass in flight to finish.
	<-c.Stop().Done()
	appLog.Info("scheduler stopped")
	return nil
}

// cronLogger adapts the app log package to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
