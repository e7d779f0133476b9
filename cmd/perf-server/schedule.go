package main

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

var ErrInvalidSchedule = fmt.Errorf("invalid cron expression")

type scheduler struct {
	expr   string
	now    func() time.Time
	logger log.Logger
}

func newScheduler(expr string, logger log.Logger) (*scheduler, error) {
	if !gronx.New().IsValid(expr) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSchedule, expr)
	}

	return &scheduler{
		expr:   expr,
		now:    time.Now,
		logger: log.With(logger, "component", "scheduler"),
	}, nil
}

// Next returns the first tick of the schedule strictly after the given time.
func (s *scheduler) Next(after time.Time) (time.Time, error) {
	return gronx.NextTickAfter(s.expr, after, false)
}

// Run calls job on every tick until ctx is done. Ticks that pass while job is running are skipped.
func (s *scheduler) Run(ctx context.Context, job func(ctx context.Context), onScheduled func(next time.Time)) error {
	for {
		next, err := s.Next(s.now())
		if err != nil {
			return fmt.Errorf("failed to compute next run: %w", err)
		}
		if onScheduled != nil {
			onScheduled(next)
		}
		level.Info(s.logger).Log("msg", "next run scheduled", "at", next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		job(ctx)
	}
}
