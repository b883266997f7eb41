package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliria/erp-backend/pkg/logger"
)

const defaultTick = 5 * time.Minute

type runRecorder interface {
	ObserveRun(job string, elapsed time.Duration, err error)
}

type ServiceParams struct {
	Logger   *logger.Logger
	Schedule *Schedule
	Lock     Lock
	Metrics  runRecorder
	// Tick is how often the schedule is checked, not how often jobs run.
	Tick time.Duration
}

// Service wakes on every tick and, while it holds the cluster lock, runs the
// jobs that are due.
type Service struct {
	logg     *logger.Logger
	schedule *Schedule
	lock     Lock
	metrics  runRecorder
	tick     time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	case params.Schedule == nil:
		return nil, errors.New("schedule required")
	}
	tick := params.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	return &Service{
		logg:     params.Logger,
		schedule: params.Schedule,
		lock:     params.Lock,
		metrics:  params.Metrics,
		tick:     tick,
		now:      time.Now,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs": s.schedule.Names(),
		"tick": s.tick.String(),
	}), "cron schedule loaded")

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		if err := s.runDue(ctx); err != nil && ctx.Err() == nil {
			s.logg.Error(ctx, "cron tick failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) runDue(ctx context.Context) error {
	due := s.schedule.Due(s.now())
	if len(due) == 0 {
		return nil
	}
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		s.logg.Debug(ctx, "cron lock held by another instance")
		return nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "release cron lock", err)
		}
	}()

	for _, job := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.execute(ctx, job)
	}
	return nil
}

// execute marks the job as ran even on failure so a broken job retries on
// its own period instead of every tick.
func (s *Service) execute(ctx context.Context, job Job) {
	name := job.Name()
	ctx = s.logg.WithField(ctx, "job", name)
	started := s.now()
	err := job.Run(ctx)
	elapsed := s.now().Sub(started)
	s.schedule.MarkRan(name, started)
	if s.metrics != nil {
		s.metrics.ObserveRun(name, elapsed, err)
	}
	ctx = s.logg.WithField(ctx, "elapsed_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "cron job failed", err)
		return
	}
	s.logg.Info(ctx, "cron job finished")
}
