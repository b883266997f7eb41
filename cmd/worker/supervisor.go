package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/iliria/erp-backend/pkg/logger"
)

type consumer interface {
	Run(ctx context.Context) error
}

type pingFunc func(context.Context) error

type named[T any] struct {
	name string
	v    T
}

// Supervisor runs subscription consumers side by side. The first consumer
// to stop takes the others down with it so the platform restarts the pod.
type Supervisor struct {
	logg      *logger.Logger
	checks    []named[pingFunc]
	consumers []named[consumer]
}

func NewSupervisor(logg *logger.Logger) *Supervisor {
	return &Supervisor{logg: logg}
}

// Require adds a dependency that must answer before any consumer starts.
func (s *Supervisor) Require(name string, ping pingFunc) *Supervisor {
	s.checks = append(s.checks, named[pingFunc]{name, ping})
	return s
}

func (s *Supervisor) Add(name string, c consumer) *Supervisor {
	s.consumers = append(s.consumers, named[consumer]{name, c})
	return s
}

func (s *Supervisor) validate() error {
	if s.logg == nil {
		return errors.New("logger is required")
	}
	if len(s.consumers) == 0 {
		return errors.New("no consumers registered")
	}
	for _, c := range s.consumers {
		if c.v == nil {
			return fmt.Errorf("consumer %s is nil", c.name)
		}
	}
	return nil
}

// ready pings every dependency and reports all failures together.
func (s *Supervisor) ready(ctx context.Context) error {
	var err error
	for _, chk := range s.checks {
		if perr := chk.v(ctx); perr != nil {
			multierr.AppendInto(&err, fmt.Errorf("%s: %w", chk.name, perr))
		}
	}
	return err
}

func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.validate(); err != nil {
		return err
	}
	if err := s.ready(ctx); err != nil {
		return fmt.Errorf("dependencies not ready: %w", err)
	}
	s.logg.Info(s.logg.WithField(ctx, "consumers", len(s.consumers)), "worker dependencies ready")

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range s.consumers {
		g.Go(func() error {
			err := c.v.Run(gctx)
			if gctx.Err() != nil {
				return nil
			}
			if err == nil {
				err = errors.New("returned without error")
			}
			s.logg.Error(s.logg.WithField(ctx, "consumer", c.name), "consumer stopped", err)
			return fmt.Errorf("consumer %s: %w", c.name, err)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
