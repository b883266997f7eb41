// Package bootstrap is the startup and shutdown sequence shared by every
// binary: .env, config, logger, signal handling and ordered cleanup.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/iliria/erp-backend/pkg/config"
	"github.com/iliria/erp-backend/pkg/logger"
	"github.com/iliria/erp-backend/pkg/metrics"
)

const shutdownTimeout = 15 * time.Second

type closer struct {
	name string
	fn   func(context.Context) error
}

// Process is one running binary.
type Process struct {
	Name   string
	Config *config.Config
	Log    *logger.Logger

	ctx     context.Context
	stop    context.CancelFunc
	closers []closer
}

// Start prepares the process or exits. The returned context is cancelled on
// SIGINT or SIGTERM and already carries env, service and instance fields.
func Start(name string) *Process {
	boot := logger.New(logger.Options{ServiceName: name})
	if err := godotenv.Load(); err != nil {
		boot.Debug(context.Background(), ".env not loaded, using process environment")
	}
	cfg, err := config.Load()
	if err != nil {
		boot.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = name

	logg := logger.New(logger.Options{
		ServiceName: name,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": name,
		"instance":    InstanceID(),
	})
	return &Process{Name: name, Config: cfg, Log: logg, ctx: ctx, stop: stop}
}

func (p *Process) Context() context.Context { return p.ctx }

// Must exits after cleanup when err is set.
func (p *Process) Must(step string, err error) {
	if err == nil {
		return
	}
	p.Log.Error(p.ctx, "failed to "+step, err)
	p.shutdown()
	os.Exit(1)
}

// Defer registers cleanup. Cleanups run in reverse order of registration.
func (p *Process) Defer(name string, fn func() error) {
	p.closers = append(p.closers, closer{name: name, fn: func(context.Context) error { return fn() }})
}

// Serve runs srv until shutdown. A listener failure cancels the process.
func (p *Process) Serve(srv *http.Server) {
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.Log.Error(p.ctx, "http server stopped", err)
			p.stop()
		}
	}()
	p.closers = append(p.closers, closer{name: "http server " + srv.Addr, fn: srv.Shutdown})
	p.Log.Info(p.Log.WithField(p.ctx, "addr", srv.Addr), "http server listening")
}

// ServeMetrics exposes reg on /metrics at the configured port.
func (p *Process) ServeMetrics(reg prometheus.Gatherer) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	p.Serve(&http.Server{Addr: ":" + p.Port(), Handler: mux, ReadHeaderTimeout: 5 * time.Second})
}

// Port prefers the platform's PORT over the configured one.
func (p *Process) Port() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return p.Config.App.Port
}

// Exit runs cleanup and terminates. runErr is the main loop's result; a
// cancelled context counts as a clean stop.
func (p *Process) Exit(runErr error) {
	code := 0
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		p.Log.Error(p.ctx, p.Name+" stopped unexpectedly", runErr)
		code = 1
	}
	if err := p.shutdown(); err != nil {
		p.Log.Error(p.ctx, "error during shutdown", err)
		code = 1
	}
	p.Log.Info(p.ctx, p.Name+" stopped")
	os.Exit(code)
}

func (p *Process) shutdown() error {
	p.stop()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(p.ctx), shutdownTimeout)
	defer cancel()
	var err error
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if cerr := c.fn(ctx); cerr != nil {
			multierr.AppendInto(&err, fmt.Errorf("%s: %w", c.name, cerr))
		}
	}
	p.closers = nil
	return err
}

// InstanceID names this process in logs and lock ownership.
func InstanceID() string {
	if id := os.Getenv("ILIRIA_WORKER_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
