package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iliria/erp-backend/internal/cron"
	"github.com/iliria/erp-backend/internal/orgs"
	"github.com/iliria/erp-backend/internal/usage"
	"github.com/iliria/erp-backend/pkg/bootstrap"
	"github.com/iliria/erp-backend/pkg/db"
	"github.com/iliria/erp-backend/pkg/metrics"
	"github.com/iliria/erp-backend/pkg/migrate"
	"github.com/iliria/erp-backend/pkg/outbox"
	"github.com/iliria/erp-backend/pkg/redis"
	"github.com/iliria/erp-backend/pkg/storage/gcs"
)

func main() {
	proc := bootstrap.Start("cron-worker")
	ctx, cfg, logg := proc.Context(), proc.Config, proc.Log

	dbClient, err := db.New(ctx, cfg.DB, logg)
	proc.Must("connect database", err)
	proc.Defer("database", dbClient.Close)
	proc.Must("run dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	proc.Must("connect redis", err)
	proc.Defer("redis", redisClient.Close)

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	proc.Must("connect storage", err)
	proc.Defer("storage", gcsClient.Close)

	usageService, err := usage.NewService(dbClient.DB(), gcsClient, cfg.Usage)
	proc.Must("build usage service", err)

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		RetentionDays: cfg.Cron.OutboxRetentionDays,
	})
	proc.Must("build outbox retention job", err)

	usageAlerts, err := cron.NewUsageAlertJob(cron.UsageAlertJobParams{
		Logger: logg,
		Orgs:   orgs.NewRepository(dbClient.DB()),
		Usage:  usageService,
	})
	proc.Must("build usage alert job", err)

	lock, err := cron.NewRedisLock(redisClient, cron.LockKey(cfg.App.Env), 0)
	proc.Must("build cron lock", err)

	schedule := cron.NewSchedule().
		Every(cfg.Cron.OutboxRetentionEvery, retention).
		Every(cfg.Cron.UsageAlertEvery, usageAlerts)

	reg := prometheus.NewRegistry()
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Schedule: schedule,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
		Tick:     cfg.Cron.Tick,
	})
	proc.Must("build cron service", err)
	proc.ServeMetrics(reg)

	logg.Info(ctx, "starting cron worker")
	proc.Exit(service.Run(ctx))
}
