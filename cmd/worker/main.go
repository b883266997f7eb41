package main

import (
	"errors"

	"github.com/iliria/erp-backend/internal/notifications"
	"github.com/iliria/erp-backend/pkg/bootstrap"
	"github.com/iliria/erp-backend/pkg/db"
	"github.com/iliria/erp-backend/pkg/outbox/idempotency"
	"github.com/iliria/erp-backend/pkg/pubsub"
	"github.com/iliria/erp-backend/pkg/redis"
)

func main() {
	proc := bootstrap.Start("worker")
	ctx, cfg, logg := proc.Context(), proc.Config, proc.Log

	dbClient, err := db.New(ctx, cfg.DB, logg)
	proc.Must("connect database", err)
	proc.Defer("database", dbClient.Close)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	proc.Must("connect redis", err)
	proc.Defer("redis", redisClient.Close)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	proc.Must("connect pubsub", err)
	proc.Defer("pubsub", pubsubClient.Close)

	processed, err := idempotency.NewLedger(redisClient, cfg.PubSub.ProcessedTTL)
	proc.Must("build idempotency tracker", err)

	subscription := pubsubClient.DomainSubscription()
	if subscription == nil {
		proc.Must("resolve domain subscription", errors.New("ILIRIA_PUBSUB_DOMAIN_SUBSCRIPTION is empty"))
	}

	notificationConsumer, err := notifications.NewConsumer(
		notifications.NewRepository(dbClient.DB()),
		subscription,
		processed,
		logg,
	)
	proc.Must("build notification consumer", err)

	supervisor := NewSupervisor(logg).
		Require("database", dbClient.Ping).
		Require("redis", redisClient.Ping).
		Require("pubsub", pubsubClient.Ping).
		Add("notifications", notificationConsumer)

	logg.Info(ctx, "starting worker")
	proc.Exit(supervisor.Run(ctx))
}
