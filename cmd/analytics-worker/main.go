package main

import (
	"errors"

	"github.com/iliria/erp-backend/internal/analytics"
	"github.com/iliria/erp-backend/pkg/bigquery"
	"github.com/iliria/erp-backend/pkg/bootstrap"
	"github.com/iliria/erp-backend/pkg/outbox/idempotency"
	"github.com/iliria/erp-backend/pkg/pubsub"
	"github.com/iliria/erp-backend/pkg/redis"
)

func main() {
	proc := bootstrap.Start("analytics-worker")
	ctx, cfg, logg := proc.Context(), proc.Config, proc.Log

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	proc.Must("connect redis", err)
	proc.Defer("redis", redisClient.Close)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	proc.Must("connect pubsub", err)
	proc.Defer("pubsub", pubsubClient.Close)
	subscription := pubsubClient.AnalyticsSubscription()
	if subscription == nil {
		proc.Must("resolve analytics subscription", errors.New("ILIRIA_PUBSUB_ANALYTICS_SUBSCRIPTION is empty"))
	}

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	proc.Must("connect bigquery", err)
	proc.Defer("bigquery", bqClient.Close)
	proc.Must("provision events table", bqClient.EnsureTable(ctx, bigquery.TableSpec{
		Name:           cfg.BigQuery.EventsTable,
		Schema:         analytics.Schema(),
		PartitionField: analytics.PartitionField,
	}))

	tracker, err := idempotency.NewLedger(redisClient, cfg.PubSub.ProcessedTTL)
	proc.Must("build idempotency tracker", err)
	writer, err := analytics.NewWriter(bqClient, cfg.BigQuery.EventsTable, analytics.RetryPolicy{})
	proc.Must("build events writer", err)
	consumer, err := analytics.NewConsumer(subscription, writer, tracker, logg)
	proc.Must("build consumer", err)

	logg.Info(ctx, "starting analytics worker")
	proc.Exit(consumer.Run(ctx))
}
