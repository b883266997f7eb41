package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iliria/erp-backend/pkg/bootstrap"
	"github.com/iliria/erp-backend/pkg/db"
	"github.com/iliria/erp-backend/pkg/metrics"
	"github.com/iliria/erp-backend/pkg/migrate"
	"github.com/iliria/erp-backend/pkg/outbox"
	"github.com/iliria/erp-backend/pkg/outbox/registry"
	"github.com/iliria/erp-backend/pkg/pubsub"
)

func main() {
	proc := bootstrap.Start("outbox-publisher")
	ctx, cfg, logg := proc.Context(), proc.Config, proc.Log

	dbClient, err := db.New(ctx, cfg.DB, logg)
	proc.Must("connect database", err)
	proc.Defer("database", dbClient.Close)
	proc.Must("run dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	proc.Must("connect pubsub", err)
	proc.Defer("pubsub", pubsubClient.Close)

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	proc.Must("build event registry", err)

	out := newPubSubSink(pubsubClient)
	proc.Defer("publishers", func() error { out.Stop(); return nil })

	reg := prometheus.NewRegistry()
	relay, err := NewRelay(RelayDeps{
		Config:   cfg.Outbox,
		Logger:   logg,
		DB:       dbClient,
		Store:    outbox.NewRepository(dbClient.DB()),
		Registry: eventRegistry,
		Sink:     out,
		Metrics:  metrics.NewPublisherMetrics(reg),
	})
	proc.Must("build relay", err)
	proc.ServeMetrics(reg)

	logg.Info(ctx, "starting outbox publisher")
	proc.Exit(relay.Run(ctx))
}
