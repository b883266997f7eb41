package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/iliria/erp-backend/api/controllers"
	"github.com/iliria/erp-backend/api/routes"
	"github.com/iliria/erp-backend/internal/categories"
	"github.com/iliria/erp-backend/internal/inventory"
	"github.com/iliria/erp-backend/internal/media"
	"github.com/iliria/erp-backend/internal/notifications"
	"github.com/iliria/erp-backend/internal/offers"
	"github.com/iliria/erp-backend/internal/orgs"
	"github.com/iliria/erp-backend/internal/products"
	"github.com/iliria/erp-backend/internal/usage"
	"github.com/iliria/erp-backend/pkg/auth"
	"github.com/iliria/erp-backend/pkg/bootstrap"
	"github.com/iliria/erp-backend/pkg/db"
	"github.com/iliria/erp-backend/pkg/mailer"
	"github.com/iliria/erp-backend/pkg/metrics"
	"github.com/iliria/erp-backend/pkg/migrate"
	"github.com/iliria/erp-backend/pkg/outbox"
	"github.com/iliria/erp-backend/pkg/redis"
	"github.com/iliria/erp-backend/pkg/storage/gcs"
)

func main() {
	proc := bootstrap.Start("api")
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

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	domainMetrics := metrics.NewDomainMetrics(reg)

	conn := dbClient.DB()
	emitter := outbox.NewWriter(outbox.NewRepository(conn), logg)
	dashboard := products.NewDashboardCache(redisClient, cfg.Offers.DashboardTTL, logg)
	orgRepo := orgs.NewRepository(conn)
	productRepo := products.NewRepository(conn)

	var sender mailer.Sender = mailer.LogSender{Logger: logg}
	if !cfg.FeatureFlags.DisableEmail {
		client, err := mailer.NewClient(cfg.Sendgrid)
		proc.Must("configure mailer", err)
		sender = client
	}

	tokens, err := auth.NewVerifier(cfg.JWT)
	proc.Must("build token verifier", err)

	var svc routes.Services
	svc.Orgs, err = orgs.NewService(orgRepo, dbClient, emitter)
	proc.Must("build org service", err)
	svc.Categories, err = categories.NewService(categories.NewRepository(conn), orgRepo, dbClient, domainMetrics)
	proc.Must("build category service", err)
	productService, err := products.NewService(productRepo, orgRepo, dbClient, emitter, dashboard, domainMetrics)
	proc.Must("build product service", err)
	svc.Products = productService
	inventoryService, err := inventory.NewService(inventory.NewRepository(conn), productRepo, dbClient, emitter, dashboard, domainMetrics)
	proc.Must("build inventory service", err)
	svc.Inventory = inventoryService
	svc.Offers, err = offers.NewService(offers.Deps{
		Repo:      offers.NewRepository(conn),
		Settings:  orgRepo,
		Tx:        dbClient,
		Emitter:   emitter,
		Stock:     inventoryService,
		Mail:      sender,
		Dashboard: dashboard,
		Metrics:   domainMetrics,
		Logger:    logg,
	}, offers.Options{ListLimit: cfg.Offers.ListLimit})
	proc.Must("build offer service", err)
	svc.Media, err = media.NewService(gcsClient, productService, cfg.Media.MaxUploadBytes(), logg)
	proc.Must("build media service", err)
	svc.Usage, err = usage.NewService(conn, gcsClient, cfg.Usage)
	proc.Must("build usage service", err)
	svc.Notifications, err = notifications.NewService(notifications.NewRepository(conn))
	proc.Must("build notification service", err)

	handler := routes.NewRouter(cfg, logg, routes.Infra{
		Tokens: tokens,
		Pingers: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
			"storage":  gcsClient,
		},
		Idempotency: redisClient,
		RateLimiter: redisClient,
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		Gatherer:    reg,
	}, svc)

	proc.Serve(&http.Server{
		Addr:              ":" + proc.Port(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	})
	<-ctx.Done()
	proc.Exit(nil)
}
