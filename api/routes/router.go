package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iliria/erp-backend/api/controllers"
	"github.com/iliria/erp-backend/api/middleware"
	"github.com/iliria/erp-backend/internal/categories"
	"github.com/iliria/erp-backend/internal/inventory"
	"github.com/iliria/erp-backend/internal/media"
	"github.com/iliria/erp-backend/internal/notifications"
	"github.com/iliria/erp-backend/internal/offers"
	"github.com/iliria/erp-backend/internal/orgs"
	"github.com/iliria/erp-backend/internal/products"
	"github.com/iliria/erp-backend/internal/usage"
	"github.com/iliria/erp-backend/pkg/auth"
	"github.com/iliria/erp-backend/pkg/config"
	"github.com/iliria/erp-backend/pkg/logger"
	"github.com/iliria/erp-backend/pkg/metrics"
	"github.com/iliria/erp-backend/pkg/redis"
)

// Services bundles the domain services the API exposes.
type Services struct {
	Orgs          orgs.Service
	Categories    categories.Service
	Products      products.Service
	Inventory     inventory.Service
	Offers        offers.Service
	Media         media.Service
	Usage         usage.Service
	Notifications notifications.Service
}

// Infra bundles the shared infrastructure the middleware stack needs.
type Infra struct {
	Tokens      *auth.Verifier
	Pingers     map[string]controllers.Pinger
	Idempotency redis.IdempotencyStore
	RateLimiter redis.RateLimiter
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, infra Infra, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.AccessLog(logg),
		middleware.Metrics(infra.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	sendPolicy := middleware.RateLimitPolicy{
		Name:   "send_offer",
		Limit:  cfg.Offers.SendLimit,
		Window: cfg.Offers.SendWindow,
	}
	sendLimit := middleware.OrgRateLimit(sendPolicy, infra.RateLimiter, logg)
	manager := middleware.RequireManager(logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, infra.Pingers))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler(infra.Gatherer))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(infra.Tokens, logg))

		r.Post("/v1/orgs", controllers.OrgBootstrap(svc.Orgs, logg))
		r.Get("/v1/org", controllers.OrgCurrent(svc.Orgs, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.OrgContext(svc.Orgs, logg))
			r.Use(middleware.Idempotency(infra.Idempotency, cfg.Offers.IdempotencyTTL, logg))

			r.With(sendLimit).Post("/send-offer", controllers.SendOffer(svc.Offers, logg))

			r.Route("/v1", func(r chi.Router) {
				r.Get("/settings", controllers.SettingsGet(svc.Orgs, logg))
				r.With(manager).Put("/settings", controllers.SettingsUpdate(svc.Orgs, logg))

				r.Route("/categories", func(r chi.Router) {
					r.Get("/", controllers.CategoriesList(svc.Categories, logg))
					r.Post("/", controllers.CategoriesCreate(svc.Categories, logg))
					r.Get("/next-code", controllers.CategoriesNextCode(svc.Categories, logg))
					r.Put("/{id}", controllers.CategoriesUpdate(svc.Categories, logg))
					r.With(manager).Delete("/{id}", controllers.CategoriesDelete(svc.Categories, logg))
				})

				r.Route("/products", func(r chi.Router) {
					r.Get("/", controllers.ProductsList(svc.Products, logg))
					r.Post("/", controllers.ProductsCreate(svc.Products, logg))
					r.Get("/next-code", controllers.ProductsNextCode(svc.Products, logg))
					r.Get("/{id}", controllers.ProductsGet(svc.Products, logg))
					r.Put("/{id}", controllers.ProductsUpdate(svc.Products, logg))
					r.With(manager).Delete("/{id}", controllers.ProductsDelete(svc.Products, logg))
					r.Post("/{id}/image", controllers.ProductsUploadImage(svc.Media, cfg.Media.MaxUploadBytes(), logg))
				})

				r.Get("/dashboard", controllers.Dashboard(svc.Products, logg))

				r.Get("/txns", controllers.TxnsList(svc.Inventory, logg))
				r.Post("/txns", controllers.TxnsApply(svc.Inventory, logg))

				r.Route("/offers", func(r chi.Router) {
					r.Get("/", controllers.OffersList(svc.Offers, logg))
					r.Post("/", controllers.OffersCreate(svc.Offers, logg))
					r.Get("/next-number", controllers.OffersNextNumber(svc.Offers, logg))
					r.Get("/{id}", controllers.OffersGet(svc.Offers, logg))
					r.Get("/{id}/print", controllers.OffersPrint(svc.Offers, logg))
					r.With(sendLimit).Post("/{id}/send", controllers.OffersSend(svc.Offers, logg))
					r.Post("/{id}/convert", controllers.OffersConvert(svc.Offers, logg))
				})

				r.Get("/usage", controllers.UsageMetrics(svc.Usage, logg))

				r.Route("/notifications", func(r chi.Router) {
					r.Get("/", controllers.NotificationsList(svc.Notifications, logg))
					r.Post("/read-all", controllers.NotificationsMarkAllRead(svc.Notifications, logg))
					r.Post("/{id}/read", controllers.NotificationsMarkRead(svc.Notifications, logg))
				})
			})
		})
	})

	return r
}
