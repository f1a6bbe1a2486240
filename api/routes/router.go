package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trywear-labs/storefront-backend/api/controllers"
	"github.com/trywear-labs/storefront-backend/api/middleware"
	"github.com/trywear-labs/storefront-backend/internal/inventory"
	"github.com/trywear-labs/storefront-backend/internal/loyalty"
	salesvc "github.com/trywear-labs/storefront-backend/internal/sales"
	"github.com/trywear-labs/storefront-backend/pkg/config"
	"github.com/trywear-labs/storefront-backend/pkg/db"
	"github.com/trywear-labs/storefront-backend/pkg/logger"
	"github.com/trywear-labs/storefront-backend/pkg/redis"
)

// NewRouter assembles the HTTP surface: health and metrics stay open,
// everything under /api/v1 requires a cashier token and runs behind the
// idempotency guard.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	salesService salesvc.Service,
	inventoryService inventory.Service,
	loyaltyService loyalty.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	var dbPinger, redisPinger controllers.Pinger
	var idemStore redis.IdempotencyStore
	if dbClient != nil {
		dbPinger = dbClient
	}
	if redisClient != nil {
		redisPinger = redisClient
		idemStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbPinger, redisPinger))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/sales", func(r chi.Router) {
			r.Post("/", controllers.CompleteSale(salesService, logg))
			r.Get("/", controllers.ListOrders(salesService, logg))
			r.Get("/{orderID}", controllers.GetOrder(salesService, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Post("/adjustments", controllers.AdjustStock(dbClient, inventoryService, logg))
			r.Get("/low-stock", controllers.ListLowStock(inventoryService, logg))
			r.Get("/movements", controllers.ListMovements(inventoryService, logg))
		})

		r.Route("/loyalty", func(r chi.Router) {
			r.Get("/accounts/{phone}", controllers.GetLoyaltyAccount(loyaltyService, logg))
			r.Get("/rewards", controllers.ListRewards(loyaltyService, logg))
		})
	})

	return r
}
