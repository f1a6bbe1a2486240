package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/trywear-labs/storefront-backend/api/routes"
	"github.com/trywear-labs/storefront-backend/internal/inventory"
	"github.com/trywear-labs/storefront-backend/internal/loyalty"
	"github.com/trywear-labs/storefront-backend/internal/pricing"
	salesvc "github.com/trywear-labs/storefront-backend/internal/sales"
	"github.com/trywear-labs/storefront-backend/pkg/config"
	"github.com/trywear-labs/storefront-backend/pkg/db"
	"github.com/trywear-labs/storefront-backend/pkg/logger"
	"github.com/trywear-labs/storefront-backend/pkg/metrics"
	"github.com/trywear-labs/storefront-backend/pkg/migrate"
	"github.com/trywear-labs/storefront-backend/pkg/outbox"
	"github.com/trywear-labs/storefront-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	saleMetrics := metrics.NewSaleMetrics(registry)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	calculator, err := pricing.NewCalculator(cfg.Pricing)
	if err != nil {
		logg.Error(context.Background(), "failed to build pricing calculator", err)
		os.Exit(1)
	}

	inventoryService, err := inventory.NewService(
		inventory.NewRepository(dbClient.DB()),
		inventory.MultiplierPolicy{Multiplier: cfg.Inventory.ReorderMultiplier},
		outboxService,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to build inventory service", err)
		os.Exit(1)
	}

	loyaltyService, err := loyalty.NewService(
		loyalty.NewRepository(dbClient.DB()),
		loyalty.ThresholdsFromConfig(cfg.Loyalty),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to build loyalty service", err)
		os.Exit(1)
	}

	salesService, err := salesvc.NewService(salesvc.Deps{
		DB:                 dbClient,
		Repo:               salesvc.NewRepository(dbClient.DB()),
		Calculator:         calculator,
		Inventory:          inventoryService,
		Loyalty:            loyaltyService,
		Outbox:             outboxService,
		Metrics:            saleMetrics,
		Logger:             logg,
		OrderNumberRetries: cfg.Sales.OrderNumberRetries,
		MaxLinesPerOrder:   cfg.Pricing.MaxLinesPerOrder,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build sales service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			salesService,
			inventoryService,
			loyaltyService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
