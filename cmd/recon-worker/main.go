package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trywear-labs/storefront-backend/internal/recon"
	"github.com/trywear-labs/storefront-backend/pkg/config"
	"github.com/trywear-labs/storefront-backend/pkg/db"
	"github.com/trywear-labs/storefront-backend/pkg/logger"
	"github.com/trywear-labs/storefront-backend/pkg/metrics"
	"github.com/trywear-labs/storefront-backend/pkg/migrate"
	"github.com/trywear-labs/storefront-backend/pkg/outbox"
	"github.com/trywear-labs/storefront-backend/pkg/redis"
)

const lockKeyFormat = "sf:recon-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "recon-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "recon-worker"

	logg = logger.New(logger.Options{
		ServiceName: "recon-worker",
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

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)
	lock, err := recon.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create recon lock", err)
		os.Exit(1)
	}

	reconRepo := recon.NewRepository(dbClient.DB())
	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)

	integrityJob, err := recon.NewOrderIntegrityJob(recon.OrderIntegrityJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repo:        reconRepo,
		Outbox:      outboxService,
		Metrics:     jobMetrics,
		Lookback:    cfg.Recon.LookbackWindow,
		SettleDelay: cfg.Recon.SettleDelay,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order integrity job", err)
		os.Exit(1)
	}

	replayJob, err := recon.NewLedgerReplayJob(recon.LedgerReplayJobParams{
		Logger:  logg,
		DB:      dbClient,
		Repo:    reconRepo,
		Outbox:  outboxService,
		Metrics: jobMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger replay job", err)
		os.Exit(1)
	}

	retentionJob, err := recon.NewOutboxRetentionJob(recon.OutboxRetentionJobParams{
		Logger:        logg,
		Repo:          outboxRepo,
		RetentionDays: cfg.Recon.RetentionDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	service, err := recon.NewService(recon.ServiceParams{
		Logger:   logg,
		Registry: recon.NewRegistry(integrityJob, replayJob, retentionJob),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Recon.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create recon service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting recon worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "recon worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "recon worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
