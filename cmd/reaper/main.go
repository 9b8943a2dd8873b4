package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shoplinehq/shopline-backend/internal/cart"
	"github.com/shoplinehq/shopline-backend/internal/checkout"
	"github.com/shoplinehq/shopline-backend/internal/orders"
	"github.com/shoplinehq/shopline-backend/internal/reaper"
	"github.com/shoplinehq/shopline-backend/internal/transactions"
	"github.com/shoplinehq/shopline-backend/pkg/config"
	"github.com/shoplinehq/shopline-backend/pkg/db"
	"github.com/shoplinehq/shopline-backend/pkg/logger"
	"github.com/shoplinehq/shopline-backend/pkg/metrics"
	"github.com/shoplinehq/shopline-backend/pkg/migrate"
	"github.com/shoplinehq/shopline-backend/pkg/redis"
	"github.com/shoplinehq/shopline-backend/pkg/security"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "reaper"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "reaper",
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	cipher, err := security.NewCipher(cfg.Cache.SnapshotKey)
	if err != nil {
		logg.Error(context.Background(), "failed to build snapshot cipher", err)
		os.Exit(1)
	}
	cartCache, err := cart.NewSnapshotCache(redisClient, cipher, cfg.Cache.SnapshotTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to build cart snapshot cache", err)
		os.Exit(1)
	}
	summaryCache, err := checkout.NewSummaryCache(redisClient, cipher, cfg.Cache.SnapshotTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to build order summary cache", err)
		os.Exit(1)
	}

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)
	lock, err := reaper.NewRedisLock(redisClient, redisClient.LockKey("reaper"), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create reaper lock", err)
		os.Exit(1)
	}

	checkoutJob, err := reaper.NewCheckoutJob(reaper.CheckoutJobParams{
		Logger:       logg,
		Orders:       orders.NewRepository(dbClient.DB()),
		Transactions: transactions.NewRepository(dbClient.DB()),
		CartCache:    cartCache,
		SummaryCache: summaryCache,
		Metrics:      jobMetrics,
		PendingTTL:   cfg.Reaper.PendingTTL,
		BatchSize:    cfg.Reaper.BatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stale checkout job", err)
		os.Exit(1)
	}

	service, err := reaper.NewService(reaper.ServiceParams{
		Logger:   logg,
		Registry: reaper.NewRegistry(checkoutJob),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Reaper.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reaper service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting reaper worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "reaper worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "reaper worker shutting down gracefully")
}
