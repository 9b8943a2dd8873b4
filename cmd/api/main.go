package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/shoplinehq/shopline-backend/api/routes"
	"github.com/shoplinehq/shopline-backend/internal/address"
	"github.com/shoplinehq/shopline-backend/internal/cart"
	"github.com/shoplinehq/shopline-backend/internal/catalog"
	"github.com/shoplinehq/shopline-backend/internal/checkout"
	"github.com/shoplinehq/shopline-backend/internal/orders"
	"github.com/shoplinehq/shopline-backend/internal/stock"
	"github.com/shoplinehq/shopline-backend/internal/transactions"
	"github.com/shoplinehq/shopline-backend/pkg/config"
	"github.com/shoplinehq/shopline-backend/pkg/db"
	"github.com/shoplinehq/shopline-backend/pkg/logger"
	"github.com/shoplinehq/shopline-backend/pkg/migrate"
	"github.com/shoplinehq/shopline-backend/pkg/payments"
	"github.com/shoplinehq/shopline-backend/pkg/redis"
	"github.com/shoplinehq/shopline-backend/pkg/security"
	"github.com/shoplinehq/shopline-backend/pkg/sequence"
)

const shutdownGrace = 15 * time.Second

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

	gateway, err := payments.NewStripeClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap payment gateway", err)
		os.Exit(1)
	}

	cartRepo := cart.NewRepository(dbClient.DB())
	catalogRepo := catalog.NewRepository(dbClient.DB())
	stockRepo := stock.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())
	transactionsRepo := transactions.NewRepository(dbClient.DB())
	addressRepo := address.NewRepository(dbClient.DB())

	stockLedger, err := stock.NewLedger(stockRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to build stock ledger", err)
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

	cartService, err := cart.NewService(cartRepo, stockLedger, cartCache, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build cart service", err)
		os.Exit(1)
	}

	skuIssuer, err := sequence.NewIssuer(sequence.IssuerParams{
		Category:   sequence.CategorySKU,
		Store:      redisClient,
		CounterKey: redisClient.CounterKey(string(sequence.CategorySKU)),
		TTL:        cfg.Cache.CounterTTL,
		Seed:       catalog.SeedFromLatestSKU(catalogRepo),
		Exists:     catalog.ExistsSKU(catalogRepo),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build sku issuer", err)
		os.Exit(1)
	}
	orderNumbers, err := sequence.NewIssuer(sequence.IssuerParams{
		Category:   sequence.CategoryOrder,
		Store:      redisClient,
		CounterKey: redisClient.CounterKey(string(sequence.CategoryOrder)),
		TTL:        cfg.Cache.CounterTTL,
		Seed:       orders.SeedFromLatestNumber(ordersRepo),
		Exists:     orders.ExistsNumber(ordersRepo),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build order number issuer", err)
		os.Exit(1)
	}
	txNumbers, err := sequence.NewIssuer(sequence.IssuerParams{
		Category:   sequence.CategoryTransaction,
		Store:      redisClient,
		CounterKey: redisClient.CounterKey(string(sequence.CategoryTransaction)),
		TTL:        cfg.Cache.CounterTTL,
		Seed:       transactions.SeedFromLatestNumber(transactionsRepo),
		Exists:     transactions.ExistsNumber(transactionsRepo),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build transaction number issuer", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalogRepo, skuIssuer, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build catalog service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.Params{
		Carts:        cartService,
		CartCache:    cartCache,
		SummaryCache: summaryCache,
		Orders:       ordersRepo,
		Transactions: transactionsRepo,
		Addresses:    addressRepo,
		Stock:        stockLedger,
		OrderNumbers: orderNumbers,
		TxNumbers:    txNumbers,
		Gateway:      gateway,
		Tx:           dbClient,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build checkout service", err)
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
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, cartService, catalogService, checkoutService),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-stopCh:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
