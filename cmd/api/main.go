package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/openbilling/qualpay-bridge/api/routes"
	"github.com/openbilling/qualpay-bridge/internal/binding"
	"github.com/openbilling/qualpay-bridge/internal/host/killbill"
	"github.com/openbilling/qualpay-bridge/internal/paymentmethods"
	"github.com/openbilling/qualpay-bridge/internal/tenantconfig"
	"github.com/openbilling/qualpay-bridge/pkg/config"
	"github.com/openbilling/qualpay-bridge/pkg/db"
	"github.com/openbilling/qualpay-bridge/pkg/logger"
	"github.com/openbilling/qualpay-bridge/pkg/metrics"
	"github.com/openbilling/qualpay-bridge/pkg/migrate"
	"github.com/openbilling/qualpay-bridge/pkg/qualpay"
	"github.com/openbilling/qualpay-bridge/pkg/redis"
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

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	vaultClient, err := qualpay.NewClient(context.Background(), cfg.Qualpay.BaseURL, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create qualpay client", err)
		os.Exit(1)
	}

	hostClient, err := killbill.NewClient(context.Background(), cfg.Killbill, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create killbill client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tenantRegistry := tenantconfig.NewRegistry(cfg.Qualpay)
	paymentService := paymentmethods.NewService(
		paymentmethods.NewRepo(dbClient.DB()),
		vaultClient,
		binding.NewResolver(hostClient),
		tenantRegistry,
		hostClient,
		redisClient,
		metrics.NewVaultSyncMetrics(registry),
		logg,
	)

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
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, registry, paymentService, tenantRegistry),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	errs := multierr.Combine(
		server.Shutdown(drainCtx),
		redisClient.Close(),
		dbClient.Close(),
	)
	if errs != nil {
		logg.Error(ctx, "shutdown finished with errors", errs)
		os.Exit(1)
	}
	logg.Info(ctx, "shutdown complete")
}
