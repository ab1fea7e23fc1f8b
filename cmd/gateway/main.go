package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackload-kz/payment-sub008/internal/application"
	"github.com/hackload-kz/payment-sub008/internal/application/services"
	"github.com/hackload-kz/payment-sub008/internal/config"
	"github.com/hackload-kz/payment-sub008/internal/infrastructure/merchant"
	"github.com/hackload-kz/payment-sub008/internal/infrastructure/persistence"
	"github.com/hackload-kz/payment-sub008/internal/infrastructure/persistence/postgres"
	"github.com/hackload-kz/payment-sub008/internal/infrastructure/persistence/sqlite"
	"github.com/hackload-kz/payment-sub008/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting gateway service",
		"storage", cfg.Storage.Driver,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()

	var store application.Store
	switch cfg.Storage.Driver {
	case "sqlite":
		s, err := sqlite.Open(cfg.Storage.SqlitePath, logger)
		if err != nil {
			logger.Error("failed to open sqlite store", "error", err)
			os.Exit(1)
		}
		defer s.Close()
		store = s
	default:
		db, err := persistence.Connect(ctx, &cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store = postgres.NewStore(db, logger)
	}

	merchantClient := merchant.NewHTTPClient(cfg.Merchant)
	merchants := merchant.NewRetryProvider(merchantClient, cfg.Retry)

	paymentService := services.NewPaymentService(store, merchants, logger, cfg.Payment.TTL)

	expirationWorker := worker.NewExpirationWorker(
		store,
		paymentService,
		cfg.Worker.Interval,
		cfg.Worker.BatchSize,
		logger,
	)

	retentionWorker := worker.NewRetentionWorker(store, cfg.Retention, logger)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go expirationWorker.Start(workerCtx)
	if cfg.Retention.Enabled {
		go retentionWorker.Start(workerCtx)
	}

	var metricsServer *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		metricsServer = &http.Server{
			Addr:    cfg.Metrics.Addr,
			Handler: mux,
		}

		go func() {
			logger.Info("metrics server starting", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	cancelWorkers()

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server forced to shutdown", "error", err)
		}
	}

	logger.Info("gateway exited")
}
