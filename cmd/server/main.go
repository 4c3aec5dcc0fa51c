package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/vibe-kanban/webhooks/internal/config"
	"github.com/vibe-kanban/webhooks/internal/delivery"
	"github.com/vibe-kanban/webhooks/internal/domain"
	"github.com/vibe-kanban/webhooks/internal/httpapi"
	"github.com/vibe-kanban/webhooks/internal/migrations"
	"github.com/vibe-kanban/webhooks/internal/repository"
	"github.com/vibe-kanban/webhooks/pkg/database"
	"github.com/vibe-kanban/webhooks/pkg/logger"
	"github.com/vibe-kanban/webhooks/pkg/obs"
)

// osExit is a variable so tests can stub os.Exit.
var osExit = os.Exit

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	appLogger := logger.NewLogger(cfg.LogLevel)
	appLogger.WithField("http_addr", cfg.HTTPAddr).Info("starting webhook delivery service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		appLogger.WithField("error", err.Error()).Fatal("failed to open database")
		osExit(1)
		return
	}
	defer db.Close()

	if err := migrations.Run(ctx, db); err != nil {
		appLogger.WithField("error", err.Error()).Fatal("failed to run migrations")
		osExit(1)
		return
	}

	subscriptionRepo := repository.NewSubscriptionRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)

	engine := delivery.NewEngine(nil, appLogger)
	trigger := delivery.NewTrigger(subscriptionRepo, deliveryRepo, appLogger)
	_ = trigger // not used by this binary: nothing here emits domain events

	subscriptionService := delivery.NewSubscriptionService(
		subscriptionRepo, deliveryRepo, domain.NewAlwaysExistsProjectChecker(), engine, appLogger,
	)

	worker := delivery.NewWorker(
		subscriptionRepo, deliveryRepo, engine, appLogger, cfg.WorkerPollInterval,
		delivery.WithCleanupInterval(cfg.CleanupInterval),
		delivery.WithRetentionDays(cfg.DeliveryRetentionDays),
	)

	subscriptionHandler := httpapi.NewSubscriptionHandler(subscriptionService, appLogger)
	router := httpapi.NewRouter(subscriptionHandler)

	metricsHandler, err := obs.Init("webhooks")
	if err != nil {
		appLogger.WithField("error", err.Error()).Fatal("failed to initialize metrics")
		osExit(1)
		return
	}

	apiServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: obs.WrapHandler(router),
	}
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux(metricsHandler),
	}

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	go func() {
		defer wg.Done()
		appLogger.WithField("addr", cfg.HTTPAddr).Info("management API listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithField("error", err.Error()).Error("management API server stopped")
		}
	}()

	go func() {
		defer wg.Done()
		appLogger.WithField("addr", cfg.MetricsAddr).Info("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithField("error", err.Error()).Error("metrics server stopped")
		}
	}()

	<-ctx.Done()
	appLogger.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	apiServer.Shutdown(shutdownCtx)
	metricsServer.Shutdown(shutdownCtx)

	wg.Wait()
	appLogger.Info("webhook delivery service stopped")
}

func metricsMux(metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler)
	return mux
}
