package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fitsync/lesson-scheduler/internal/api"
	"github.com/fitsync/lesson-scheduler/internal/app"
	"github.com/fitsync/lesson-scheduler/internal/clock"
	"github.com/fitsync/lesson-scheduler/internal/config"
	"github.com/fitsync/lesson-scheduler/internal/metrics"
	"github.com/fitsync/lesson-scheduler/internal/notify"
	"github.com/fitsync/lesson-scheduler/internal/repository"
	"github.com/fitsync/lesson-scheduler/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("Failed to create connection pool", zap.Error(err))
	}
	defer pool.Close()

	migrator, err := app.NewMigrator(pool, cfg.MigrationsPath)
	if err != nil {
		logger.Fatal("Failed to create migrator", zap.Error(err))
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	migrator.Close()

	var notifier service.Notifier = notify.Nop{}
	if cfg.NotifierEnabled() {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.NotifyChatID, logger)
		if err != nil {
			logger.Fatal("Failed to create telegram notifier", zap.Error(err))
		}
		notifier = tg
	}

	store := repository.NewStore(pool)
	clk := clock.System{}

	reservations := service.NewReservationService(store, clk, notifier, logger)
	waitings := service.NewWaitingService(store, clk, logger)
	queries := service.NewScheduleQueryService(store, clk, logger)
	slots := service.NewSlotService(store, clk, notifier, logger)

	metrics.Register()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	api.NewServer(reservations, waitings, queries, slots, logger).Register(mux)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	logger.Info("Lesson scheduling engine started",
		zap.String("environment", cfg.Environment),
		zap.Bool("notifier", cfg.NotifierEnabled()),
	)

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
}
