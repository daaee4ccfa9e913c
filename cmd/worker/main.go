package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/festlabs/festreg/internal/config"
	"github.com/festlabs/festreg/internal/db"
	"github.com/festlabs/festreg/internal/observability"
	"github.com/festlabs/festreg/internal/reconcile"
	"github.com/festlabs/festreg/internal/repo/postgres"
	"github.com/festlabs/festreg/internal/scheduler"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	logger := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	defer pool.Close()

	prom := observability.NewProm(prometheus.NewRegistry())

	eventsRepo := postgres.NewEventsRepo(pool, prom)
	settingsRepo := postgres.NewSettingsRepo(pool, prom)

	pollInterval := time.Duration(cfg.SchedulerPollSecs) * time.Second

	autoDisable := scheduler.New(scheduler.Config{
		PollInterval: pollInterval,
	}, settingsRepo, scheduler.RealClock(), logger, prom)

	reconciler := reconcile.New(eventsRepo, logger, prom)

	logger.Info("worker has started", "poll_interval", pollInterval.String())

	// periodic counter reconciliation alongside the scheduler loop
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := reconciler.ReconcileAll(ctx); err != nil {
					logger.ErrorContext(ctx, "reconcile sweep failed", "err", err)
				}
			}
		}
	}()

	// Run returns once a scheduled disable fires; an admin can re-arm the
	// deadline afterwards, so go back to polling rather than exiting.
	for {
		if err := autoDisable.Run(ctx); err != nil {
			logger.ErrorContext(ctx, "scheduler loop stopped with error", "err", err)
		}

		select {
		case <-ctx.Done():
			logger.Info("worker shutdown complete")
			return
		case <-time.After(pollInterval):
		}
	}
}
