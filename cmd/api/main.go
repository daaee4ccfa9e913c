package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/festlabs/festreg/internal/admission"
	"github.com/festlabs/festreg/internal/allocator"
	"github.com/festlabs/festreg/internal/auth"
	"github.com/festlabs/festreg/internal/config"
	"github.com/festlabs/festreg/internal/db"
	httpx "github.com/festlabs/festreg/internal/http"
	"github.com/festlabs/festreg/internal/observability"
	"github.com/festlabs/festreg/internal/reconcile"
	"github.com/festlabs/festreg/internal/repo/postgres"
	redisrepo "github.com/festlabs/festreg/internal/repo/redis"
	"github.com/festlabs/festreg/internal/scheduler"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	// tracing
	if cfg.OTLPEndpoint != "" {
		shutdown, err := observability.InitTracer(context.Background(), "festreg-api", cfg.OTLPEndpoint)
		if err != nil {
			log.Error("tracer init failed", "err", err)
		} else {
			defer func() {
				ctx, cancel := config.WithTimeout(5 * time.Second)
				defer cancel()
				_ = shutdown(ctx)
			}()
		}
	}

	// metrics
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(promRegistry)

	// storage
	pool, err := db.NewPool(cfg.DBURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	startupCtx, cancelStartup := config.WithTimeout(30 * time.Second)
	defer cancelStartup()

	if err := db.EnsureSchema(startupCtx, pool); err != nil {
		log.Error("schema setup failed", "err", err)
		os.Exit(1)
	}
	if err := db.EnsureSchedulerSettings(startupCtx, pool, cfg); err != nil {
		log.Error("scheduler settings seed failed", "err", err)
		os.Exit(1)
	}

	eventsRepo := postgres.NewEventsRepo(pool, prom)
	registrationsRepo := postgres.NewRegistrationsRepo(pool, prom)
	settingsRepo := postgres.NewSettingsRepo(pool, prom)

	// the open/closed flag is read on every admission; redis keeps that read
	// off postgres when configured
	var settingsStore redisrepo.SchedulerStore = settingsRepo
	if cfg.RedisAddr != "" {
		settingsCache := redisrepo.NewSettingsCache(redisrepo.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, settingsRepo, log)

		pingCtx, cancelPing := config.WithTimeout(2 * time.Second)
		if err := settingsCache.Ping(pingCtx); err != nil {
			log.Warn("redis unavailable, settings reads go straight to postgres", "err", err)
		} else {
			settingsStore = settingsCache
			defer settingsCache.Close()
		}
		cancelPing()
	}

	// domain services
	qrAllocator := allocator.New(eventsRepo, log, prom)
	conflicts := admission.ConflictDetector{DefaultDuration: cfg.ConflictDefaultDuration}
	admissionSvc := admission.NewService(eventsRepo, registrationsRepo, settingsStore, qrAllocator, conflicts, log, prom)
	reconciler := reconcile.New(eventsRepo, log, prom)

	// a missed deadline fires here rather than waiting for the worker tick
	autoDisable := scheduler.New(scheduler.Config{
		PollInterval: time.Duration(cfg.SchedulerPollSecs) * time.Second,
	}, settingsStore, scheduler.RealClock(), log, prom)
	if _, err := autoDisable.RunOnce(startupCtx); err != nil {
		log.Warn("startup scheduler evaluation failed", "err", err)
	}

	jwtManager := auth.NewManager(cfg.JWTSecret, time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute)

	ping := func() error {
		ctx, cancel := config.WithTimeout(1 * time.Second)
		defer cancel()
		return pool.Ping(ctx)
	}

	router := httpx.NewRouter(cfg, log, httpx.Deps{
		Ping:          ping,
		Events:        eventsRepo,
		Admission:     admissionSvc,
		Endpoints:     qrAllocator,
		Registrations: registrationsRepo,
		Settings:      settingsStore,
		Reconciler:    reconciler,
		JWT:           jwtManager,
		Prom:          prom,
		Metrics:       promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
