// Package main provides the entry point for the LINKR redirect and
// analytics service.
package main

import (
	"LINKR-Backend/internal/analytics"
	"LINKR-Backend/internal/auth"
	"LINKR-Backend/internal/cache"
	"LINKR-Backend/internal/config"
	"LINKR-Backend/internal/database"
	httpHandler "LINKR-Backend/internal/handler/http"
	"LINKR-Backend/internal/queue"
	"LINKR-Backend/internal/ratelimit"
	"LINKR-Backend/internal/repository/postgres"
	"LINKR-Backend/internal/resolver"
	"LINKR-Backend/internal/service"
	"LINKR-Backend/pkg/logger"
	"context"
	lg "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)
	defer func() {
		if err := log.Sync(); err != nil {
			lg.Printf("ERROR: failed to sync zap logger: %v\n", err)
		}
	}()

	log.Info("starting LINKR redirect service")

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, log); err != nil {
			log.Error("failed to close database connection", zap.Error(err))
		}
	}()

	// Run database migrations if enabled
	if cfg.Database.AutoMigrate {
		log.Info("running database migrations (auto_migrate: true)")
		if err := database.AutoMigrate(db, log); err != nil {
			log.Fatal("failed to run database migrations", zap.Error(err))
		}
	} else {
		log.Info("skipping database migrations (auto_migrate: false)")
	}

	// Single Redis client shared by the cache, the rate limiter and the
	// analytics queue; constructed once and injected explicitly.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		// Redis is a degradation, not a dependency: the cache falls
		// through to the store and the limiter fails open.
		log.Warn("redis unreachable at startup, continuing degraded", zap.Error(err))
	}
	pingCancel()
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("failed to close redis client", zap.Error(err))
		}
	}()

	// Initialize storage and core components
	storage := postgres.New(db, log)
	linkCache := cache.New(cache.NewRedisStore(redisClient), storage, cfg.Cache.TTL, log)
	limiter := ratelimit.New(ratelimit.NewRedisWindowStore(redisClient), log)
	events := queue.NewRedisQueue(redisClient, cfg.Analytics.EnqueueTimeout, log)

	passwordService := auth.NewPasswordService()
	tokenService := auth.NewTokenService(&auth.TokenConfig{
		SecretKey: []byte(cfg.Links.TokenSecret),
		TokenTTL:  cfg.Links.TokenTTL,
		Issuer:    "LINKR-Backend",
	})

	linkService := service.NewLinkService(storage, linkCache, passwordService, tokenService, &cfg.Links, log)

	redirectResolver := resolver.New(linkCache, limiter, events, tokenService, resolver.Policy{
		Limit:  cfg.RateLimit.Redirect.Limit,
		Window: cfg.RateLimit.Redirect.Window,
	}, log)

	// Aggregator and its periodic runner
	aggregator := analytics.NewAggregator(events, storage, log)
	runner := analytics.NewRunner(aggregator, analytics.RunnerConfig{
		Interval:  cfg.Analytics.Interval,
		BatchSize: cfg.Analytics.BatchSize,
	}, log)
	if err := runner.Start(); err != nil {
		log.Fatal("failed to start analytics runner", zap.Error(err))
	}

	// HTTP server
	linksHandler := httpHandler.NewLinksHandler(linkService, limiter, cfg.RateLimit,
		cfg.Links.BaseURL, cfg.Links.TokenTTL, log)
	redirectHandler := httpHandler.NewRedirectHandler(redirectResolver, cfg.Links.Pages, log)
	healthHandler := httpHandler.NewHealthHandler(db, redisClient, events, log)

	httpServer := httpHandler.NewServer(linksHandler, redirectHandler, healthHandler, log)

	server := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      httpServer.SetupRoutes(),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	log.Info("starting HTTP server", zap.String("address", cfg.HTTPServer.Address))

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down LINKR service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown HTTP server", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	// Stop the runner last so a final drain can still flush queued events
	if err := runner.Stop(); err != nil {
		log.Error("failed to stop analytics runner", zap.Error(err))
	}
}
