// Package main is the entry point for the evolution-gateway HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/popeskul/evolution-gateway/evolution"
	"github.com/popeskul/evolution-gateway/internal/cache"
	"github.com/popeskul/evolution-gateway/internal/config"
	"github.com/popeskul/evolution-gateway/internal/handler"
	"github.com/popeskul/evolution-gateway/internal/middleware"
	"github.com/popeskul/evolution-gateway/internal/repository"
	"github.com/popeskul/evolution-gateway/internal/service"
	"github.com/popeskul/evolution-gateway/webhook"
)

const (
	defaultConfigPath = "config.yaml"
	shutdownTimeout   = 10 * time.Second
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(logger); err != nil {
		logger.Fatal("Gateway stopped with error", zap.Error(err))
	}
	logger.Info("Server exited")
}

func run(logger *zap.Logger) error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}()

	// Redis backs dedupe and delivery tracking only; the gateway starts
	// degraded without it.
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis is unreachable, starting degraded", zap.Error(err))
	}
	cancelPing()

	client, err := evolution.NewClient(cfg.Evolution.ClientConfig(), evolution.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create evolution client: %w", err)
	}

	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, cache.NewRedisCache(redisClient), client, logger)

	events := webhook.NewRouter(logger)
	svc.Event.RegisterHandlers(events)
	webhookHandler := webhook.NewHandler(events, webhook.HandlerOptions{
		Secret:          cfg.Webhook.Secret,
		SignatureHeader: cfg.Webhook.SignatureHeader,
		MaxBodyBytes:    cfg.Webhook.MaxBodyBytes,
		Sink:            svc.Event,
		Logger:          logger,
	})
	if cfg.Webhook.Secret == "" {
		logger.Warn("Webhook secret is empty, signatures are not verified")
	}

	router := setupRouter(handler.NewHandler(svc, webhookHandler, logger), logger)

	chain, rateLimiter := middleware.Chain(middleware.NewConfig(cfg.Middleware, logger))
	defer rateLimiter.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      chain(router),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.Scheduler.AutoStart {
		if err := svc.Scheduler.Start(); err != nil {
			logger.Error("Failed to start scheduler on startup", zap.Error(err))
		} else {
			logger.Info("Scheduler started automatically on application startup")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server",
			zap.String("address", srv.Addr),
			zap.String("instance", cfg.Evolution.Instance))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down server...")

		if svc.Scheduler.IsRunning() {
			if err := svc.Scheduler.Stop(); err != nil {
				logger.Error("Failed to stop scheduler", zap.Error(err))
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
