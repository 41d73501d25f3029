package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/retail-price-sweeper/internal/api"
	"github.com/maltedev/retail-price-sweeper/internal/app"
	"github.com/maltedev/retail-price-sweeper/internal/config"
	"github.com/maltedev/retail-price-sweeper/internal/database"
	"github.com/maltedev/retail-price-sweeper/internal/events"
	"github.com/maltedev/retail-price-sweeper/internal/jobs"
	"github.com/maltedev/retail-price-sweeper/internal/logging"
	"github.com/maltedev/retail-price-sweeper/internal/queue"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging, os.Stdout)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env, err := app.Bootstrap(cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}

	runQueue := queue.NewInMemoryQueue(cfg.Queue.MaxSize)
	jobsCfg := jobs.Config{
		Registry:  env.Registry,
		Catalog:   env.Catalog,
		Sweeper:   env.Runner,
		Queue:     runQueue,
		ExportDir: cfg.Paths.Exports,
	}

	var outbox api.OutboxCounter
	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.DBName,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := database.EnsureSchema(ctx, db); err != nil {
			logger.Error("failed to prepare schema", "error", err)
			os.Exit(1)
		}

		outboxRepo := database.NewOutboxRepository(db)
		outbox = outboxRepo
		jobsCfg.Store = database.NewResultRepository(db)
		jobsCfg.Publisher = events.NewPublisher(db, database.DefaultTargetStream, logger)

		if cfg.Redis.Addr != "" {
			redisClient := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer redisClient.Close()

			if err := redisClient.Ping(ctx).Err(); err != nil {
				logger.Error("failed to connect to Redis", "error", err)
				os.Exit(1)
			}

			relay := database.NewRelay(outboxRepo, redisClient, logger, database.RelayConfig{
				PollInterval: cfg.Redis.PollInterval,
				BatchSize:    100,
				StreamMaxLen: cfg.Redis.StreamMaxLen,
			})
			go func() {
				if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("relay stopped with error", "error", err)
				}
			}()
		}
	}

	manager := jobs.NewManager(jobsCfg, logger)
	go manager.StartWorker(ctx)

	handlers := api.NewHandlers(manager, env.Catalog, env.Registry, outbox, logger)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handlers),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()
		runQueue.Close()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr, "retailers", len(env.Registry.Keys()), "products", len(env.Catalog))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
