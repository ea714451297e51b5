package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shadda-scores/internal/config"
	"github.com/shadda-scores/internal/handler"
	"github.com/shadda-scores/internal/kafka"
	"github.com/shadda-scores/internal/memstore"
	"github.com/shadda-scores/internal/postgres"
	"github.com/shadda-scores/internal/redis"
	"github.com/shadda-scores/internal/service"
	"github.com/shadda-scores/internal/websocket"
	"github.com/shadda-scores/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	readiness := map[string]func(context.Context) error{}

	// Persistence
	var store service.Store
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		logger.Warn("using in-memory storage, games are lost on restart")
		store = memstore.New()
	default:
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		postgresRepo, err := postgres.NewRepository(&cfg.Postgres, logger)
		if err != nil {
			logger.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer postgresRepo.Close()
		logger.Info("connected to PostgreSQL")

		if err := postgresRepo.RunMigrations(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		store = postgresRepo
		readiness["postgres"] = postgresRepo.Ping
	}

	// WebSocket hub speaks fateet announcements through the clients
	wsHub := websocket.NewHub(cfg.Game.SpeechLang, logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	gameService := service.NewGameService(store, &cfg.Game, logger)
	gameService.SetAnnouncer(wsHub)
	gameService.AddPublisher(wsHub)
	wsHub.SetStateFunc(func(ctx context.Context, gameID string) (interface{}, error) {
		state, err := gameService.GetGame(ctx, gameID)
		if err != nil {
			return nil, err
		}
		return state, nil
	})

	statsService := service.NewStatisticsService(store, &cfg.Statistics, logger)
	gameService.AddPublisher(statsService)

	if cfg.Redis.Enabled {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		cache, err := redis.NewCache(&cfg.Redis, cfg.Statistics.CacheTTL, logger)
		if err != nil {
			logger.Warn("failed to connect to Redis, continuing without cache", "error", err)
		} else {
			defer cache.Close()
			gameService.SetStandingsCache(cache)
			statsService.SetCache(cache)
			readiness["redis"] = cache.Ping
			logger.Info("connected to Redis")
		}
	}

	// Kafka: commands in, events out
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(&cfg.Kafka, logger)
		if err != nil {
			logger.Warn("failed to create Kafka producer, continuing without events", "error", err)
		} else {
			defer producer.Close()
			gameService.AddPublisher(producer)
		}

		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.CommandsTopic,
		)
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, gameService, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else if err := kafkaConsumer.Start(); err != nil {
			logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
			kafkaConsumer = nil
		} else {
			logger.Info("Kafka consumer started successfully")
		}
	}

	reconcileWorker := worker.NewReconcileWorker(gameService, statsService, &cfg.Reconcile, logger)

	// Repair anything a crash left half-derived before serving
	logger.Info("reconciling games from persisted scores")
	reconcileWorker.RunOnce(ctx, true)

	if cfg.Reconcile.Enabled {
		if err := reconcileWorker.Start(ctx); err != nil {
			logger.Error("failed to start reconcile worker", "error", err)
			os.Exit(1)
		}
	}

	httpHandler := handler.NewHandler(gameService, statsService, wsHub, logger)
	for name, check := range readiness {
		httpHandler.AddReadinessCheck(name, check)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port, "storage", cfg.Storage.Driver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	wsHub.Stop()

	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	if err := reconcileWorker.Stop(); err != nil {
		logger.Error("failed to stop reconcile worker", "error", err)
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
