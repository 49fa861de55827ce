package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"newsroom-server/internal/clients"
	"newsroom-server/internal/config"
	"newsroom-server/internal/database"
	"newsroom-server/internal/handler"
	"newsroom-server/internal/logger"
	"newsroom-server/internal/messaging"
	"newsroom-server/internal/service"
	"newsroom-server/internal/storage"
	"newsroom-server/internal/ws"
	"newsroom-server/pkg/taskmanager"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	rabbitMQConnectAttempts = 5
	rabbitMQConnectDelay    = 3 * time.Second
	shutdownTimeout         = 15 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: "json", OutputPath: "stdout"})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// PostgreSQL
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		zapLogger.Fatal("Failed to parse database config", zap.Error(err))
	}
	poolConfig.MaxConns = int32(cfg.DBMaxConns)
	poolConfig.MaxConnIdleTime = cfg.DBIdleTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		zapLogger.Fatal("Failed to create database pool", zap.Error(err))
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		zapLogger.Fatal("Failed to ping database", zap.Error(err))
	}

	if err := database.RunMigrations(pool); err != nil {
		zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("Failed to ping redis", zap.Error(err))
	}

	// RabbitMQ
	rabbitConn, err := connectRabbitMQ(cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer rabbitConn.Close()

	// Storage
	store, err := storage.NewSupabaseStore(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create object store", zap.Error(err))
	}
	urlCache := storage.NewRedisURLCache(redisClient, cfg.PublicURLCacheTTL, zapLogger)

	// Provider clients
	aiClient, err := clients.NewAIClient(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create AI client", zap.Error(err))
	}
	elevenLabs := clients.NewElevenLabsClient(cfg, zapLogger)
	wavespeed := clients.NewWavespeedClient(cfg, zapLogger)
	gemini, err := clients.NewGeminiClient(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create Gemini client", zap.Error(err))
	}
	defer gemini.Close()
	youtube := clients.NewYouTubeClient(cfg, zapLogger)

	// Messaging and websocket fan-out
	progressPublisher, err := messaging.NewRabbitMQProgressPublisher(rabbitConn, cfg.ClientUpdatesQueueName, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create progress publisher", zap.Error(err))
	}
	connManager := ws.NewConnectionManager(zapLogger)
	consumer, err := messaging.NewProgressConsumer(rabbitConn, cfg.ClientUpdatesQueueName, connManager, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create progress consumer", zap.Error(err))
	}
	defer consumer.Close()
	go func() {
		if err := consumer.StartConsuming(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("Progress consumer stopped", zap.Error(err))
		}
	}()

	// Services
	tasks := taskmanager.New()
	defer tasks.Close()

	repo := database.NewPgProductionRepository(pool, zapLogger)
	stepManager := service.NewWizardStepManager(zapLogger)
	newsService := service.NewNewsService(aiClient, zapLogger)
	scriptService := service.NewScriptService(aiClient, gemini, cfg.ScriptModel, cfg.ScriptTokenLimit, zapLogger)
	videoGenerator := service.NewFallbackVideoGenerator(wavespeed, gemini, zapLogger)
	segmentGenerator := service.NewSegmentGenerator(
		repo, pool, store, elevenLabs, videoGenerator, progressPublisher,
		cfg.ElevenLabsVoiceID, cfg.AudioConcurrency, cfg.VideoConcurrency, zapLogger)
	renderer := service.NewWavespeedFinalRenderer(wavespeed, store, cfg.WavespeedMergeModel, zapLogger)
	wizardService := service.NewWizardService(
		repo, pool, stepManager, newsService, scriptService, segmentGenerator,
		renderer, youtube, progressPublisher, tasks, zapLogger)
	assetService := service.NewAssetService(store, urlCache, elevenLabs, zapLogger)

	// HTTP surface
	router := handler.NewRouter(cfg, zapLogger,
		handler.NewProxyHandler(cfg, zapLogger),
		handler.NewAssetHandler(assetService, zapLogger),
		handler.NewProductionHandler(wizardService, zapLogger),
		handler.NewWSHandler(connManager, zapLogger),
		handler.NewHealthHandler(cfg, pool, redisClient, zapLogger),
	)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		zapLogger.Info("Newsroom server starting", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Error("HTTP server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zapLogger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := tasks.Shutdown(shutdownCtx); err != nil {
		zapLogger.Warn("Background tasks did not drain in time", zap.Error(err))
	}
	zapLogger.Info("Newsroom server stopped")
}

// connectRabbitMQ dials with retries so the server survives broker
// startup races in compose environments.
func connectRabbitMQ(url string, logger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	for attempt := 1; attempt <= rabbitMQConnectAttempts; attempt++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		logger.Warn("RabbitMQ connection failed, retrying",
			zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(rabbitMQConnectDelay)
	}
	return nil, err
}
