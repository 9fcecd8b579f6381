package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jotishBolds/sbte-import-service/internal/config"
	"github.com/jotishBolds/sbte-import-service/internal/db"
	"github.com/jotishBolds/sbte-import-service/internal/logger"
	"github.com/jotishBolds/sbte-import-service/internal/queue"
	"github.com/jotishBolds/sbte-import-service/internal/storage"
	"github.com/jotishBolds/sbte-import-service/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.Get()

	log.Info().Str("version", cfg.App.Version).Msg("Starting import worker")

	// Initialize database
	database, err := db.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	repo := db.NewRepository(database)

	// Initialize Redis client
	redisClient, err := queue.NewRedisClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	// Initialize sheet archive
	store, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}

	importWorker := worker.NewImportWorker(cfg, repo, store, redisClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info().Msg("Shutting down import worker...")
		cancel()
	}()

	if err := importWorker.Start(ctx); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("Import worker stopped with error")
	}

	importWorker.Stop()
	log.Info().Msg("Import worker exited")
}
