// Package main runs the CardScan HTTP intake. Uploaded images are stored in
// object storage and decoded by cmd/worker.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/CardScan/internal/api"
	"github.com/dharsanguruparan/CardScan/internal/config"
	"github.com/dharsanguruparan/CardScan/internal/database"
	"github.com/dharsanguruparan/CardScan/internal/logging"
	"github.com/dharsanguruparan/CardScan/internal/queue"
	"github.com/dharsanguruparan/CardScan/internal/repository"
	"github.com/dharsanguruparan/CardScan/internal/s3storage"
)

func main() {
	cfg, err := config.Load(os.Getenv("CARDSCAN_ENV_FILE"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal("ensure schema", zap.Error(err))
	}

	store, err := s3storage.New(cfg)
	if err != nil {
		logger.Fatal("init storage", zap.Error(err))
	}
	if err := store.EnsureBuckets(ctx); err != nil {
		logger.Fatal("ensure buckets", zap.Error(err))
	}

	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()
	enqueue := func(ctx context.Context, payload queue.DecodePayload) error {
		return queue.EnqueueDecode(ctx, client, payload)
	}

	srv := api.New(cfg, repository.NewScanRepository(pool), store, enqueue, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}
