package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/CardScan/internal/config"
	"github.com/dharsanguruparan/CardScan/internal/database"
	"github.com/dharsanguruparan/CardScan/internal/logging"
	"github.com/dharsanguruparan/CardScan/internal/repository"
	"github.com/dharsanguruparan/CardScan/internal/s3storage"
	"github.com/dharsanguruparan/CardScan/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("CARDSCAN_ENV_FILE"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal("ensure schema", zap.Error(err))
	}
	repo := repository.NewScanRepository(pool)

	store, err := s3storage.New(cfg)
	if err != nil {
		logger.Fatal("init storage", zap.Error(err))
	}
	if err := store.EnsureBuckets(ctx); err != nil {
		logger.Fatal("ensure buckets", zap.Error(err))
	}

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.ProcessingPool,
		Logger:      logger.Sugar(),
	})
	processor := worker.NewProcessor(repo, store, logger)
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	logger.Info("worker started", zap.Int("concurrency", cfg.ProcessingPool))
	if err := server.Run(mux); err != nil {
		logger.Error("worker stopped", zap.Error(err))
		os.Exit(1)
	}
}
