package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"school/internal/config"
	"school/internal/logging"
	"school/internal/queue"
	"school/internal/school"
	"school/internal/store"
	"school/internal/supabase"
)

// Worker drains the shared attendance queue into the record store.
func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Production(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	if cfg.QueueBackend != config.BackendRedis {
		logger.Fatal("worker needs QUEUE_BACKEND=redis; the memory queue is consumed inside the api process")
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var records school.Records
	if cfg.RecordsBackend == config.RecordsPostgres {
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db connect failed", zap.Error(err))
		}
		defer db.Close()
		records = store.NewRepository(db.Client)
	} else {
		provider := supabase.New(cfg.SupabaseURL, cfg.SupabaseKey, cfg.ProviderTimeout)
		if err := provider.Health(ctx); err != nil {
			logger.Warn("provider not reachable yet", zap.Error(err))
		}
		records = store.NewTables(provider)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		logger.Warn("redis not reachable yet; consumer will keep retrying", zap.String("addr", cfg.RedisAddr))
	}

	svc := school.NewService(nil, records, logger)
	logger.Info("worker started, waiting for attendance")
	if err := svc.ConsumeAttendance(ctx, queue.NewRedisQueue(redisClient.Client, "")); err != nil {
		logger.Error("consumer failed", zap.Error(err))
	}
	logger.Info("worker stopped")
}
