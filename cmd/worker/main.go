package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/imagevault/imagevault/internal/infrastructure/cache"
	"github.com/imagevault/imagevault/internal/infrastructure/config"
	"github.com/imagevault/imagevault/internal/infrastructure/observability"
	"github.com/imagevault/imagevault/internal/queue"
)

// The worker binary owns no database and no blob store: everything a job
// needs travels inside its payload, so workers scale out with nothing but a
// Redis address.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	broker := queue.NewRedisBroker(redisClient, queue.RedisOptions{
		Stream:       cfg.Queue.Stream,
		Group:        cfg.Queue.Group,
		Consumer:     cfg.Queue.Consumer,
		MaxLen:       cfg.Queue.MaxLen,
		MaxAttempts:  cfg.Queue.MaxAttempts,
		BackoffBase:  cfg.Queue.BackoffBase,
		BlockTimeout: cfg.Queue.BlockTimeout,
		ReplyTTL:     cfg.Queue.ReplyTTL,
		Workers:      cfg.Queue.Workers,
		MinIdle:      cfg.Queue.MinIdle,
	}, logger)

	worker := queue.NewWorker(broker, cfg.Queue.MaxAttempts, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("worker started",
		zap.String("stream", cfg.Queue.Stream),
		zap.String("group", cfg.Queue.Group),
		zap.Int("workers", cfg.Queue.Workers),
	)

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("worker error", zap.Error(err))
	}

	logger.Info("worker stopped")
}
