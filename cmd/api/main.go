package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/imagevault/imagevault/internal/adapter/handler"
	"github.com/imagevault/imagevault/internal/adapter/repository/postgres"
	"github.com/imagevault/imagevault/internal/infrastructure/auth"
	"github.com/imagevault/imagevault/internal/infrastructure/cache"
	"github.com/imagevault/imagevault/internal/infrastructure/config"
	"github.com/imagevault/imagevault/internal/infrastructure/database"
	"github.com/imagevault/imagevault/internal/infrastructure/middleware"
	"github.com/imagevault/imagevault/internal/infrastructure/observability"
	"github.com/imagevault/imagevault/internal/infrastructure/server"
	"github.com/imagevault/imagevault/internal/infrastructure/storage"
	"github.com/imagevault/imagevault/internal/queue"
	authUC "github.com/imagevault/imagevault/internal/usecase/auth"
	imageUC "github.com/imagevault/imagevault/internal/usecase/image"
)

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

	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, cfg.Database.MigrationsPath); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	blobStorage, err := storage.NewS3Storage(cfg.S3)
	if err != nil {
		logger.Fatal("failed to create s3 storage", zap.Error(err))
	}
	if err := blobStorage.EnsureBucket(ctx); err != nil {
		logger.Fatal("failed to ensure bucket", zap.Error(err))
	}

	// Repositories
	userRepo := postgres.NewUserRepo(pool)
	imageRepo := postgres.NewImageRepo(pool)

	// Infrastructure services
	jwtSvc := auth.NewJWTService(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL)
	passwordHasher := auth.NewPasswordHasher(12)

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
	coordinator := queue.NewCoordinator(broker, logger)

	// Use cases
	authSvc := authUC.NewService(userRepo, jwtSvc, passwordHasher)
	imageSvc := imageUC.NewService(imageRepo, blobStorage, coordinator, cfg.Queue.AwaitTimeout, logger)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc)
	imageHandler := handler.NewImageHandler(imageSvc)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtSvc)
	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = middleware.NewRateLimiter(redisClient, cfg.RateLimit)
	}

	router := server.NewRouter(server.RouterConfig{
		AuthHandler:    authHandler,
		ImageHandler:   imageHandler,
		AuthMiddleware: authMiddleware,
		RateLimiter:    rateLimiter,
		Logger:         logger,
		Environment:    cfg.Server.Environment,
	})

	srv := server.NewServer(server.ServerConfig{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Handler:         router.Engine(),
		Logger:          logger,
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("server stopped")
}
