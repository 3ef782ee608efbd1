package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imagevault/imagevault/internal/adapter/handler"
	"github.com/imagevault/imagevault/internal/infrastructure/middleware"
)

type Router struct {
	engine         *gin.Engine
	authHandler    *handler.AuthHandler
	imageHandler   *handler.ImageHandler
	authMiddleware *middleware.AuthMiddleware
	rateLimiter    *middleware.RateLimiter
	logger         *zap.Logger
}

type RouterConfig struct {
	AuthHandler    *handler.AuthHandler
	ImageHandler   *handler.ImageHandler
	AuthMiddleware *middleware.AuthMiddleware
	RateLimiter    *middleware.RateLimiter
	Logger         *zap.Logger
	Environment    string
}

func NewRouter(cfg RouterConfig) *Router {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	r := &Router{
		engine:         engine,
		authHandler:    cfg.AuthHandler,
		imageHandler:   cfg.ImageHandler,
		authMiddleware: cfg.AuthMiddleware,
		rateLimiter:    cfg.RateLimiter,
		logger:         cfg.Logger,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery(r.logger))
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Logger(r.logger))
	r.engine.Use(middleware.CORS())
	if r.rateLimiter != nil {
		r.engine.Use(r.rateLimiter.Limit())
	}
}

func (r *Router) setupRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.engine.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
		}

		images := api.Group("/images")
		images.Use(r.authMiddleware.RequireAuth())
		{
			images.POST("", r.imageHandler.Upload)
			images.GET("/:path", r.imageHandler.Get)
			images.POST("/:path/transform", r.imageHandler.Transform)
		}
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
