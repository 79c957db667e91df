package http

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docchat/internal/bootstrap"
	"docchat/internal/transport/http/handler"
	"docchat/internal/transport/http/middleware"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter wires every route onto the services held by a. The returned
// stop func shuts down background work owned by the router.
func NewRouter(a *bootstrap.App) (*gin.Engine, func()) {
	gin.SetMode(a.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(a.Logger), middleware.Metrics(a.Metrics))

	healthHandler := handler.NewHealthHandler(a.Config.App.Name, a.Config.App.Env, a.StartedAt, healthChecks(a)...)
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})))
	// Object paths embed a random document id, which is what keeps them
	// unguessable for the ingestion fetcher.
	router.Static("/files", a.Objects.Root())

	authHandler := handler.NewAuthHandler(a.Auth)
	documentHandler := handler.NewDocumentHandler(a.Documents, a.Provisioner, int64(a.Config.Storage.MaxUploadMB)<<20)
	chatHandler := handler.NewChatHandler(a.Chat, a.Metrics)

	limiter, stopLimiter := middleware.NewRateLimiter(a.Config.RateLimit.RPS, a.Config.RateLimit.Burst)
	requireAuth := middleware.AuthJWT(a.Config.Auth.JWTSecret)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", requireAuth, authHandler.Me)

	docs := v1.Group("/documents")
	docs.Use(requireAuth)
	docs.POST("", documentHandler.Upload)
	docs.GET("", documentHandler.List)
	docs.GET("/:id", documentHandler.Get)
	docs.POST("/:id/embeddings", limiter.Middleware(), documentHandler.GenerateEmbeddings)
	docs.POST("/:id/chat", limiter.Middleware(), chatHandler.Ask)
	docs.GET("/:id/chat", chatHandler.Transcript)
	docs.GET("/:id/chat/stream", chatHandler.Stream)

	return router, stopLimiter
}

func healthChecks(a *bootstrap.App) []handler.Check {
	checks := []handler.Check{
		{Name: a.Config.Database.Driver, Probe: func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}},
		{Name: "redis", Probe: func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}},
	}
	if a.MQConn != nil {
		checks = append(checks, handler.Check{Name: "rabbitmq", Probe: func(context.Context) error {
			if a.MQConn.IsClosed() {
				return fmt.Errorf("connection closed")
			}
			return nil
		}})
	}
	if p, ok := a.Index.(pinger); ok {
		checks = append(checks, handler.Check{Name: "qdrant", Probe: p.Ping})
	}
	return checks
}
