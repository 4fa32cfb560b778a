package handler

import (
	"time"

	"github.com/Kartekeya-Sharma/Contract-Guard/config"
	"github.com/Kartekeya-Sharma/Contract-Guard/middleware"
	"github.com/gin-gonic/gin"
)

// NewRouter wires the gateway routes. results may be nil when no result
// store is configured.
func NewRouter(cfg *config.Config, sessions *SessionHandler, results *ResultHandler, health *HealthHandler) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.Server.CORSOrigin))
	router.Use(middleware.RateLimit(cfg.Server.RateLimit, time.Minute, middleware.ByClientIP))

	router.GET("/health", health.Check)

	authHandler := NewAuthHandler(cfg)

	api := router.Group("/api")
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)

		protected.POST("/sessions", sessions.Create)
		protected.GET("/sessions", sessions.List)
		protected.GET("/sessions/:id", sessions.Get)
		protected.DELETE("/sessions/:id", sessions.Delete)
		protected.POST("/sessions/:id/document", sessions.Upload)
		protected.GET("/sessions/:id/document/url", sessions.DocumentURL)
		protected.POST("/sessions/:id/reset", sessions.Reset)
		protected.GET("/sessions/:id/aggregate", sessions.Aggregate)
		protected.POST("/sessions/:id/query",
			middleware.RateLimit(cfg.Server.QueryRateLimit, time.Minute, middleware.ByTenant),
			sessions.Query,
		)

		if results != nil {
			protected.GET("/results/:id", results.Get)
		}
	}

	return router
}
