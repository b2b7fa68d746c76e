package api

import (
	"crypto/subtle"
	"log/slog"

	"shelfy/internal/api/handlers"
	"shelfy/internal/api/middleware"
	"shelfy/internal/entities"
	"shelfy/internal/vitesy"

	"github.com/gin-gonic/gin"
)

// APIKeyHeader carries the key protecting the /v1 routes
const APIKeyHeader = "X-Shelfy-Key"

// RouterConfig holds dependencies for the API router
type RouterConfig struct {
	Registry  *entities.Registry
	Snapshots handlers.SnapshotSource
	API       vitesy.API
	Tokens    handlers.TokenManager
	APIKey    string
	Logger    *slog.Logger
}

// NewRouter creates and configures the Gin router
func NewRouter(config RouterConfig) *gin.Engine {
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(config.Logger))
	router.Use(middleware.Logging(config.Logger))
	router.Use(middleware.NoiseFilter(config.Logger))

	// Health check (no auth)
	healthHandler := handlers.NewHealthHandler(config.Snapshots)
	router.GET("/health", healthHandler.GetHealth)

	// API v1 routes (authenticated when a key is configured)
	v1 := router.Group("/v1")
	v1.Use(authMiddleware(config.APIKey))
	{
		devicesHandler := handlers.NewDevicesHandler(
			config.Snapshots,
			config.Registry,
			config.Logger,
		)
		v1.GET("/devices", devicesHandler.ListDevices)

		entitiesHandler := handlers.NewEntitiesHandler(
			config.Registry,
			config.Snapshots,
			config.API,
			config.Logger,
		)
		v1.GET("/entities", entitiesHandler.ListEntities)
		v1.GET("/entities/:id", entitiesHandler.GetEntity)
		v1.POST("/buttons/:id/press", entitiesHandler.PressButton)

		if config.Tokens != nil {
			adminHandler := handlers.NewAdminHandler(
				config.Tokens,
				config.Logger,
			)
			v1.GET("/admin/token-status", adminHandler.GetTokenStatus)
			v1.POST("/admin/refresh-token", adminHandler.RefreshToken)
		}
	}

	return router
}

// authMiddleware verifies API key authentication. An empty key leaves the
// routes open.
func authMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		providedKey := c.GetHeader(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) != 1 {
			c.JSON(401, gin.H{
				"error": "Unauthorized",
				"code":  "UNAUTHORIZED",
			})
			c.Abort()
			return
		}
		c.Set(middleware.AuthenticatedKey, true)
		c.Next()
	}
}
