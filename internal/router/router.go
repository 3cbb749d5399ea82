package router

import (
	"github.com/gin-gonic/gin"
	"github.com/imyashkale/inventoryserver/internal/handlers"
	"github.com/imyashkale/inventoryserver/internal/middleware"
)

// Setup configures and returns the application router
func Setup(
	healthHandler *handlers.HealthHandler,
	serverHandler *handlers.ServerHandler,
	applicationHandler *handlers.ApplicationHandler,
	validator middleware.TokenValidator,
) *gin.Engine {

	// gin.Default's text logger is replaced by the structured request logger
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CORS())

	// API v1 routes
	v1 := router.Group("/api/v1")

	// Health check stays reachable for probes without a token
	v1.GET("/health", healthHandler.Check)

	protected := v1.Group("")
	protected.Use(middleware.Authentication(validator))

	servers := protected.Group("/servers")
	{
		servers.GET("", serverHandler.List)
		servers.POST("", serverHandler.Create)
		servers.GET("/:id", serverHandler.Get)
		servers.PUT("/:id", serverHandler.Update)
		servers.DELETE("/:id", serverHandler.Delete)
	}

	applications := protected.Group("/applications")
	{
		applications.GET("", applicationHandler.List)
		applications.POST("", applicationHandler.Create)
		applications.GET("/:id", applicationHandler.Get)
		applications.PUT("/:id", applicationHandler.Update)
		applications.DELETE("/:id", applicationHandler.Delete)
	}

	return router
}
