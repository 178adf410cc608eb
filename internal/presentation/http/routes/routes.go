// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arzani/roledetect-go/internal/application/container"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/metrics"
	"github.com/arzani/roledetect-go/internal/presentation/http/handlers"
	"github.com/arzani/roledetect-go/internal/presentation/http/middleware"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container, registry *prometheus.Registry) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.IdentityMiddleware(container.Logger))

	// Initialize handlers
	roleHandlers := handlers.NewRoleHandlers(container.ResolverService, container.WriterService, container.RecorderService, container.CacheManager, container.Logger, container.PerfTracker)
	behaviorHandlers := handlers.NewBehaviorHandlers(container.RecorderService, container.Logger, container.PerfTracker)
	healthHandlers := handlers.NewHealthHandlers(container.DB, container.PerfTracker)

	// Operational endpoints
	r.GET("/health", healthHandlers.GetHealth)
	r.GET("/metrics", gin.WrapH(metrics.Handler(registry)))

	api := r.Group("/api/v1")
	{
		// Role detection endpoints. Detection middleware resolves the
		// role once per request and attaches the outcome.
		role := api.Group("/role")
		role.Use(middleware.DetectionMiddleware(container.ResolverService, container.WriterService))
		{
			role.GET("/detect", roleHandlers.GetDetect)
			role.GET("/stats", roleHandlers.GetStats)
		}

		// Select and cache-clear mutate state, no detection pass needed.
		api.POST("/role/select", roleHandlers.PostSelect)
		api.DELETE("/role/cache", roleHandlers.DeleteCache)

		// Behavior ingestion
		api.POST("/behavior", behaviorHandlers.PostEvent)
		api.POST("/behavior/batch", behaviorHandlers.PostBatch)
	}

	return r
}
