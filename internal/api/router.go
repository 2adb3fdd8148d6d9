package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/domaintobiz/siteworker/internal/api/handler"
	"github.com/domaintobiz/siteworker/internal/api/middleware"
)

// SetupRouter configures the Gin router with all admin routes
func SetupRouter(
	status handler.StatusSource,
	queue handler.QueueCounter,
	jobLog handler.JobLog,
	mode string,
) *gin.Engine {
	// Set Gin mode
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	statusHandler := handler.NewStatusHandler(status, queue)
	jobsHandler := handler.NewJobsHandler(jobLog)

	// Health check
	r.GET("/health", healthHandler.Health)

	// Worker status and Prometheus metrics
	r.GET("/status", statusHandler.Status)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Journaled job history
		v1.GET("/jobs/recent", jobsHandler.RecentJobs)
		v1.GET("/jobs/:id/events", jobsHandler.JobEvents)
	}

	return r
}
