package api

import (
	"github.com/gin-gonic/gin"

	"github.com/wyatt/creatorscout/internal/api/handler"
	"github.com/wyatt/creatorscout/internal/api/middleware"
	"github.com/wyatt/creatorscout/internal/config"
	"github.com/wyatt/creatorscout/internal/service"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	pipeline *service.PipelineOrchestrator,
	campaigns *service.CampaignService,
	cfg *config.ServerConfig,
) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
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
	r.Use(middleware.CORS(cfg.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	pipelineHandler := handler.NewPipelineHandler(pipeline)
	campaignHandler := handler.NewCampaignHandler(campaigns)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Pipelines
		v1.POST("/pipelines", pipelineHandler.Submit)
		v1.GET("/pipelines", pipelineHandler.List)
		v1.GET("/pipelines/:id", pipelineHandler.Status)
		v1.POST("/pipelines/:id/cancel", pipelineHandler.Cancel)

		// Campaigns
		v1.POST("/campaigns", campaignHandler.Create)
		v1.GET("/campaigns", campaignHandler.List)
		v1.GET("/campaigns/:id", campaignHandler.Get)

		// Stats
		v1.GET("/stats", pipelineHandler.Stats)
	}

	return r
}
