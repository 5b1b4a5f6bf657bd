package routes

import (
	"github.com/gin-gonic/gin"

	"upset-radar-api/controllers"
	"upset-radar-api/metrics"
	"upset-radar-api/middleware"
	"upset-radar-api/models"
	"upset-radar-api/monitor"
	"upset-radar-api/streaming"
)

// Deps carries the stateful handlers the route table wires together.
type Deps struct {
	Pipeline *controllers.PipelineController
	Alerts   *controllers.AlertController
	Hub      *streaming.Hub
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	router.Use(middleware.CORSMiddleware())

	// Operational endpoints outside the API group
	router.GET("/metrics", metrics.Handler())
	router.GET("/monitor", monitor.Dashboard)
	router.GET("/monitor/runs", monitor.Runs)
	router.GET("/ws", func(c *gin.Context) {
		deps.Hub.ServeWS(c.Writer, c.Request)
	})

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			// Authentication
			public.POST("/login", controllers.Login)

			// Health check
			public.GET("/health", func(c *gin.Context) {
				c.JSON(200, gin.H{
					"status":  "ok",
					"message": "Upset Radar API is running",
				})
			})

			// Read-only game data
			public.GET("/games", controllers.GetGames)
			public.GET("/games/:id", controllers.GetGame)
			public.GET("/games/:id/odds", controllers.GetGameOddsHistory)
			public.GET("/games/high-ups", controllers.GetHighUPSGames)
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			// User profile
			protected.GET("/profile", controllers.GetProfile)
			protected.PUT("/change-password", controllers.ChangePassword)
			protected.POST("/devices", controllers.RegisterDevice)

			// Alert subscriptions and queue
			alerts := protected.Group("/alerts")
			{
				alerts.POST("/subscriptions", deps.Alerts.CreateSubscription)
				alerts.GET("/subscriptions", deps.Alerts.GetSubscriptions)
				alerts.DELETE("/subscriptions/:id", deps.Alerts.DeactivateSubscription)
				alerts.GET("/queue", deps.Alerts.GetAlertQueue)

				// Only admins may re-arm failed deliveries
				alerts.POST("/queue/:id/rearm", middleware.RequireRole(models.RoleAdmin), deps.Alerts.RearmAlert)
			}

			// Pipeline control (admin only)
			pipeline := protected.Group("/pipeline")
			pipeline.Use(middleware.RequireRole(models.RoleAdmin))
			{
				pipeline.GET("/status", deps.Pipeline.GetStatus)
				pipeline.GET("/runs", deps.Pipeline.GetRuns)
				pipeline.POST("/jobs/:id/run", deps.Pipeline.TriggerJob)
				pipeline.POST("/jobs/:id/pause", deps.Pipeline.PauseJob)
				pipeline.POST("/jobs/:id/resume", deps.Pipeline.ResumeJob)
				pipeline.GET("/cache/stats", deps.Pipeline.GetCacheStats)
				pipeline.POST("/cache/clear", deps.Pipeline.ClearCache)
			}
		}
	}
}
