package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"upset-radar-api/config"
	"upset-radar-api/controllers"
	"upset-radar-api/pipeline"
	"upset-radar-api/routes"
	"upset-radar-api/services"
	"upset-radar-api/streaming"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		config.Log.Info("No .env file found, using environment variables")
	}
	config.ReloadMailerConfig()

	logFile := config.InitLogging()
	if logFile != nil {
		defer logFile.Close()
	}

	// Initialize database
	config.InitDB()
	if err := config.Migrate(config.DB); err != nil {
		config.Log.Fatalf("Migration failed: %v", err)
	}

	pipelineCfg, err := config.LoadPipelineConfig()
	if err != nil {
		config.Log.Fatalf("Failed to load pipeline config: %v", err)
	}

	// Websocket hub for real-time alert and score delivery
	hub := streaming.NewHub()
	go hub.Run()

	// Source adapters share one TTL cache
	cache := services.NewSourceCache()
	engine := services.NewAlertEngine(config.DB, hub, services.NewPushService(), func(to, subject, html string) error {
		return config.SendMail([]string{to}, subject, html)
	})
	engine.BatchSize = pipelineCfg.AlertBatchSize

	runs := services.NewPipelineRunService(config.DB)
	// Runs orphaned by a previous crash would block their jobs forever.
	if _, err := runs.ReapInterrupted(0); err != nil {
		config.Log.Errorf("Failed to reap interrupted runs: %v", err)
	}

	sched, err := pipeline.BuildScheduler(config.DB, pipelineCfg, cache, runs, engine, hub)
	if err != nil {
		config.Log.Fatalf("Failed to build scheduler: %v", err)
	}
	if err := sched.Start(context.Background()); err != nil {
		config.Log.Fatalf("Failed to start scheduler: %v", err)
	}

	// Set Gin mode
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.LoggerWithWriter(config.LogWriter))
	router.Use(gin.Recovery())

	// Security headers
	router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	routes.SetupRoutes(router, routes.Deps{
		Pipeline: controllers.NewPipelineController(sched, runs, cache),
		Alerts:   controllers.NewAlertController(engine),
		Hub:      hub,
	})

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		config.Log.Infof("Server starting on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			config.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Block until interrupted, then drain in-flight requests and job runs
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	config.Log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		config.Log.Errorf("Server shutdown: %v", err)
	}
	sched.Stop()
	config.Log.Info("Shutdown complete")
}
