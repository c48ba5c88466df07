package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/commutewatch/backend/internal/config"
	"github.com/commutewatch/backend/internal/database"
	"github.com/commutewatch/backend/internal/handlers"
	"github.com/commutewatch/backend/internal/services"
	"github.com/commutewatch/backend/internal/utils"
	"github.com/commutewatch/backend/pkg/ns"
	"github.com/commutewatch/backend/pkg/validator"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting CommuteWatch backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Repositories
	stationRepository := database.NewStationRepository(db)
	routeRepository := database.NewRouteRepository(db)
	disruptionRepository := database.NewDisruptionRepository(db)
	routeStatusRepository := database.NewRouteStatusRepository(db)

	// Services
	logger.Info("Initializing services...")
	nsClient := ns.NewClient(ns.Config{
		BaseURL: cfg.NS.BaseURL,
		APIKey:  cfg.NS.APIKey,
		Timeout: cfg.NS.Timeout,
	}, logger)

	stationDirectory := services.NewStationDirectory(stationRepository, nsClient, cfg.Sync.StationCacheTTL, logger)
	syncService := services.NewDisruptionSyncService(
		nsClient,
		routeRepository,
		disruptionRepository,
		routeStatusRepository,
		cfg.Sync.Concurrency,
		logger,
	)
	tripOptionService := services.NewTripOptionService(nsClient, stationDirectory, logger)

	cronService := services.NewCronService(syncService, stationDirectory, services.CronSchedules{
		DisruptionSync: cfg.Sync.Schedule,
		StationSync:    cfg.Sync.StationSchedule,
	}, logger)
	if cfg.Sync.Enabled {
		if err := cronService.Start(); err != nil {
			logger.Fatalf("Failed to start cron service: %v", err)
		}
	} else {
		logger.Info("Scheduled sync disabled, use POST /api/v1/sync or cmd/sync")
	}
	logger.Info("Services initialized")

	// Handlers
	if err := handlers.RegisterValidators(); err != nil {
		logger.Fatalf("Failed to register validators: %v", err)
	}
	stationCodes := validator.NewStationCodeValidator()
	routeHandler := handlers.NewRouteHandler(syncService, logger)
	tripHandler := handlers.NewTripHandler(tripOptionService, stationCodes, logger)
	stationHandler := handlers.NewStationHandler(stationDirectory, stationCodes, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORS.AllowedOrigins,
		AllowMethods:  cfg.CORS.AllowedMethods,
		AllowHeaders:  cfg.CORS.AllowedHeaders,
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	router.GET("/health", healthCheckHandler(db))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/sync", routeHandler.SyncAllRoutes)
		v1.GET("/sync/jobs", func(c *gin.Context) {
			c.JSON(http.StatusOK, cronService.GetJobStatus())
		})

		routes := v1.Group("/routes/:id")
		{
			routes.POST("/sync", routeHandler.SyncRoute)
			routes.GET("/status", routeHandler.GetRouteStatus)
			routes.GET("/disruptions", routeHandler.ListRouteDisruptions)
			routes.POST("/viewed", routeHandler.MarkRouteViewed)
		}

		v1.GET("/trips/options", tripHandler.GetRouteOptions)

		stations := v1.Group("/stations")
		{
			stations.POST("/sync", stationHandler.SyncStations)
			stations.GET("/:code", stationHandler.GetStation)
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // a full sync waits on the feed and every route
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if cfg.Sync.Enabled {
		cronService.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      c.Request.URL.RawQuery,
			"ip":         utils.ClientIP(c),
			"latency_ms": time.Since(start).Milliseconds(),
		})

		for i, err := range c.Errors {
			entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
		}

		status := c.Writer.Status()
		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed")
		}
	}
}

// pinger is the part of the database used by the health check
type pinger interface {
	Ping() error
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
