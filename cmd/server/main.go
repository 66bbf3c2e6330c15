package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/verdemarket/engage-backend/config"
	"github.com/verdemarket/engage-backend/internal/app/controller"
	"github.com/verdemarket/engage-backend/internal/app/model"
	"github.com/verdemarket/engage-backend/internal/app/repository"
	"github.com/verdemarket/engage-backend/internal/app/service"
	"github.com/verdemarket/engage-backend/internal/db"
	"github.com/verdemarket/engage-backend/internal/middleware"
	"github.com/verdemarket/engage-backend/internal/router"
	"github.com/verdemarket/engage-backend/internal/scheduler"
	"github.com/verdemarket/engage-backend/internal/storage"
	"github.com/verdemarket/engage-backend/internal/websocket"
	"github.com/verdemarket/engage-backend/pkg/logger"
	"github.com/verdemarket/engage-backend/pkg/qrcode"
	"github.com/verdemarket/engage-backend/pkg/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := "info"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      "console", // Use "json" for production
		EnableColor: true,
	})

	logger.Info("Starting VERDEMARKET ENGAGE Backend Server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Redis is optional: the short-code and trending caches degrade to
	// database lookups when it is unavailable.
	if err := redis.Init(&cfg.Redis); err != nil {
		logger.Warn("Redis unavailable, caches disabled", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer redis.Close()

	// Initialize repositories
	tagRepo := repository.NewTagRepository(db.GetDB())
	qrRepo := repository.NewQRRepository(db.GetDB())
	customerRepo := repository.NewCustomerRepository(db.GetDB())
	segmentRepo := repository.NewSegmentRepository(db.GetDB())
	journeyRepo := repository.NewJourneyRepository(db.GetDB())
	threadRepo := repository.NewThreadRepository(db.GetDB())
	productRepo := repository.NewProductRepository(db.GetDB())
	vendorRepo := repository.NewVendorRepository(db.GetDB())

	// Event feed hub
	hub := websocket.NewHub()
	go hub.Run()

	// Initialize services
	scoring := model.DefaultScoring()
	tagService := service.NewTagService(tagRepo)
	qrService := service.NewQRService(
		qrRepo,
		qrcode.NewPNGEncoder(cfg.QR.EncodeTimeout),
		storage.NewS3Storage(&cfg.S3),
		&cfg.QR,
	)
	customerService := service.NewCustomerService(
		customerRepo, segmentRepo, journeyRepo, tagRepo,
		tagService, qrService, scoring,
	)
	orchestratorService := service.NewOrchestratorService(
		productRepo, vendorRepo, threadRepo, customerRepo, tagRepo,
		tagService, qrService, customerService, hub, scoring,
	)
	exportService := service.NewExportService(
		tagRepo, qrRepo, customerRepo, segmentRepo, journeyRepo, threadRepo,
	)

	// Initialize controllers
	tagController := controller.NewTagController(tagService)
	qrController := controller.NewQRController(qrService, orchestratorService)
	customerController := controller.NewCustomerController(customerService)
	catalogController := controller.NewCatalogController(orchestratorService, exportService)
	feedController := controller.NewFeedController(hub)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	// Start maintenance jobs
	engagementScheduler := scheduler.NewEngagementScheduler(
		tagService, qrService, customerService, orchestratorService,
	)
	if err := engagementScheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", err)
	}
	defer engagementScheduler.Stop()

	// Setup router
	r := router.NewRouter(
		tagController,
		qrController,
		customerController,
		catalogController,
		feedController,
		authMiddleware,
		cfg,
	)
	engine := r.Setup()

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server started successfully", map[string]interface{}{
			"address": addr,
			"pid":     os.Getpid(),
		})
		if err := engine.Run(addr); err != nil {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")
	logger.Info("Server stopped successfully")
}
