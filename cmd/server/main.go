package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"golang-task-scheduler-core/internal/api/handlers"
	"golang-task-scheduler-core/internal/api/routes"
	"golang-task-scheduler-core/internal/config"
	"golang-task-scheduler-core/internal/repository"
	"golang-task-scheduler-core/internal/services/delivery"
	"golang-task-scheduler-core/internal/services/jobs"
	"golang-task-scheduler-core/internal/utils"
	"golang-task-scheduler-core/pkg/postgres"
	"golang-task-scheduler-core/pkg/ratelimit"
	"golang-task-scheduler-core/pkg/redis"
)

func main() {
	ctxCancel, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	logrusLevel, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.WithError(err).Fatal("Failed to parse log level")
	}

	logger.SetLevel(logrusLevel)

	// Set Gin mode based on environment
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Initialize database
	db, err := postgres.NewDB(cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Error("Failed to close database")
		}
	}()

	if err := repository.ProvisionSchema(ctxCancel, db.DB); err != nil {
		logger.WithError(err).Fatal("Failed to provision schema")
	}

	// Initialize repositories
	taskRepo := repository.NewTaskRepository(db.DB, logger)
	executionRepo := repository.NewTaskExecutionRepository(db.DB, logger)

	// Redis is optional and only backs the delivery journal
	var journal repository.DeliveryJournalRepository
	notifierOpts := []delivery.Option{}
	if cfg.Redis.Enabled() {
		redisClient, err := redis.NewClient(ctxCancel, cfg.Redis)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize Redis client")
		}
		defer redisClient.Close()

		journal = repository.NewDeliveryJournalRepository(redisClient.Client, cfg.Redis.JournalMaxLen)
		notifierOpts = append(notifierOpts, delivery.WithJournal(journal))
	} else {
		logger.Info("Redis not configured, delivery journal disabled")
	}

	// Initialize services
	deliveryLimiter := ratelimit.NewDeliveryLimiter(&cfg.Delivery, logger)
	deliveryLimiter.StartCleanupExpired(ctxCancel)
	notifierOpts = append(notifierOpts, delivery.WithLimiter(deliveryLimiter))

	notifier := delivery.NewNotifier(&cfg.Delivery, logger, notifierOpts...)
	jobService := jobs.NewJobService(&cfg.Jobs, logger, taskRepo, executionRepo, notifier)

	utils.SafeGo(func() {
		if _, err := jobService.RecoverStaleExecutions(ctxCancel); err != nil {
			logger.WithError(err).Error("Failed to recover stale executions")
		}
	})

	// Initialize handlers
	taskHandler := handlers.NewTaskHandler(taskRepo, executionRepo, logger)
	deliveryHandler := handlers.NewDeliveryHandler(journal, logger)

	// Setup routes
	routes.SetupRoutes(router, taskHandler, deliveryHandler)

	// Create HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	cancel()
	deliveryLimiter.StopCleanupExpired()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	} else {
		logger.Info("HTTP server shutdown completed successfully")
	}

	logger.Info("Server exited")
}
