package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Kilat-Mobility/service-journey/internal/application"
	"github.com/Kilat-Mobility/service-journey/internal/common/auth"
	"github.com/Kilat-Mobility/service-journey/internal/common/database"
	"github.com/Kilat-Mobility/service-journey/internal/common/health"
	"github.com/Kilat-Mobility/service-journey/internal/common/kafka"
	"github.com/Kilat-Mobility/service-journey/internal/common/logger"
	"github.com/Kilat-Mobility/service-journey/internal/common/middleware"
	"github.com/Kilat-Mobility/service-journey/internal/config"
	journeyDomain "github.com/Kilat-Mobility/service-journey/internal/domain/journey"
	rentalDomain "github.com/Kilat-Mobility/service-journey/internal/domain/rental"
	journeyEvents "github.com/Kilat-Mobility/service-journey/internal/events"
	"github.com/Kilat-Mobility/service-journey/internal/handler"
	"github.com/Kilat-Mobility/service-journey/internal/repository"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "service-journey")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-journey",
		zap.String("port", cfg.Port),
	)

	// Connect to database
	dbConfig := database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}
	db, err := database.Connect(dbConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(repository.Models()...); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		dbURL := dbConfig.DatabaseURL()
		if err := database.RunMigrations(dbURL, "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(
		cfg.JWTConfig.Secret,
		cfg.JWTConfig.AccessTokenTTL,
		cfg.JWTConfig.RefreshTokenTTL,
	)

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Initialize repositories
	journeyRepo := repository.NewGormJourneyRepository(db, log)
	geofenceRepo := repository.NewGormGeofenceRepository(db, log)
	vehicleRepo := repository.NewGormVehicleRepository(db)
	rentalRepo := repository.NewGormRentalRepository(db)
	inspectionRepo := repository.NewGormInspectionRepository(db)

	// Initialize application services
	vehicleService := application.NewVehicleService(vehicleRepo, log)
	geofenceService := application.NewGeofenceService(geofenceRepo, cfg.WarningDistanceMeters, log)
	positionService := application.NewPositionService(
		journeyRepo,
		journeyDomain.NewStandardFareStrategy(cfg.FareTables),
		kafkaProducer,
		vehicleService,
		cfg.Rules,
		log,
	)
	rentalService := application.NewRentalService(
		rentalRepo,
		vehicleRepo,
		geofenceService,
		rentalDomain.NewBillingEngine(cfg.Billing),
		kafkaProducer,
		log,
	)
	inspectionService := application.NewInspectionService(inspectionRepo, rentalRepo, log)

	// Initialize and start dispatch event consumer in a goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	groupID := cfg.KafkaConfig.GroupPrefix + "journey-service"
	dispatchConsumer := journeyEvents.NewDispatchEventConsumer(
		cfg.KafkaConfig.Brokers,
		groupID,
		positionService,
		log,
	)
	defer func() { _ = dispatchConsumer.Close() }()

	go func() {
		log.Info("starting dispatch event consumer")
		if err := dispatchConsumer.Start(ctx); err != nil && err != context.Canceled {
			log.Error("dispatch event consumer error", zap.Error(err))
		}
	}()

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(db, "service-journey")
	healthHandler.RegisterRoutes(router)

	// Register routes
	handler.NewJourneyHandler(positionService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewStreamHandler(positionService, cfg.StreamInterval, log).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewGeofenceHandler(geofenceService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewVehicleHandler(vehicleService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewRentalHandler(rentalService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewInspectionHandler(inspectionService).RegisterRoutes(&router.RouterGroup, jwtManager)

	// Register admin handler routes
	handler.NewAdminJourneyHandler(positionService).RegisterRoutes(&router.RouterGroup, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-journey...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-journey stopped")
}
