package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/univia/univia-go-api/internal/config"
	"github.com/univia/univia-go-api/internal/database"
	"github.com/univia/univia-go-api/internal/handler"
	"github.com/univia/univia-go-api/internal/middleware"
	"github.com/univia/univia-go-api/internal/models"
	"github.com/univia/univia-go-api/internal/observability"
	"github.com/univia/univia-go-api/internal/repository"
	"github.com/univia/univia-go-api/internal/router"
	"github.com/univia/univia-go-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Course{},
		&models.Enrollment{},
		&models.Exam{},
		&models.ExamQuestion{},
		&models.MCQOption{},
		&models.ExamSubmission{},
		&models.ExamAnswer{},
		&models.ActivityLog{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Redis and NATS are optional; the services degrade to uncached
	// and event-less operation when they are not configured.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var events service.EventPublisher
	if cfg.NatsURL != "" {
		natsConn, err := database.ConnectNATS(cfg.NatsURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
		events = service.NewNATSEventPublisher(natsConn, cfg.EventSubjectPrefix, logger)
	}

	observability.RegisterMetrics()

	validate := validator.New(validator.WithRequiredStructEnabled())

	examRepo := repository.NewExamRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activityService := service.NewActivityService(activityRepo, logger)
	catalogService := service.NewExamCatalogService(examRepo, questionRepo, submissionRepo, validate, activityService, logger)
	sessionService := service.NewExamSessionService(examRepo, questionRepo, submissionRepo, activityService, logger)
	gradingService := service.NewGradingService(examRepo, submissionRepo, validate, redisClient, events, activityService, service.GradingConfig{
		StrictAnswers:  cfg.GradingStrictAnswers,
		ResultCacheTTL: cfg.ResultCacheTTL,
	}, logger)
	completionService := service.NewCompletionService(enrollmentRepo, examRepo, submissionRepo, events, activityService, logger)

	examHandler := handler.NewExamHandler(catalogService, logger)
	submissionHandler := handler.NewSubmissionHandler(sessionService, gradingService, logger)
	completionHandler := handler.NewCompletionHandler(completionService, logger)
	activityHandler := handler.NewActivityHandler(activityService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, CORSOrigins: cfg.CORSOrigins})
	router.Register(app, cfg, router.Dependencies{
		ExamHandler:       examHandler,
		SubmissionHandler: submissionHandler,
		CompletionHandler: completionHandler,
		ActivityHandler:   activityHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
