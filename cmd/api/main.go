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
	"github.com/rs/zerolog"

	"github.com/gradelab/gradelab-api/internal/config"
	"github.com/gradelab/gradelab-api/internal/database"
	"github.com/gradelab/gradelab-api/internal/extract"
	"github.com/gradelab/gradelab-api/internal/handler"
	"github.com/gradelab/gradelab-api/internal/middleware"
	"github.com/gradelab/gradelab-api/internal/models"
	"github.com/gradelab/gradelab-api/internal/repository"
	"github.com/gradelab/gradelab-api/internal/router"
	"github.com/gradelab/gradelab-api/internal/service"
	"github.com/gradelab/gradelab-api/pkg/ai"
	"github.com/gradelab/gradelab-api/pkg/storage"
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
		&models.Rubric{},
		&models.FocusProfile{},
		&models.Submission{},
		&models.Result{},
		&models.RateLimitWindow{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSServerURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	defer natsConn.Close()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := storage.NewMinioStore(startupCtx, storage.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		UseSSL:    cfg.MinioUseSSL,
		Buckets:   []string{cfg.RubricBucket, cfg.SubmissionBucket},
	}, logger)
	cancelStartup()
	if err != nil {
		log.Fatalf("failed to connect to object storage: %v", err)
	}

	aiClient, err := ai.NewOpenAIClient(ai.OpenAIConfig{
		APIKey:          cfg.OpenAIAPIKey,
		ExtractionModel: cfg.ExtractionModel,
		GradingModel:    cfg.GradingModel,
		VisionModel:     cfg.VisionModel,
		Logger:          logger,
	})
	if err != nil {
		log.Fatalf("failed to create ai client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	extractor := extract.New(aiClient, logger)

	rubricRepo := repository.NewRubricRepository(db)
	profileRepo := repository.NewFocusProfileRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	resultRepo := repository.NewResultRepository(db)
	rateLimitRepo := repository.NewRateLimitRepository(db)

	limiter := service.NewRateLimitService(rateLimitRepo, logger)
	dispatcher := service.NewGradingDispatcher(natsConn, logger)

	rubricService := service.NewRubricService(rubricRepo, profileRepo, store, cfg.RubricBucket, cfg.MaxRubricBytes, validate, logger)
	criteriaService := service.NewCriteriaService(rubricRepo, profileRepo, limiter, store, extractor, aiClient, validate, service.CriteriaPipelineOptions{
		Bucket:         cfg.RubricBucket,
		MaxFileBytes:   cfg.MaxRubricBytes,
		RateLimit:      cfg.RubricRateLimit,
		StorageTimeout: cfg.StorageTimeout,
		AITimeout:      cfg.AITimeout,
	}, logger)
	gradingService := service.NewGradingService(submissionRepo, profileRepo, rubricRepo, resultRepo, limiter, store, extractor, aiClient, service.GradingPipelineOptions{
		Bucket:         cfg.SubmissionBucket,
		MaxFileBytes:   cfg.MaxSubmissionBytes,
		RateLimit:      cfg.GradingRateLimit,
		StorageTimeout: cfg.StorageTimeout,
		AITimeout:      cfg.AITimeout,
	}, logger)
	resultService := service.NewResultService(resultRepo, submissionRepo, redisClient, cfg.ResultCacheTTL, logger)
	submissionService := service.NewSubmissionService(submissionRepo, resultRepo, profileRepo, store, dispatcher, resultService, cfg.SubmissionBucket, cfg.MaxSubmissionBytes, validate, logger)

	worker := service.NewGradingWorker(natsConn, gradingService, cfg.AITimeout+cfg.StorageTimeout, logger)
	workerSub, err := worker.Start()
	if err != nil {
		log.Fatalf("failed to start grading worker: %v", err)
	}
	defer func() {
		if err := workerSub.Drain(); err != nil {
			logger.Warn().Err(err).Msg("grading worker drain failed")
		}
	}()

	rubricHandler := handler.NewRubricHandler(rubricService, criteriaService, logger)
	submissionHandler := handler.NewSubmissionHandler(submissionService, gradingService, resultService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(cfg.MaxSubmissionBytes) + 1024*1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		RubricHandler:     rubricHandler,
		SubmissionHandler: submissionHandler,
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
