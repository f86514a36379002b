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

	"github.com/opvera/opvera-api/internal/config"
	"github.com/opvera/opvera-api/internal/database"
	"github.com/opvera/opvera-api/internal/handler"
	"github.com/opvera/opvera-api/internal/middleware"
	"github.com/opvera/opvera-api/internal/models"
	"github.com/opvera/opvera-api/internal/repository"
	"github.com/opvera/opvera-api/internal/router"
	"github.com/opvera/opvera-api/internal/service"
	"github.com/opvera/opvera-api/pkg/ai"
	cloud "github.com/opvera/opvera-api/pkg/cloudinary"
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
		&models.User{},
		&models.Channel{},
		&models.Message{},
		&models.AuditLog{},
		&models.Quiz{},
		&models.QuizAttempt{},
		&models.Project{},
		&models.Assignment{},
		&models.LeaderboardEntry{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	var uploader service.FileUploader
	if cfg.CloudinaryCloudName != "" {
		cloudUploader, err := cloud.NewUploader(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		uploader = cloudUploader
	}

	gateway, err := ai.NewGateway(ai.GatewayConfig{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.OpenAIModel,
		MinInterval: cfg.AIMinInterval,
		MaxRetries:  cfg.AIMaxRetries,
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("failed to create ai gateway: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	policy := service.NewAuthorizationPolicy()

	userRepo := repository.NewUserRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	attemptRepo := repository.NewQuizAttemptRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	leaderboardRepo := repository.NewLeaderboardRepository(db)

	auditService := service.NewAuditService(auditRepo, validate, logger)
	leaderboardService := service.NewLeaderboardService(leaderboardRepo, redisClient, cfg.LeaderboardCacheTTL, logger)
	chatService := service.NewChatService(service.ChatServiceDeps{
		Messages:    messageRepo,
		Channels:    channelRepo,
		Users:       userRepo,
		Audit:       auditService,
		Policy:      policy,
		Completer:   gateway,
		Redis:       redisClient,
		NATS:        natsConn,
		ChannelBase: cfg.EventChannelBase,
		Validator:   validate,
		Logger:      logger,
	})
	channelService := service.NewChannelService(channelRepo, messageRepo, userRepo, auditService, policy, chatService, validate, logger)
	moderationService := service.NewModerationService(userRepo, channelRepo, messageRepo, auditService, policy, chatService, validate, logger)
	quizService := service.NewQuizService(quizRepo, attemptRepo, gateway, leaderboardService, validate, logger)
	projectService := service.NewProjectService(projectRepo, assignmentRepo, userRepo, uploader, auditService, policy, validate, logger)
	userService := service.NewUserService(userRepo, auditService, policy, validate, logger)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chatService.Start(rootCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ChatHandler:        handler.NewChatHandler(chatService, validate, logger),
		ChannelHandler:     handler.NewChannelHandler(channelService, validate, logger),
		AdminHandler:       handler.NewAdminHandler(moderationService, auditService, userService, validate, logger),
		QuizHandler:        handler.NewQuizHandler(quizService, validate, logger),
		ProjectHandler:     handler.NewProjectHandler(projectService, validate, logger),
		LeaderboardHandler: handler.NewLeaderboardHandler(leaderboardService, logger),
		UserHandler:        handler.NewUserHandler(userService, validate, logger),
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, cancel)
}

func waitForShutdown(app *fiber.App, cancel context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	cancel()

	ctx, timeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer timeout()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
