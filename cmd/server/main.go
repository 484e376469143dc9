package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"planner-server/internal/config"
	"planner-server/internal/database"
	"planner-server/internal/handler"
	"planner-server/internal/logger"
	"planner-server/internal/messaging"
	"planner-server/internal/planner"
	"planner-server/internal/planner/tools"
	"planner-server/internal/progress"
	"planner-server/internal/repository"
	"planner-server/internal/service"
	"planner-server/internal/ws"
)

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Setup ---
	log, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: "json",
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)
	zap.L().Info("Logger initialized", zap.String("logLevel", cfg.LogLevel))

	// --- External Connections ---
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pgPool, err := database.Connect(ctx, cfg, log)
	if err != nil {
		zap.L().Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pgPool.Close()

	if err := database.ApplyMigrations(pgPool); err != nil {
		zap.L().Fatal("Failed to apply migrations", zap.Error(err))
	}
	zap.L().Info("Database migrations applied")

	// --- Progress Store ---
	var progressStore progress.Store
	switch cfg.ProgressStore {
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			zap.L().Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		progressStore = progress.NewRedisStore(redisClient, cfg.ProgressStateTTL)
		zap.L().Info("Using Redis progress store", zap.String("addr", cfg.RedisAddr))
	default:
		progressStore = progress.NewMemoryStore()
		zap.L().Info("Using in-memory progress store")
	}

	// --- RabbitMQ (push-канал прогресса) ---
	var notifier progress.Notifier = messaging.NewNoopNotifier()
	var mqConn *amqp.Connection
	var progressConsumer *ws.Consumer

	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()
	wsManager := ws.NewConnectionManager(zlog)

	if cfg.PushEnabled {
		mqConn, err = connectRabbitMQ(cfg.RabbitMQURL, log)
		if err != nil {
			zap.L().Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer mqConn.Close()

		notifier, err = messaging.NewRabbitMQProgressPublisher(mqConn, cfg.ProgressQueueName, log)
		if err != nil {
			zap.L().Fatal("Failed to create progress publisher", zap.Error(err))
		}

		progressConsumer = ws.NewConsumer(mqConn, wsManager, cfg.ProgressQueueName, zlog)
	} else {
		zap.L().Info("Push channel disabled, progress available via polling only")
	}

	// --- Dependency Injection ---
	sessionRepo := repository.NewPgSessionRepository(pgPool, log.Named("PgSessionRepo"))
	eventRepo := repository.NewPgEventRepository(pgPool, log.Named("PgEventRepo"))
	calendarRepo := repository.NewPgCalendarRepository(pgPool, log.Named("PgCalendarRepo"))

	tracker := progress.NewTracker(progressStore, sessionRepo, notifier, log)

	aiClient, err := service.NewAIClient(cfg, log)
	if err != nil {
		zap.L().Fatal("Failed to create AI client", zap.Error(err))
	}

	userContext := planner.NewUserContext(cfg)
	registry := tools.NewRegistry(userContext,
		tools.WithRichDescriptions(func(ctx context.Context, prompt string) (string, error) {
			text, _, err := aiClient.GenerateText(ctx, "You write short HTML descriptions for calendar events.", prompt, service.GenerationParams{})
			return text, err
		}))

	plannerService := service.NewPlannerService(
		sessionRepo, eventRepo, calendarRepo,
		aiClient, registry, tracker, userContext, cfg, log)

	plannerHandler := handler.NewPlannerHandler(plannerService, log)
	wsHandler := ws.NewHandler(wsManager, []byte(cfg.JWTSecret), zlog)

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(handler.ZapLoggingMiddleware(log))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	allowedOrigins := cfg.GetAllowedOrigins()
	if len(allowedOrigins) > 0 {
		corsConfig.AllowOrigins = allowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
		zap.L().Info("CORS origins not set, allowing default", zap.String("origin", "http://localhost:3000"))
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	// WebSocket push-канал (токен в query, аутентификация внутри хендлера)
	router.GET("/ws/progress", gin.WrapF(wsHandler.ServeWS))

	api := router.Group("/api")
	api.Use(handler.AuthMiddleware([]byte(cfg.JWTSecret), log))
	plannerHandler.RegisterRoutes(api)

	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	// --- Start Background Workers ---
	if progressConsumer != nil {
		go func() {
			zap.L().Info("Starting progress consumer...")
			if err := progressConsumer.StartConsuming(); err != nil {
				zap.L().Error("Progress consumer stopped with error", zap.Error(err))
			}
		}()
	}

	// --- Start HTTP Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	zap.L().Info("Starting HTTP server", zap.String("port", cfg.HTTPPort))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Fatal("HTTP Server listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("Shutting down server...")

	if progressConsumer != nil {
		progressConsumer.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("HTTP Server forced to shutdown", zap.Error(err))
	}

	zap.L().Info("Server exiting")
}

// connectRabbitMQ подключается к RabbitMQ с повторными попытками.
func connectRabbitMQ(url string, log *zap.Logger) (*amqp.Connection, error) {
	maxRetries := 10
	retryDelay := 3 * time.Second

	var conn *amqp.Connection
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			log.Info("Connected to RabbitMQ", zap.Int("attempt", attempt))
			return conn, nil
		}
		log.Warn("RabbitMQ connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("maxRetries", maxRetries),
			zap.Error(err))
		if attempt < maxRetries {
			time.Sleep(retryDelay)
		}
	}
	return nil, fmt.Errorf("не удалось подключиться к RabbitMQ после %d попыток: %w", maxRetries, err)
}
