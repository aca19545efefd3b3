package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/joho/godotenv"

	"vibra-server/internal/cache"
	"vibra-server/internal/config"
	"vibra-server/internal/database"
	"vibra-server/internal/handler"
	"vibra-server/internal/llm"
	"vibra-server/internal/logger"
	"vibra-server/internal/luna"
	"vibra-server/internal/messaging"
	"vibra-server/internal/parser"
	"vibra-server/internal/repository"
	"vibra-server/internal/scheduler"
	"vibra-server/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// .env is optional, real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg.DB, zapLogger)
	if err != nil {
		zapLogger.Fatal("Database connection failed", zap.Error(err))
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DB, zapLogger); err != nil {
		zapLogger.Fatal("Migrations failed", zap.Error(err))
	}

	redisClient := cache.NewRedisClient(cfg.Redis)
	defer redisClient.Close()

	templateRepo := repository.NewPgTemplateRepository(pool, zapLogger)
	queueRepo := repository.NewPgQueueRepository(pool, zapLogger)
	userRepo := cache.NewCachedUserRepository(
		repository.NewPgUserRepository(pool, zapLogger),
		redisClient, cfg.Redis.TTL, zapLogger,
	)
	interpretationRepo := repository.NewPgInterpretationRepository(pool, zapLogger)
	notificationRepo := repository.NewPgNotificationRepository(pool, zapLogger)

	var publisher messaging.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		conn, err := amqp.Dial(cfg.RabbitMQ.URL)
		if err != nil {
			zapLogger.Fatal("RabbitMQ connection failed", zap.Error(err))
		}
		defer conn.Close()
		publisher, err = messaging.NewRabbitMQPublisher(conn, cfg.RabbitMQ.Exchange, zapLogger)
		if err != nil {
			zapLogger.Fatal("RabbitMQ publisher setup failed", zap.Error(err))
		}
	} else {
		zapLogger.Info("RABBITMQ_URL not set, event publishing disabled")
	}

	gateway := llm.NewGatewayFromConfig(cfg.LLM, zapLogger)
	postProcessor := luna.NewProcessor(gateway, cfg.Luna, zapLogger)
	promptParser := parser.New(zapLogger)

	svc := service.NewInterpretationService(service.Deps{
		Templates:       templateRepo,
		Queue:           queueRepo,
		Users:           userRepo,
		Interpretations: interpretationRepo,
		Notifications:   notificationRepo,
		Gateway:         gateway,
		PostProcessor:   postProcessor,
		Parser:          promptParser,
		Publisher:       publisher,
		MaxRetries:      cfg.MaxRetries,
		StaleAfter:      cfg.Scheduler.StaleTimeout,
	}, zapLogger)

	sched := scheduler.New(svc, cfg.Scheduler.Interval, cfg.Scheduler.BatchSize, zapLogger)
	if cfg.Scheduler.Enabled {
		go sched.Run(ctx)
	} else {
		zapLogger.Info("Scheduler disabled by config")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.ZapLoggingMiddleware(zapLogger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Split(cfg.CORSOrigins, ","),
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
	}))
	router.Use(handler.APIKeyMiddleware(cfg.APIKey, zapLogger))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := handler.New(svc, queueRepo, templateRepo, sched, zapLogger)
	h.RegisterRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		zapLogger.Info("HTTP server listening", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Error("HTTP server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zapLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("HTTP shutdown failed", zap.Error(err))
	}
	zapLogger.Info("Shutdown complete")
	_ = os.Stdout.Sync()
}
