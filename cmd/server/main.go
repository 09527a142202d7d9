package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/atrkk2024-beep/inskate/internal/api/rest"
	"github.com/atrkk2024-beep/inskate/internal/config"
	"github.com/atrkk2024-beep/inskate/internal/db"
	"github.com/atrkk2024-beep/inskate/internal/integration/fcm"
	stripeint "github.com/atrkk2024-beep/inskate/internal/integration/stripe"
	"github.com/atrkk2024-beep/inskate/internal/kafka"
	"github.com/atrkk2024-beep/inskate/internal/metrics"
	"github.com/atrkk2024-beep/inskate/internal/repository"
	"github.com/atrkk2024-beep/inskate/internal/service"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
)

var log *logger.Logger

func init() {
	logLevel := logger.INFO
	if os.Getenv("DEBUG") == "true" {
		logLevel = logger.DEBUG
	}
	log = logger.New(logLevel)
}

func main() {
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализация Prometheus
	promRegistry := prometheus.NewRegistry()
	schoolMetrics := metrics.NewSchoolMetrics(promRegistry, log)

	// Подключение к базе данных: pgxpool для репозиториев,
	// sqlx-клиент для миграций и сводной статистики
	dbPool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database: %v", err)
	}
	defer dbPool.Close()

	dbClient, err := db.NewDBClient(cfg.Database.DSN, log)
	if err != nil {
		log.Fatal("Failed to create database client: %v", err)
	}
	defer dbClient.Close()

	if err := dbClient.Migrate(ctx); err != nil {
		log.Fatal("Failed to migrate schema: %v", err)
	}

	// Репозитории
	bookingRepo := repository.NewPostgresBookingRepository(dbPool, log)
	coachRepo := repository.NewPostgresCoachRepository(dbPool, log)
	userRepo := repository.NewPostgresUserRepository(dbPool, log)
	pushRepo := repository.NewPostgresPushRepository(dbPool, log)

	var subscriptionRepo repository.SubscriptionRepository = repository.NewPostgresSubscriptionRepository(dbPool, log)

	// Redis: кеш подписок и блокировки заданий планировщика
	var jobLocker service.JobLocker
	if cfg.Redis.Enabled {
		cacheRepo, err := repository.NewRedisCacheRepository(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Fatal("Failed to connect to Redis: %v", err)
		}
		defer cacheRepo.Close()

		subscriptionRepo = repository.NewCachedSubscriptionRepository(subscriptionRepo, cacheRepo, log)
		jobLocker = cacheRepo
	} else {
		log.Warn("Redis is disabled, subscription cache and job locks are off")
	}

	// Kafka продюсер для доменных событий
	var producer kafka.Producer = kafka.NoopProducer{}
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureKafkaTopics(cfg.Kafka.Brokers, log); err != nil {
			log.Fatal("Failed to ensure Kafka topics: %v", err)
		}
		producer, err = kafka.NewKafkaProducer(cfg.Kafka.Brokers, log)
		if err != nil {
			log.Fatal("Failed to create Kafka producer: %v", err)
		}
	} else {
		log.Warn("Kafka is disabled, domain events will not be published")
	}
	defer producer.Close()

	// Stripe
	gateway := stripeint.NewGateway(cfg.Stripe.APIKey, log)
	verifier := stripeint.NewWebhookVerifier(cfg.Stripe.WebhookSecret, log)

	// FCM: при отключенном Firebase уведомления уходят в лог
	var notifier fcm.Notifier = fcm.NewLogNotifier(log)
	if cfg.FCM.Enabled {
		notifier, err = fcm.NewNotifier(ctx, cfg.FCM.CredentialsFile, log)
		if err != nil {
			log.Fatal("Failed to initialize FCM: %v", err)
		}
	} else {
		log.Warn("FCM is disabled, push notifications will be logged only")
	}

	// Сервисы
	bookingSvc := service.NewBookingService(bookingRepo, coachRepo, userRepo, notifier, producer, schoolMetrics, log)
	coachSvc := service.NewCoachService(coachRepo, bookingRepo, log)
	subscriptionSvc := service.NewSubscriptionService(subscriptionRepo, userRepo, gateway, producer, cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL, log)
	webhookSvc := service.NewWebhookService(subscriptionRepo, userRepo, producer, schoolMetrics, log)
	pushSvc := service.NewPushService(pushRepo, userRepo, subscriptionRepo, notifier, jobLocker, schoolMetrics, log)

	// Планировщик отложенных рассылок
	scheduler := service.NewPushScheduler(pushSvc, log)
	go scheduler.Run(ctx)

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := rest.SetupRouter(rest.Deps{
		Booking:         bookingSvc,
		Coach:           coachSvc,
		Subscription:    subscriptionSvc,
		Webhook:         webhookSvc,
		Push:            pushSvc,
		WebhookVerifier: verifier,
		Stats:           dbClient,
		JWTSecret:       cfg.Auth.JWTSecret,
	}, promRegistry, log)

	server := rest.NewServer(router, cfg, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped gracefully")
}
