package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/storefront-orders/pkg"
	"github.com/nimeshabuddhika/storefront-orders/pkg/cache"
	"github.com/nimeshabuddhika/storefront-orders/pkg/database"
	middleware "github.com/nimeshabuddhika/storefront-orders/pkg/middlewares"
	"github.com/nimeshabuddhika/storefront-orders/pkg/repositories"
	"github.com/nimeshabuddhika/storefront-orders/pkg/utils"
	"github.com/nimeshabuddhika/storefront-orders/services/order-api/configs"
	"github.com/nimeshabuddhika/storefront-orders/services/order-api/internal/handlers"
	"github.com/nimeshabuddhika/storefront-orders/services/order-api/internal/services"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewApp wires dependencies, builds the Gin engine, and returns an *http.Server and a cleanup func.
func NewApp(ctx context.Context, logger *zap.Logger, cfg *configs.Config) (*http.Server, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// Initialize postgres db
	dbConfig := database.Config{
		PrimaryDSN:     cfg.PrimaryDbAddr,
		ReadDSNs:       []string{cfg.ReadDbAddr},
		MaxConns:       cfg.MaxDbCons,
		MinConns:       cfg.MinDbCons,
		AcquireTimeout: cfg.DbAcquireTimeout,
	}
	db, disconnect, err := database.New(ctx, logger, dbConfig)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, disconnect)

	// Run migrations on primary
	if err = database.RunMigrations(logger, cfg.PrimaryDbAddr); err != nil {
		cleanup()
		return nil, nil, err
	}

	// Redis is optional: without it the limiter stays local and webhooks are not de-duplicated
	var redisClient *redis.Client
	var dedup services.EventDeduplicator = services.NoopEventDeduplicator{}
	if !utils.IsEmpty(cfg.RedisAddr) {
		client, closeRedis, err := cache.New(ctx, logger, cache.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		closers = append(closers, closeRedis)
		redisClient = client
		dedup = services.NewRedisEventDeduplicator(client, "webhook:razorpay", cfg.WebhookDedupTTL)
	} else {
		logger.Warn("redis not configured; rate limiting is per instance and webhook de-duplication is off")
	}

	// Kafka is optional: without brokers order events are only logged
	var publisher services.OrderEventPublisher
	if !utils.IsEmpty(cfg.KafkaBrokers) {
		publisher, err = services.NewKafkaPublisher(ctx, services.KafkaPublisherConfig{
			Logger:     logger,
			Brokers:    cfg.KafkaBrokers,
			Topic:      cfg.KafkaOrderTopic,
			Partitions: cfg.KafkaPartition,
			Retention:  cfg.KafkaOrderRetention,
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
	} else {
		logger.Warn("kafka brokers not configured; order events are logged only")
		publisher = services.NewLogOrderPublisher(logger)
	}
	closers = append(closers, publisher.Close)

	// Setup dependencies
	orderRepo := repositories.NewOrderRepository()
	orderService := services.NewOrderService(services.OrderServiceConfig{
		Logger:       logger,
		DB:           db,
		OrderRepo:    orderRepo,
		CancelWindow: cfg.CancelWindow,
	})
	notificationService := services.NewNotificationService(services.NotificationServiceConfig{
		Logger:    logger,
		Publisher: publisher,
		Mailer: services.NewSMTPMailer(services.SMTPConfig{
			Logger:   logger,
			Host:     cfg.SmtpHost,
			Port:     cfg.SmtpPort,
			Username: cfg.SmtpUsername,
			Password: cfg.SmtpPassword,
			From:     cfg.MailFrom,
			Retry:    cfg.MailRetry,
		}),
	})
	paymentService := services.NewPaymentService(services.PaymentServiceConfig{
		Logger: logger,
		Gateway: services.NewRazorpayClient(services.RazorpayConfig{
			Logger:     logger,
			BaseURL:    cfg.RazorpayBaseURL,
			KeyID:      cfg.RazorpayKeyID,
			KeySecret:  cfg.RazorpayKeySecret,
			Timeout:    cfg.GatewayTimeout,
			MaxRetries: cfg.GatewayRetry,
		}),
		Dedup:         dedup,
		KeyID:         cfg.RazorpayKeyID,
		KeySecret:     cfg.RazorpayKeySecret,
		WebhookSecret: cfg.RazorpayWebhookSecret,
	})
	limiter := pkg.NewDistributedLimiter(redisClient, "ratelimit:order-api", cfg.RateLimitRequests, cfg.RateLimitWindow, logger)

	router := NewRouter(logger, RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		Limiter:        limiter,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		Orders:         handlers.NewOrderHandler(logger, orderService, notificationService),
		Payments:       handlers.NewPaymentHandler(logger, paymentService),
	})

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return srv, cleanup, nil
}

// RouterConfig carries the handlers and limits the router is built from.
type RouterConfig struct {
	AllowedOrigins []string // empty disables CORS, only same-origin callers
	Limiter        middleware.Limiter
	MaxBodyBytes   int64
	Orders         *handlers.OrderHandler
	Payments       *handlers.PaymentHandler
}

// NewRouter builds the Gin engine: /health, /metrics and /swagger at the root, the storefront API under /api.
func NewRouter(logger *zap.Logger, cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(middleware.SecureHeaders())
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(cfg.AllowedOrigins))
	}

	api := r.Group("/api")
	api.Use(middleware.TraceID(logger))
	api.Use(middleware.Metrics())
	api.Use(middleware.RateLimit(cfg.Limiter))
	api.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	cfg.Orders.RegisterRoutes(api)
	cfg.Payments.RegisterRoutes(api)
	handlers.NewBaseHandler(logger).RegisterRoutes(r)
	return r
}
