package configs

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/nimeshabuddhika/storefront-orders/pkg/utils"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds application configuration for order-api. It is loaded once in main and
// passed to app.NewApp; components receive only the values they need.
type Config struct {
	Port string `mapstructure:"PORT" validate:"required"`

	// PostgreSQL
	PrimaryDbAddr    string        `mapstructure:"PRIMARY_DB_ADDR" validate:"required"`
	ReadDbAddr       string        `mapstructure:"READ_DB_ADDR"`
	MaxDbCons        int32         `mapstructure:"MAX_DB_CONNECTIONS" validate:"min=1"`
	MinDbCons        int32         `mapstructure:"MIN_DB_CONNECTIONS" validate:"min=1,ltefield=MaxDbCons"`
	DbAcquireTimeout time.Duration `mapstructure:"DB_ACQUIRE_TIMEOUT" validate:"gt=0"`

	// Redis (optional). Empty => local rate limiting and no webhook de-duplication.
	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	RedisPassword   string        `mapstructure:"REDIS_PASSWORD"`
	WebhookDedupTTL time.Duration `mapstructure:"WEBHOOK_DEDUP_TTL" validate:"gt=0"`

	// Kafka (optional). Empty brokers => order events are only logged.
	KafkaBrokers        string        `mapstructure:"KAFKA_BROKERS"`
	KafkaOrderTopic     string        `mapstructure:"KAFKA_ORDER_TOPIC" validate:"required"`
	KafkaPartition      uint32        `mapstructure:"KAFKA_PARTITION" validate:"min=1"`
	KafkaOrderRetention time.Duration `mapstructure:"KAFKA_ORDER_RETENTION" validate:"gt=0"`

	// Razorpay
	RazorpayBaseURL       string        `mapstructure:"RAZORPAY_BASE_URL" validate:"required,url"`
	RazorpayKeyID         string        `mapstructure:"RAZORPAY_KEY_ID" validate:"required"`
	RazorpayKeySecret     string        `mapstructure:"RAZORPAY_KEY_SECRET" validate:"required"`
	RazorpayWebhookSecret string        `mapstructure:"RAZORPAY_WEBHOOK_SECRET" validate:"required"`
	GatewayTimeout        time.Duration `mapstructure:"GATEWAY_TIMEOUT" validate:"gt=0"`
	GatewayRetry          uint64        `mapstructure:"GATEWAY_RETRY"`

	// SMTP invoice delivery
	SmtpHost     string `mapstructure:"SMTP_HOST" validate:"required"`
	SmtpPort     int    `mapstructure:"SMTP_PORT" validate:"min=1,max=65535"`
	SmtpUsername string `mapstructure:"SMTP_USERNAME"`
	SmtpPassword string `mapstructure:"SMTP_PASSWORD"`
	MailFrom     string `mapstructure:"MAIL_FROM" validate:"required,email"`
	MailRetry    int    `mapstructure:"MAIL_RETRY" validate:"min=1"`

	// Order ledger
	CancelWindow time.Duration `mapstructure:"CANCEL_WINDOW" validate:"gt=0"`

	// HTTP boundary
	AllowedOrigins    []string      `mapstructure:"ALLOWED_ORIGINS" validate:"dive,http_url"`
	RateLimitRequests int           `mapstructure:"RATE_LIMIT_REQUESTS" validate:"min=0"`
	RateLimitWindow   time.Duration `mapstructure:"RATE_LIMIT_WINDOW" validate:"gt=0"`
	MaxBodyBytes      int64         `mapstructure:"MAX_BODY_BYTES" validate:"min=1024"`
}

func Load(logger *zap.Logger) (*Config, error) {
	viper.SetEnvPrefix("app") // Prefix for env vars
	viper.AutomaticEnv()

	// Default values
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:5500")
	viper.SetDefault("MAX_DB_CONNECTIONS", "10")
	viper.SetDefault("MIN_DB_CONNECTIONS", "2")
	viper.SetDefault("DB_ACQUIRE_TIMEOUT", "5s")
	viper.SetDefault("WEBHOOK_DEDUP_TTL", "72h")
	viper.SetDefault("KAFKA_ORDER_TOPIC", "storefront.orders")
	viper.SetDefault("KAFKA_PARTITION", "4")
	viper.SetDefault("KAFKA_ORDER_RETENTION", "168h")
	viper.SetDefault("RAZORPAY_BASE_URL", "https://api.razorpay.com")
	viper.SetDefault("GATEWAY_TIMEOUT", "10s")
	viper.SetDefault("GATEWAY_RETRY", "2")
	viper.SetDefault("SMTP_PORT", "465")
	viper.SetDefault("MAIL_RETRY", "3")
	viper.SetDefault("CANCEL_WINDOW", "24h")
	viper.SetDefault("RATE_LIMIT_REQUESTS", "100")
	viper.SetDefault("RATE_LIMIT_WINDOW", "15m")
	viper.SetDefault("MAX_BODY_BYTES", "52428800") // 50MB, invoices carry base64 PDFs

	// Optional: Read from config.<mode>.yaml if exists
	if gin.ReleaseMode == gin.Mode() {
		viper.SetConfigName("config.prod")
	} else if gin.TestMode == gin.Mode() {
		logger.Warn("running in test mode")
		viper.SetConfigName("config.test")
	} else {
		logger.Warn("running in development mode")
		viper.SetConfigName("config.dev")
	}
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./services/order-api/configs")
	_ = viper.ReadInConfig() // Ignore if no file

	var cfg Config
	if err := utils.ParseStructEnv(&cfg); err != nil {
		return nil, err
	}
	// Validate after unmarshal
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, utils.FormatConfigErrors(logger, err, cfg)
	}
	return &cfg, nil
}
