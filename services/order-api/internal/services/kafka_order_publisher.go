package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/nimeshabuddhika/storefront-orders/pkg"
	kafkautils "github.com/nimeshabuddhika/storefront-orders/pkg/kafka"
	"github.com/nimeshabuddhika/storefront-orders/pkg/views"
	"go.uber.org/zap"
)

type OrderEventPublisher interface {
	Publish(ctx context.Context, event views.OrderEvent) error
	Close()
}

// KafkaPublisherConfig holds the order events topic settings.
type KafkaPublisherConfig struct {
	Logger     *zap.Logger
	Brokers    string
	Topic      string
	Partitions uint32
	Retention  time.Duration
}

type KafkaPublisherImpl struct {
	logger     *zap.Logger
	producer   *kafka.Producer
	topic      string
	partitions uint32
}

// NewKafkaPublisher makes sure the order events topic exists and starts an idempotent producer.
func NewKafkaPublisher(ctx context.Context, cfg KafkaPublisherConfig) (OrderEventPublisher, error) {
	partitions := cfg.Partitions
	if partitions == 0 {
		partitions = 1
	}
	topicConfig := kafkautils.KafkaConfig{
		BootstrapServers: cfg.Brokers,
		Topics: []kafkautils.TopicConfig{
			{
				Topic:             cfg.Topic,
				NumPartitions:     int(partitions),
				ReplicationFactor: 1,
				Config: map[string]string{
					"cleanup.policy": "delete",
					"retention.ms":   fmt.Sprintf("%d", cfg.Retention.Milliseconds()),
				},
			},
		},
	}
	if err := kafkautils.InitKafkaTopics(ctx, cfg.Logger, topicConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize kafka topics: %w", err)
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Brokers,
		"acks":               "all",
		"enable.idempotence": "true", // broker drops producer retries it already has
		"retries":            "3",
		"linger.ms":          "5",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	cfg.Logger.Info("kafka producer created successfully", zap.String("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	go handleDeliveryReports(cfg.Logger, p)

	return &KafkaPublisherImpl{
		logger:     cfg.Logger,
		producer:   p,
		topic:      cfg.Topic,
		partitions: partitions,
	}, nil
}

// Publish enqueues the event; delivery failures surface in handleDeliveryReports.
func (k *KafkaPublisherImpl) Publish(_ context.Context, event views.OrderEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &k.topic,
			Partition: partitionFor(event.UserID, k.partitions), // keeps one user's events ordered
		},
		Key:   []byte(event.OrderID),
		Value: msgBytes,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
			{Key: pkg.HeaderTraceId, Value: []byte(event.TraceID)},
		},
	}, nil)
}

func (k *KafkaPublisherImpl) Close() {
	if remaining := k.producer.Flush(5000); remaining > 0 {
		k.logger.Warn("kafka producer closed with undelivered events", zap.Int("remaining", remaining))
	}
	k.producer.Close()
}

func partitionFor(userID int64, partitions uint32) int32 {
	if partitions == 0 {
		return 0
	}
	u := uint64(userID)
	return int32(u % uint64(partitions))
}

func handleDeliveryReports(logger *zap.Logger, p *kafka.Producer) {
	for e := range p.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				logger.Error("failed to publish order event",
					zap.String(pkg.OrderId, string(ev.Key)),
					zap.Error(ev.TopicPartition.Error))
			}
		}
	}
}

// LogOrderPublisher writes order events to the log. Used when no brokers are configured.
type LogOrderPublisher struct {
	logger *zap.Logger
}

func NewLogOrderPublisher(logger *zap.Logger) *LogOrderPublisher {
	return &LogOrderPublisher{logger: logger}
}

func (l *LogOrderPublisher) Publish(_ context.Context, event views.OrderEvent) error {
	l.logger.Info("order event",
		zap.String(pkg.TraceId, event.TraceID),
		zap.String(pkg.EventType, event.Type),
		zap.String(pkg.OrderId, event.OrderID),
		zap.Int64(pkg.UserId, event.UserID))
	return nil
}

func (l *LogOrderPublisher) Close() {}
