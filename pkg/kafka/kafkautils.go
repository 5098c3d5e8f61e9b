package kafkautils

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

type KafkaConfig struct {
	BootstrapServers string
	Topics           []TopicConfig
	// MaxElapsedTime bounds topic creation retries; defaults to 2 minutes.
	MaxElapsedTime time.Duration
}

type TopicConfig struct {
	Topic             string
	NumPartitions     int
	ReplicationFactor int
	Config            map[string]string
}

// InitKafkaTopics creates the configured topics, treating "already exists" as success.
// Broker unavailability is retried with exponential backoff until MaxElapsedTime.
func InitKafkaTopics(ctx context.Context, logger *zap.Logger, cnf KafkaConfig) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{"bootstrap.servers": cnf.BootstrapServers})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	topics := make([]kafka.TopicSpecification, 0, len(cnf.Topics))
	for _, topic := range cnf.Topics {
		topics = append(topics, kafka.TopicSpecification{
			Topic:             topic.Topic,
			NumPartitions:     topic.NumPartitions,
			ReplicationFactor: topic.ReplicationFactor,
			Config:            topic.Config,
		})
	}

	operation := func() error {
		results, err := admin.CreateTopics(ctx, topics, kafka.SetAdminOperationTimeout(30*time.Second))
		if err != nil {
			return fmt.Errorf("failed to create topics: %w", err)
		}
		for _, result := range results {
			switch result.Error.Code() {
			case kafka.ErrNoError:
				logger.Info("kafka topic created", zap.String("topic", result.Topic))
			case kafka.ErrTopicAlreadyExists:
				logger.Debug("kafka topic already exists", zap.String("topic", result.Topic))
			default:
				return fmt.Errorf("kafka topic %s creation failed: %v", result.Topic, result.Error)
			}
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	if cnf.MaxElapsedTime > 0 {
		b.MaxElapsedTime = cnf.MaxElapsedTime
	}
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}
