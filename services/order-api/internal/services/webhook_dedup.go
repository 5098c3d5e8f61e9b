package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventDeduplicator remembers gateway event ids so redelivered webhooks are handled once.
type EventDeduplicator interface {
	// FirstSeen records eventID and reports whether it had not been seen before.
	FirstSeen(ctx context.Context, eventID string) (bool, error)
}

type RedisEventDeduplicator struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisEventDeduplicator(client *redis.Client, prefix string, ttl time.Duration) *RedisEventDeduplicator {
	return &RedisEventDeduplicator{client: client, prefix: prefix, ttl: ttl}
}

func (d *RedisEventDeduplicator) FirstSeen(ctx context.Context, eventID string) (bool, error) {
	return d.client.SetNX(ctx, d.prefix+":"+eventID, 1, d.ttl).Result()
}

// NoopEventDeduplicator treats every event as new. Used when Redis is not configured.
type NoopEventDeduplicator struct{}

func (NoopEventDeduplicator) FirstSeen(context.Context, string) (bool, error) {
	return true, nil
}
