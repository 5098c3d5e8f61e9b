package pkg

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxLocalClients caps the fallback limiter table; it is reset when full.
const maxLocalClients = 10_000

// DistributedLimiter enforces a per-client quota. Counters live in Redis (fixed windows) so every
// replica of the API shares them; a local token bucket per client is used when Redis is absent or failing.
type DistributedLimiter struct {
	redisClient *redis.Client // nil => local only
	prefix      string        // e.g: "ratelimit:order-api"
	limit       int64         // requests per client per window, 0 => unlimited
	window      time.Duration
	logger      *zap.Logger

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

// NewDistributedLimiter creates a limiter allowing `limit` requests per client in each `window`.
func NewDistributedLimiter(redisClient *redis.Client, prefix string, limit int, window time.Duration, logger *zap.Logger) *DistributedLimiter {
	if window <= 0 {
		limit = 0
	}
	return &DistributedLimiter{
		redisClient: redisClient,
		prefix:      prefix,
		limit:       int64(limit),
		window:      window,
		logger:      logger,
		local:       make(map[string]*rate.Limiter),
	}
}

// Allow checks whether the client identified by clientKey may issue another request.
func (d *DistributedLimiter) Allow(ctx context.Context, clientKey string) bool {
	if d.limit <= 0 {
		return true // Unlimited
	}
	if d.redisClient == nil {
		return d.allowLocal(clientKey)
	}

	// Distributed check via Redis atomic increment on the current window bucket
	bucket := time.Now().UnixNano() / int64(d.window)
	key := fmt.Sprintf("%s:%s:%d", d.prefix, clientKey, bucket)
	pipe := d.redisClient.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, d.window)
	if _, err := pipe.Exec(ctx); err != nil {
		d.logger.Error("redis rate limit error; falling back to local", zap.Error(err))
		return d.allowLocal(clientKey)
	}

	if count := incr.Val(); count > d.limit {
		d.logger.Warn("client rate limit exceeded", zap.String("client", clientKey), zap.Int64("count", count))
		return false
	}
	return true
}

func (d *DistributedLimiter) allowLocal(clientKey string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.local[clientKey]
	if !ok {
		if len(d.local) >= maxLocalClients {
			d.local = make(map[string]*rate.Limiter)
		}
		l = rate.NewLimiter(rate.Every(d.window/time.Duration(d.limit)), int(d.limit))
		d.local[clientKey] = l
	}
	return l.Allow()
}
