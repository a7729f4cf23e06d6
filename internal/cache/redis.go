package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"presupuesto/internal/log"
)

// Redis is a shared cache over a Redis instance, so several portal
// replicas reuse each other's summaries. Values are JSON.
type Redis[T any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects to the Redis at url and verifies the connection.
func NewRedis[T any](ctx context.Context, url, prefix string, ttl time.Duration) (*Redis[T], error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &Redis[T]{client: client, prefix: prefix, ttl: ttl}, nil
}

func (c *Redis[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	raw, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if err != redis.Nil {
			warn(ctx, "Redis get failed", key, err)
		}
		return zero, false
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		warn(ctx, "Redis cache entry unreadable", key, err)
		return zero, false
	}
	return v, true
}

func (c *Redis[T]) Set(ctx context.Context, key string, value T) {
	data, err := json.Marshal(value)
	if err != nil {
		warn(ctx, "Redis cache entry not serializable", key, err)
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		warn(ctx, "Redis set failed", key, err)
	}
}

func (c *Redis[T]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		warn(ctx, "Redis delete failed", key, err)
	}
}

// Cache failures are never fatal, they just degrade to the source.
func warn(ctx context.Context, msg, key string, err error) {
	fields := log.NewFields().WithComponent(log.ComponentCache).WithError(err)
	fields[log.FieldCacheKey] = key
	slog.WarnContext(ctx, msg, fields.ToSlice()...)
}

// Close releases the client connection.
func (c *Redis[T]) Close() error { return c.client.Close() }
