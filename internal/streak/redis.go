package streak

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "pm:streak:"
	defaultTTL       = 7 * 24 * time.Hour
)

// RedisTracker keeps streaks in Redis so they survive restarts. Each key
// expires after the TTL so abandoned subscriptions do not accumulate.
type RedisTracker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisTracker.
type RedisOption func(*RedisTracker)

// WithKeyPrefix sets the Redis key prefix.
func WithKeyPrefix(p string) RedisOption {
	return func(r *RedisTracker) {
		r.prefix = p
	}
}

// WithTTL sets how long an untouched streak is kept.
func WithTTL(d time.Duration) RedisOption {
	return func(r *RedisTracker) {
		r.ttl = d
	}
}

// NewRedisTracker creates a RedisTracker on an existing client.
func NewRedisTracker(client *redis.Client, opts ...RedisOption) *RedisTracker {
	r := &RedisTracker{
		client: client,
		prefix: defaultKeyPrefix,
		ttl:    defaultTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect parses redisURL, pings the server and returns a client.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return client, nil
}

func (r *RedisTracker) key(k string) string {
	return r.prefix + k
}

// RecordFailure atomically increments the streak and refreshes its TTL.
func (r *RedisTracker) RecordFailure(ctx context.Context, key string) (int, error) {
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, r.key(key))
		pipe.Expire(ctx, r.key(key), r.ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("recording failure streak: %w", err)
	}
	return int(incr.Val()), nil
}

// Reset deletes the streak.
func (r *RedisTracker) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("resetting failure streak: %w", err)
	}
	return nil
}

// Count returns the streak length, zero when none is stored.
func (r *RedisTracker) Count(ctx context.Context, key string) (int, error) {
	n, err := r.client.Get(ctx, r.key(key)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading failure streak: %w", err)
	}
	return n, nil
}
