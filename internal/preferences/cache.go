package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lupppig/notifyq/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Cache holds collapsed per-user preferences. Get reports a miss as
// (nil, nil).
type Cache interface {
	Get(ctx context.Context, userID string) (*domain.Preferences, error)
	Set(ctx context.Context, userID string, prefs domain.Preferences, ttl time.Duration) error
	Delete(ctx context.Context, userID string) error
}

func cacheKey(userID string) string {
	return "user:" + userID + ":preferences"
}

// RedisCache stores preferences as JSON strings with an expiry.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, userID string) (*domain.Preferences, error) {
	data, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var prefs domain.Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("decode cached preferences: %w", err)
	}
	return &prefs, nil
}

func (c *RedisCache) Set(ctx context.Context, userID string, prefs domain.Preferences, ttl time.Duration) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// DialRedis parses a redis:// URL or a bare host:port and pings it.
func DialRedis(ctx context.Context, target string) (*redis.Client, error) {
	opts, err := redis.ParseURL(target)
	if err != nil {
		opts = &redis.Options{Addr: target}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return client, nil
}
