package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"example.com/backstage/services/analytics/config"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

const generationKey = "analytics:generation"

// ErrCacheMiss is returned by Get when the key is absent
var ErrCacheMiss = errors.New("key not found in cache")

// ErrCacheDisabled is returned when the cache is not configured
var ErrCacheDisabled = errors.New("cache is disabled")

// RedisCache caches aggregate results in Redis. Keys embed a generation counter that every
// write bumps, so a cached aggregate is never served after the data behind it changed.
// A nil or disabled cache reports ErrCacheDisabled from every method.
type RedisCache struct {
	client  *redis.Client
	enabled bool
	ttl     time.Duration
}

// NewRedisCache creates a new Redis cache
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	if !cfg.Enabled {
		return &RedisCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return NewRedisCacheFromClient(client, cfg.TTL), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, enabled: client != nil, ttl: ttl}
}

// Enabled reports whether the cache is usable
func (c *RedisCache) Enabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// Get retrieves a value from cache
func (c *RedisCache) Get(ctx context.Context, key string, value interface{}) error {
	if !c.Enabled() {
		return ErrCacheDisabled
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheMiss
		}
		return errors.Wrap(err, "failed to get value from Redis")
	}

	if err := json.Unmarshal(data, value); err != nil {
		return errors.Wrap(err, "failed to unmarshal cached value")
	}

	return nil
}

// Set stores a value in cache with the configured expiration
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}) error {
	if !c.Enabled() {
		return ErrCacheDisabled
	}

	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal value for caching")
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to set value in Redis")
	}

	return nil
}

// Generation returns the current data generation, 0 before the first write
func (c *RedisCache) Generation(ctx context.Context) (int64, error) {
	if !c.Enabled() {
		return 0, ErrCacheDisabled
	}

	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, errors.Wrap(err, "failed to read cache generation")
	}
	return gen, nil
}

// BumpGeneration invalidates every cached aggregate
func (c *RedisCache) BumpGeneration(ctx context.Context) error {
	if !c.Enabled() {
		return ErrCacheDisabled
	}

	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return errors.Wrap(err, "failed to bump cache generation")
	}
	return nil
}

// GetAggregateCacheKey generates the cache key of an aggregate for a data generation
func GetAggregateCacheKey(generation int64, name string, params ...string) string {
	key := fmt.Sprintf("analytics:g%d:%s", generation, name)
	if len(params) > 0 {
		key += ":" + strings.Join(params, ":")
	}
	return key
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if !c.Enabled() {
		return nil
	}

	return c.client.Close()
}
