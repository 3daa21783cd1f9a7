package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisRateStore implements RateStore using one Redis sorted set per key.
// Members are scored by hit time in milliseconds, and Redis TTLs reap
// idle keys, so no pruning loop is needed.
type RedisRateStore struct {
	client *redis.Client
	prefix string
}

// NewRedisRateStore creates a rate store from a Redis client and a key prefix.
// prefix typically ends with a colon.
func NewRedisRateStore(client *redis.Client, keyPrefix string) *RedisRateStore {
	if keyPrefix == "" {
		keyPrefix = "bifrost:rate:"
	}
	return &RedisRateStore{
		client: client,
		prefix: keyPrefix,
	}
}

// RedisConfig contains configuration options for Redis.
type RedisConfig struct {
	// Addr is the Redis server address (e.g., "localhost:6379")
	Addr string

	// Password is the Redis password (empty for no auth)
	Password string

	// DB is the Redis database number (0-15)
	DB int

	// KeyPrefix is prepended to all keys (default: "bifrost:rate:")
	KeyPrefix string
}

// NewRedisRateStoreFromConfig connects to Redis and creates a rate store.
func NewRedisRateStoreFromConfig(cfg RedisConfig) (*RedisRateStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: failed to connect: %w", err)
	}

	return NewRedisRateStore(client, cfg.KeyPrefix), nil
}

// Record registers a hit for key and returns the count inside window.
func (s *RedisRateStore) Record(ctx context.Context, key string, window time.Duration) (int, error) {
	k := s.prefix + key
	now := time.Now().UnixMilli()
	cutoff := now - window.Milliseconds()

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(now), Member: uuid.NewString()})
	card := pipe.ZCard(ctx, k)
	pipe.PExpire(ctx, k, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis: failed to record hit: %w", err)
	}
	return int(card.Val()), nil
}

// Reset removes the history for key (useful for testing).
func (s *RedisRateStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis: failed to delete key: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisRateStore) Close() error {
	return s.client.Close()
}
