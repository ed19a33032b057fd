package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection parameters for the Redis store.
type RedisConfig struct {
	// Addr is host:port. Env: REDIS_ADDR. Empty disables caching.
	Addr string

	// Password is optional. Env: REDIS_PASSWORD.
	Password string

	// DB selects the logical database. Env: REDIS_DB.
	DB int

	// TTL is the entry lifetime. Env: EMBEDDING_CACHE_TTL (Go duration, default 24h).
	TTL time.Duration
}

// RedisConfigFromEnv resolves the Redis configuration from the environment.
func RedisConfigFromEnv() *RedisConfig {
	cfg := &RedisConfig{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
		TTL:      DefaultTTL,
	}
	if v, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil && v >= 0 {
		cfg.DB = v
	}
	if d, err := time.ParseDuration(os.Getenv("EMBEDDING_CACHE_TTL")); err == nil && d > 0 {
		cfg.TTL = d
	}
	return cfg
}

// Enabled reports whether a Redis address is configured.
func (c *RedisConfig) Enabled() bool { return c.Addr != "" }

// RedisStore implements Store on a go-redis client.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedis connects to Redis and verifies the connection with PING.
func NewRedis(ctx context.Context, cfg *RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return &RedisStore{rdb: rdb}, nil
}

// Get returns the value stored under key or ErrMiss.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: redis get: %w", err)
	}
	return val, nil
}

// Set stores value under key with the given expiry.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the client pool.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
