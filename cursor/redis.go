package cursor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore implements Store using Redis. Cursor values are stored as
// decimal strings under a shared key prefix, with no expiry.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

// RedisConfig holds RedisStore configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Logger   *zap.Logger
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(ctx context.Context, cfg *RedisConfig) (*RedisStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("addr cannot be empty")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisStore{
		client: client,
		logger: logger,
	}, nil
}

// Load returns the stored cursor for key, or def when absent or unreadable
func (s *RedisStore) Load(ctx context.Context, key string, def uint64) uint64 {
	val, err := s.client.Get(ctx, redisKey(key)).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("failed to load cursor, using default",
				zap.String("key", key),
				zap.Uint64("default", def),
				zap.Error(err),
			)
		}
		return def
	}

	cur, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		s.logger.Warn("corrupt cursor value, using default",
			zap.String("key", key),
			zap.Uint64("default", def),
			zap.Error(err),
		)
		return def
	}

	return cur
}

// Save persists the cursor
func (s *RedisStore) Save(ctx context.Context, key string, value uint64) error {
	if err := s.client.Set(ctx, redisKey(key), strconv.FormatUint(value, 10), 0).Err(); err != nil {
		return fmt.Errorf("failed to save cursor %s: %w", key, err)
	}
	return nil
}

// Reset overwrites the cursor; identical write path to Save
func (s *RedisStore) Reset(ctx context.Context, key string, value uint64) error {
	return s.Save(ctx, key, value)
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func redisKey(key string) string {
	return "chainlistener:cursor:" + key
}
