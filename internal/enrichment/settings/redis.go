package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces setting keys
const DefaultRedisPrefix = "job-enricher:settings:"

// RedisStore keeps settings in Redis so that every api and worker instance
// sees a flip at once
type RedisStore struct {
	client   redis.UniversalClient
	prefix   string
	fallback bool
	logger   *slog.Logger
}

// NewRedisStore creates a RedisStore. An empty prefix uses DefaultRedisPrefix.
func NewRedisStore(client redis.UniversalClient, prefix string, fallback bool, logger *slog.Logger) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		client:   client,
		prefix:   prefix,
		fallback: fallback,
		logger:   logger,
	}
}

// AutoProcessingEnabled reads the switch, returning the fallback when unset
func (s *RedisStore) AutoProcessingEnabled(ctx context.Context) (bool, error) {
	value, err := s.client.Get(ctx, s.prefix+KeyAutoProcessing).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return s.fallback, nil
		}
		return false, fmt.Errorf("redis get: %w", err)
	}

	return parseBool(KeyAutoProcessing, value)
}

// SetAutoProcessing stores the switch without expiry
func (s *RedisStore) SetAutoProcessing(ctx context.Context, enabled bool) error {
	if err := s.client.Set(ctx, s.prefix+KeyAutoProcessing, strconv.FormatBool(enabled), 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	s.logger.Info("Setting updated",
		slog.String("key", KeyAutoProcessing),
		slog.Bool("value", enabled),
	)
	return nil
}
