package sentinel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisSettingsPrefix = "sentinel:settings"

// RedisSettingsStore keeps viewer settings in Redis so they survive restarts and are
// shared between dashboard replicas.
type RedisSettingsStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSettingsStore wraps a Redis client. A zero ttl keeps keys forever.
func NewRedisSettingsStore(client *redis.Client, ttl time.Duration) *RedisSettingsStore {
	return &RedisSettingsStore{client: client, ttl: ttl}
}

// Get loads a value.
func (s *RedisSettingsStore) Get(ctx context.Context, scope, key string) (string, bool, error) {
	if scope == "" {
		return "", false, errMissingScope
	}
	value, err := s.client.Get(ctx, s.key(scope, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sentinel: redis get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores a value.
func (s *RedisSettingsStore) Set(ctx context.Context, scope, key, value string) error {
	if scope == "" {
		return errMissingScope
	}
	if err := s.client.Set(ctx, s.key(scope, key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("sentinel: redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes a value.
func (s *RedisSettingsStore) Delete(ctx context.Context, scope, key string) error {
	if scope == "" {
		return errMissingScope
	}
	if err := s.client.Del(ctx, s.key(scope, key)).Err(); err != nil {
		return fmt.Errorf("sentinel: redis del %s: %w", key, err)
	}
	return nil
}

func (s *RedisSettingsStore) key(scope, key string) string {
	return redisSettingsPrefix + ":" + scope + ":" + key
}
