package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "authctl"

// RedisBackend is a redis backed durable store, useful when several hosts share one session.
type RedisBackend struct {
	rdb       *redis.Client
	namespace string
}

// NewRedisBackend creates a RedisBackend on an existing client
func NewRedisBackend(rdb *redis.Client, namespace string) *RedisBackend {
	return &RedisBackend{rdb: rdb, namespace: namespace}
}

func (r *RedisBackend) key(key string) string {
	return namespacedKey(redisKeyPrefix+":"+r.namespace, key)
}

func (r *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.rdb.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to load %s from redis: %w", key, err)
	}
	return value, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key, value string) error {
	if err := r.rdb.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to save %s to redis: %w", key, err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s from redis: %w", key, err)
	}
	return nil
}

// Close closes the redis client
func (r *RedisBackend) Close() error {
	return r.rdb.Close()
}
