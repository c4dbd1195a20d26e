package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// prefix namespaces every cache key in redis.
const prefix = "prayerlog:"

// RedisStore persists cache entries in redis.
type RedisStore struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts.
func NewRedis(addr string) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &RedisStore{Client: client}
}

// Get returns the raw blob for key, nil when absent.
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.Client.Get(ctx, prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// Set stores the raw blob under key without expiry.
func (r *RedisStore) Set(ctx context.Context, key string, raw []byte) error {
	return r.Client.Set(ctx, prefix+key, raw, 0).Err()
}

// Remove deletes the key.
func (r *RedisStore) Remove(ctx context.Context, key string) error {
	return r.Client.Del(ctx, prefix+key).Err()
}

// Healthy verifies redis connectivity.
func (r *RedisStore) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}
