package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by a Backend when the key does not exist.
var ErrNotFound = errors.New("key not found")

// Backend is the durable key-value storage the snapshot is written to.
type Backend interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// redisBackend implements Backend using Redis
type redisBackend struct {
	client *redis.Client
}

// NewRedisClient opens a Redis client for the snapshot backend
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewRedisBackend wraps an existing Redis client
func NewRedisBackend(client *redis.Client) Backend {
	return &redisBackend{client: client}
}

// Set stores a value. A zero ttl keeps the key until it is deleted.
func (b *redisBackend) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return b.client.Set(ctx, key, value, ttl).Err()
}

// Get retrieves a value by key
func (b *redisBackend) Get(ctx context.Context, key string) (string, error) {
	val, err := b.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

// Delete removes a key; deleting a missing key is not an error
func (b *redisBackend) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, key).Err()
}
