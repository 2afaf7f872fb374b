package store

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisBackend keeps the seen set in a Redis set
type RedisBackend struct {
	client *redis.Client
	key    string
}

// NewRedisBackend connects to Redis and uses key as the set
func NewRedisBackend(addr string, db int, key string) *RedisBackend {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	return &RedisBackend{client: client, key: key}
}

// Load returns the members of the set
func (b *RedisBackend) Load(ctx context.Context) ([]string, error) {
	return b.client.SMembers(ctx, b.key).Result()
}

// Save adds only the new identities
func (b *RedisBackend) Save(ctx context.Context, ids []string, all []string) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	return b.client.SAdd(ctx, b.key, members...).Err()
}

// Clear deletes the set
func (b *RedisBackend) Clear(ctx context.Context) error {
	return b.client.Del(ctx, b.key).Err()
}

// Ping checks the connection
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
