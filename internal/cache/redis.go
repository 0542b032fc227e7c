package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store shared by every instance through redis
type RedisStore struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

// NewRedisStore connects to the redis URL, e.g. redis://localhost:6379/0
func NewRedisStore(url, prefix string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisStore{Client: redis.NewClient(opt), Prefix: prefix, TTL: ttl}, nil
}

// Get implements Store
func (c *RedisStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.Client.Get(ctx, c.Prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set implements Store
func (c *RedisStore) Set(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, c.Prefix+key, b, c.TTL).Err()
}

// Delete implements Store
func (c *RedisStore) Delete(ctx context.Context, key string) error {
	return c.Client.Del(ctx, c.Prefix+key).Err()
}

// Ping checks connectivity
func (c *RedisStore) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// Close closes the client
func (c *RedisStore) Close() error {
	return c.Client.Close()
}
