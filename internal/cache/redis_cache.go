package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/dummy-intern104/invex-ai/internal/domain"
)

type RedisExpiryCache struct {
	client *redis.Client
}

func NewRedisExpiryCache(client *redis.Client) *RedisExpiryCache {
	return &RedisExpiryCache{client: client}
}

func (c *RedisExpiryCache) Get(ctx context.Context, key string) ([]domain.ProductExpiry, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var expiries []domain.ProductExpiry
	if err := json.Unmarshal([]byte(val), &expiries); err != nil {
		return nil, false, err
	}
	return expiries, true, nil
}

func (c *RedisExpiryCache) Set(ctx context.Context, key string, value []domain.ProductExpiry, ttl time.Duration) error {
	if value == nil {
		value = []domain.ProductExpiry{}
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisExpiryCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
