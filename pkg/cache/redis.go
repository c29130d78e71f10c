package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCache backs the Cache interface with redis so presence survives
// process restarts and is shared across nodes.
type redisCache struct {
	client *redis.Client
}

// NewRedisCache creates a redis cache and verifies the connection.
func NewRedisCache(config RedisConfig) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisCache{client: client}, nil
}

func (rc *redisCache) Get(ctx context.Context, key string) (string, bool) {
	result := rc.client.Get(ctx, key)
	if result.Err() != nil {
		return "", false
	}
	return result.Val(), true
}

func (rc *redisCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	if expiration < 0 {
		expiration = 0
	}
	return rc.client.Set(ctx, key, value, expiration).Err()
}

func (rc *redisCache) Delete(ctx context.Context, key string) error {
	return rc.client.Del(ctx, key).Err()
}

func (rc *redisCache) Keys(ctx context.Context, prefix string) []string {
	keys, err := rc.client.Keys(ctx, prefix+"*").Result()
	if err != nil {
		return nil
	}
	return keys
}

func (rc *redisCache) Close() error {
	return rc.client.Close()
}
