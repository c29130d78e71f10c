package cache

import (
	"context"
	"time"
)

// Cache is the shared key-value interface backing presence warm-start
// and notification dedup bookkeeping. Values are stored as strings.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) []string
	Close() error
}

// Config selects and configures the cache backend.
type Config struct {
	// "local" or "redis"
	Type string `json:"type" env:"CACHE_TYPE"`

	Redis RedisConfig `json:"redis"`

	Local LocalConfig `json:"local"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr         string        `json:"addr" env:"REDIS_ADDR"`
	Password     string        `json:"password" env:"REDIS_PASSWORD"`
	DB           int           `json:"db" env:"REDIS_DB"`
	PoolSize     int           `json:"pool_size"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// LocalConfig holds in-process cache settings.
type LocalConfig struct {
	DefaultExpiration time.Duration `json:"default_expiration"`
	CleanupInterval   time.Duration `json:"cleanup_interval"`
}
