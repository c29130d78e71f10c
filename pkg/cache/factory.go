package cache

import (
	"fmt"
	"strings"
)

// NewCache creates a cache instance from config.
func NewCache(config Config) (Cache, error) {
	switch strings.ToLower(config.Type) {
	case "", "local":
		return NewLocalCache(config.Local), nil
	case "redis":
		return NewRedisCache(config.Redis)
	default:
		return nil, fmt.Errorf("unknown cache type: %s", config.Type)
	}
}
