package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// localCache wraps patrickmn/go-cache for single-process deployments.
type localCache struct {
	cache *gocache.Cache
}

// NewLocalCache creates an in-process cache.
func NewLocalCache(config LocalConfig) Cache {
	def := config.DefaultExpiration
	if def <= 0 {
		def = gocache.NoExpiration
	}
	cleanup := config.CleanupInterval
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	return &localCache{cache: gocache.New(def, cleanup)}
}

func (lc *localCache) Get(_ context.Context, key string) (string, bool) {
	v, ok := lc.cache.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (lc *localCache) Set(_ context.Context, key string, value string, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = gocache.NoExpiration
	}
	lc.cache.Set(key, value, expiration)
	return nil
}

func (lc *localCache) Delete(_ context.Context, key string) error {
	lc.cache.Delete(key)
	return nil
}

func (lc *localCache) Keys(_ context.Context, prefix string) []string {
	items := lc.cache.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

func (lc *localCache) Close() error {
	lc.cache.Flush()
	return nil
}
