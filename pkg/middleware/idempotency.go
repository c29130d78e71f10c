package middleware

import (
	"net/http"
	"sync"
	"time"

	"SafeCircle/pkg/response"

	"github.com/gin-gonic/gin"
)

// IdemStore remembers seen idempotency keys. Set returns false when
// the key was already recorded and has not expired.
type IdemStore interface {
	Set(key string, ttl time.Duration) bool
}

type memoryIdemStore struct {
	mu sync.Mutex
	m  map[string]time.Time
}

func newMemoryIdemStore() *memoryIdemStore {
	return &memoryIdemStore{m: make(map[string]time.Time)}
}

func (s *memoryIdemStore) Set(key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, exp := range s.m {
		if exp.Before(now) {
			delete(s.m, k)
		}
	}
	if exp, ok := s.m[key]; ok && exp.After(now) {
		return false
	}
	s.m[key] = now.Add(ttl)
	return true
}

// Idempotency rejects a repeated mutation carrying the same
// X-Idempotency-Key within the window. Requests without the header
// pass through untouched; the SOS trigger works without one because
// the coordinator ignores re-triggers on its own.
func Idempotency(store IdemStore, window time.Duration) gin.HandlerFunc {
	if store == nil {
		store = newMemoryIdemStore()
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut {
			c.Next()
			return
		}
		key := c.GetHeader("X-Idempotency-Key")
		if key == "" {
			c.Next()
			return
		}
		scoped := c.GetString(ParticipantKey) + ":" + c.FullPath() + ":" + key
		if !store.Set(scoped, window) {
			response.FailWith(c, http.StatusConflict, "duplicate request")
			c.Abort()
			return
		}
		c.Next()
	}
}
