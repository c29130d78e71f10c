package middleware

import (
	"net/http"
	"strconv"
	"time"

	"SafeCircle/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimit caps request throughput per caller. The rate uses the
// "<count>-<period>" form, e.g. "120-M" for 120 requests a minute.
// Callers are keyed by participant id when the identity middleware ran
// first, by client IP otherwise. Health and metrics probes are never
// limited.
func RateLimit(rate string) gin.HandlerFunc {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		parsed = limiter.Rate{Limit: 120, Period: time.Minute}
	}
	lim := limiter.New(memory.NewStore(), parsed)

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			c.Next()
			return
		}

		key := c.GetString(ParticipantKey)
		if key == "" {
			key = c.ClientIP()
		}

		lctx, err := lim.Get(c.Request.Context(), key)
		if err != nil {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		if lctx.Reached {
			response.FailWith(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}
