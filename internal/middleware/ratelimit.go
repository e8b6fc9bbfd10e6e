package middleware

import (
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/aura-webinar/webcast/pkg/response"
)

// KeyedRateLimiter keeps one token bucket per key.
type KeyedRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	b        int
}

// NewKeyedRateLimiter creates a limiter allowing r events per second with burst b per key.
func NewKeyedRateLimiter(r rate.Limit, b int) *KeyedRateLimiter {
	return &KeyedRateLimiter{limiters: make(map[string]*rate.Limiter), r: r, b: b}
}

// Allow takes one token from key's bucket.
func (k *KeyedRateLimiter) Allow(key string) bool {
	k.mu.Lock()
	l, ok := k.limiters[key]
	if !ok {
		l = rate.NewLimiter(k.r, k.b)
		k.limiters[key] = l
	}
	k.mu.Unlock()
	return l.Allow()
}

// RateLimit limits requests per authenticated user, falling back to the client IP.
func RateLimit(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		perMinute = 1
	}
	limiter := NewKeyedRateLimiter(rate.Limit(float64(perMinute)/60), perMinute)
	retryAfter := strconv.Itoa((60 + perMinute - 1) / perMinute)
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if id := UserID(c); id > 0 {
			key = "user:" + strconv.FormatInt(id, 10)
		}
		if !limiter.Allow(key) {
			c.Header("Retry-After", retryAfter)
			response.TooManyRequests(c, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}
