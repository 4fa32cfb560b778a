package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Kartekeya-Sharma/Contract-Guard/pkg/logger"
	"github.com/gin-gonic/gin"
)

// KeyFunc picks the bucket a request is counted against. An empty key is
// not limited.
type KeyFunc func(c *gin.Context) string

// ByClientIP limits each client address separately.
func ByClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// ByTenant limits each authenticated tenant separately. It must run after
// AuthMiddleware.
func ByTenant(c *gin.Context) string {
	return GetTenant(c)
}

type window struct {
	count   int
	resetAt time.Time
}

// RateLimiter is a fixed-window counter per key.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	rate    int           // requests per window
	period  time.Duration // window length
	now     func() time.Time
}

func NewRateLimiter(rate int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*window),
		rate:    rate,
		period:  period,
		now:     time.Now,
	}
}

// Allow counts one request for key. When the limit is reached it reports
// false and how long until the key's window resets.
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		l.sweep(now)
		w = &window{resetAt: now.Add(l.period)}
		l.windows[key] = w
	}

	if w.count >= l.rate {
		return false, w.resetAt.Sub(now)
	}
	w.count++
	return true, 0
}

// sweep drops expired windows. Must be called with lock held.
func (l *RateLimiter) sweep(now time.Time) {
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
}

// RateLimit rejects requests beyond rate per period for the key chosen by keyFn.
func RateLimit(rate int, period time.Duration, keyFn KeyFunc) gin.HandlerFunc {
	return rateLimit(NewRateLimiter(rate, period), keyFn)
}

func rateLimit(limiter *RateLimiter, keyFn KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)
		if key == "" {
			c.Next()
			return
		}

		allowed, retryAfter := limiter.Allow(key)
		if !allowed {
			logger.Warn(c.Request.Context(), "rate limit exceeded",
				"key", key,
				"path", c.Request.URL.Path,
			)

			seconds := int(retryAfter.Round(time.Second) / time.Second)
			c.Header("Retry-After", strconv.Itoa(max(seconds, 1)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
				"code":  "rate_limited",
			})
			return
		}

		c.Next()
	}
}
