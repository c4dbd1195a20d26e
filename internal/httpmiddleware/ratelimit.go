package httpmiddleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter throttles API traffic per client IP. Scans arrive in
// bursts when a class queues at a shared tablet, so each client gets a
// full minute of quota up front and a continuous refill after that.
// Health and metrics endpoints bypass the limiter.
type RateLimiter struct {
	perMin    float64
	mu        sync.Mutex
	buckets   map[string]*bucket
	skip      map[string]struct{}
	lastSweep time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// NewRateLimiter creates a limiter allowing perMinute requests per IP.
// Requests to skipPaths are never limited.
func NewRateLimiter(perMinute int, skipPaths ...string) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}
	return &RateLimiter{
		perMin:  float64(perMinute),
		buckets: make(map[string]*bucket),
		skip:    skip,
	}
}

// Middleware returns a gin handler enforcing the per-IP limit. Rejected
// requests carry a Retry-After hint so scanning clients can back off
// instead of hammering.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := l.skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if wait, ok := l.take(ip); !ok {
			c.Header("Retry-After", strconv.Itoa(wait))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

// take spends one token for key, refilling by elapsed time. When the
// bucket is dry it reports the whole seconds until the next token.
func (l *RateLimiter) take(key string) (retryAfter int, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.sweep(now)

	b, found := l.buckets[key]
	if !found {
		b = &bucket{tokens: l.perMin}
		l.buckets[key] = b
	} else {
		b.tokens += now.Sub(b.seen).Minutes() * l.perMin
		if b.tokens > l.perMin {
			b.tokens = l.perMin
		}
	}
	b.seen = now

	if b.tokens < 1 {
		wait := int(math.Ceil((1 - b.tokens) / l.perMin * 60))
		if wait < 1 {
			wait = 1
		}
		return wait, false
	}
	b.tokens--
	return 0, true
}

// sweep drops buckets idle long enough to be fully refilled anyway,
// keeping the map from growing with every IP ever seen.
func (l *RateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < time.Minute {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		if now.Sub(b.seen) > 10*time.Minute {
			delete(l.buckets, key)
		}
	}
}
