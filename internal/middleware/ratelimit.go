package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Pilar-d/pendientesd/internal/config"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginRateLimiter throttles credential submissions per client IP with a
// token bucket. Idle clients are dropped lazily on later calls.
type LoginRateLimiter struct {
	mu          sync.Mutex
	visitors    map[string]*visitor
	limit       rate.Limit
	burst       int
	perMinute   int
	idleAfter   time.Duration
	lastCleanup time.Time
	now         func() time.Time
}

func NewLoginRateLimiter(cfg config.RateLimitConfig) *LoginRateLimiter {
	perMinute := cfg.RequestsPerMin
	if perMinute <= 0 {
		perMinute = 20
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}
	idle := cfg.CleanupInterval
	if idle <= 0 {
		idle = 5 * time.Minute
	}
	return &LoginRateLimiter{
		visitors:  make(map[string]*visitor),
		limit:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:     burst,
		perMinute: perMinute,
		idleAfter: idle,
		now:       time.Now,
	}
}

func (l *LoginRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanup(now)

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (l *LoginRateLimiter) cleanup(now time.Time) {
	if now.Sub(l.lastCleanup) < l.idleAfter {
		return
	}
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) >= l.idleAfter {
			delete(l.visitors, key)
		}
	}
	l.lastCleanup = now
}

func (l *LoginRateLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// Middleware limits POST requests only, so the forms themselves always
// render. onLimit writes the refusal; without it a 429 JSON body is sent.
func (l *LoginRateLimiter) Middleware(onLimit gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(l.perMinute))
		if l.Allow(c.ClientIP()) {
			c.Next()
			return
		}

		if onLimit != nil {
			onLimit(c)
			c.Abort()
			return
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":      "rate_limit_exceeded",
			"request_id": GetRequestID(c),
		})
	}
}
