package http

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines per-IP rate limiting parameters for the public
// auth endpoints, where brute-force attempts concentrate.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

// AuthRateLimit is the default profile for the auth endpoint group.
var AuthRateLimit = RateLimitConfig{
	RequestsPerWindow: 30,
	Window:            time.Minute,
	Burst:             10,
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit returns middleware enforcing cfg per client IP. Zero or
// negative fields fall back to the default profile. Stale limiters are
// evicted opportunistically.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerWindow <= 0 {
		cfg.RequestsPerWindow = AuthRateLimit.RequestsPerWindow
	}
	if cfg.Window <= 0 {
		cfg.Window = AuthRateLimit.Window
	}
	if cfg.Burst <= 0 {
		cfg.Burst = AuthRateLimit.Burst
	}

	var (
		mu       sync.Mutex
		limiters = make(map[string]*ipLimiter)
	)

	limit := rate.Every(cfg.Window / time.Duration(cfg.RequestsPerWindow))

	return func(c *gin.Context) {
		ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			ip = c.Request.RemoteAddr
		}

		mu.Lock()
		entry, ok := limiters[ip]
		if !ok {
			entry = &ipLimiter{limiter: rate.NewLimiter(limit, cfg.Burst)}
			limiters[ip] = entry
		}
		entry.lastSeen = time.Now()

		for key, other := range limiters {
			if time.Since(other.lastSeen) > 10*cfg.Window {
				delete(limiters, key)
			}
		}
		mu.Unlock()

		if !entry.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}

		c.Next()
	}
}
