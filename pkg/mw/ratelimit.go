package mw

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// ClientKey is the gin context key holding the caller identity used for
// rate limiting. Auth middleware sets it; anonymous calls fall back to the IP.
const ClientKey = "rate_client"

// ClientRateLimiter stores a token bucket per caller. Idle buckets expire.
type ClientRateLimiter struct {
	clients *cache.Cache
	mu      sync.Mutex
	r       rate.Limit
	b       int
}

// NewClientRateLimiter creates a new ClientRateLimiter.
func NewClientRateLimiter(r rate.Limit, b int, idle time.Duration) *ClientRateLimiter {
	return &ClientRateLimiter{
		clients: cache.New(idle, 2*idle),
		r:       r,
		b:       b,
	}
}

// GetLimiter returns the limiter for a caller, creating it on first use.
func (l *ClientRateLimiter) GetLimiter(client string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, found := l.clients.Get(client); found {
		l.clients.SetDefault(client, v)
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(l.r, l.b)
	l.clients.SetDefault(client, limiter)
	return limiter
}

// RateLimiter is a middleware for per-caller rate limiting.
func RateLimiter(limiter *ClientRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := c.GetString(ClientKey)
		if client == "" {
			client = c.ClientIP()
		}
		if !limiter.GetLimiter(client).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
