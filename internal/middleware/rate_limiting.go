package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/kimgyuhyun/ott-project-sub001/internal/config"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type visitorRegistry struct {
	mu       sync.Mutex
	visitors map[string]*visitor
}

func newVisitorRegistry() *visitorRegistry {
	r := &visitorRegistry{visitors: make(map[string]*visitor)}
	go r.cleanup()
	return r
}

func (r *visitorRegistry) get(ip string, requests, windowSeconds, burst int) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.visitors[ip]
	if !ok {
		limit := rate.Limit(float64(requests) / float64(windowSeconds))
		if burst <= 0 {
			burst = requests
		}
		v = &visitor{limiter: rate.NewLimiter(limit, burst)}
		r.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// cleanup drops visitors idle for more than ten minutes so the registry does
// not grow without bound.
func (r *visitorRegistry) cleanup() {
	for {
		time.Sleep(time.Minute)

		r.mu.Lock()
		for ip, v := range r.visitors {
			if time.Since(v.lastSeen) > 10*time.Minute {
				delete(r.visitors, ip)
			}
		}
		r.mu.Unlock()
	}
}

// RateLimitMiddleware limits the request rate per client IP.
func RateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	registry := newVisitorRegistry()

	return func(c *gin.Context) {
		limiter := registry.get(c.ClientIP(), cfg.RateLimitRequests, cfg.RateLimitWindow, cfg.RateLimitBurst)

		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests, please try again later",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
