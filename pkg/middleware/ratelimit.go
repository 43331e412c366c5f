package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"storefront/internal/logging"
	"storefront/pkg/utils"
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter allows limit requests per window for each client IP, refilled evenly.
type RateLimiter struct {
	name   string
	limit  int
	window time.Duration

	mu      sync.Mutex
	clients map[string]*ipLimiter
	now     func() time.Time
}

func NewRateLimiter(name string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		name:    name,
		limit:   limit,
		window:  window,
		clients: make(map[string]*ipLimiter),
		now:     time.Now,
	}
}

func (r *RateLimiter) get(ip string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	cl, ok := r.clients[ip]
	if !ok {
		every := rate.Every(r.window / time.Duration(r.limit))
		cl = &ipLimiter{limiter: rate.NewLimiter(every, r.limit)}
		r.clients[ip] = cl
	}
	cl.lastSeen = r.now()
	return cl.limiter
}

func (r *RateLimiter) Allow(ip string) bool {
	return r.get(ip).AllowN(r.now(), 1)
}

// Cleanup forgets clients idle for longer than one window.
func (r *RateLimiter) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.window)
	removed := 0
	for ip, cl := range r.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(r.clients, ip)
			removed++
		}
	}
	return removed
}

// RunJanitor calls Cleanup every minute until ctx is done.
func (r *RateLimiter) RunJanitor(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Cleanup()
		}
	}
}

func (r *RateLimiter) Middleware() gin.HandlerFunc {
	if r.limit <= 0 || r.window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if !r.Allow(c.ClientIP()) {
			logging.From(c).Warn("rate limit exceeded", "limiter", r.name, "remote", c.ClientIP())
			c.Header("Retry-After", strconv.Itoa(int((r.window/time.Duration(r.limit)).Seconds())+1))
			utils.RespondError(c, http.StatusTooManyRequests, "too many requests, try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}
