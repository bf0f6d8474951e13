package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"verdict/pkg/metrics"
)

type limiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	mu       sync.Mutex
}

type RateLimitConfig struct {
	RPS             float64
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration
}

func DefaultConfig() RateLimitConfig {
	return RateLimitConfig{
		RPS:             10.0,
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

// Store keeps one token bucket per client key.
type Store struct {
	config   RateLimitConfig
	mu       sync.RWMutex
	limiters map[string]*limiter
}

func NewStore(config RateLimitConfig) *Store {
	defaults := DefaultConfig()
	if config.RPS <= 0 {
		config.RPS = defaults.RPS
	}
	if config.Burst <= 0 {
		config.Burst = defaults.Burst
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.MaxAge <= 0 {
		config.MaxAge = defaults.MaxAge
	}
	return &Store{config: config, limiters: make(map[string]*limiter)}
}

// Allow takes a token for key and reports how many remain.
func (s *Store) Allow(key string) (bool, int) {
	s.mu.RLock()
	l, exists := s.limiters[key]
	s.mu.RUnlock()

	if !exists {
		s.mu.Lock()
		l, exists = s.limiters[key]
		if !exists {
			l = &limiter{limiter: rate.NewLimiter(rate.Limit(s.config.RPS), s.config.Burst)}
			s.limiters[key] = l
		}
		s.mu.Unlock()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastSeen = time.Now()
	if !l.limiter.Allow() {
		return false, 0
	}
	remaining := int(l.limiter.Tokens())
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining
}

// Len is the number of tracked clients.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.limiters)
}

// Evict drops clients idle for longer than MaxAge.
func (s *Store) Evict(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, l := range s.limiters {
		l.mu.Lock()
		idle := now.Sub(l.lastSeen)
		l.mu.Unlock()
		if idle > s.config.MaxAge {
			delete(s.limiters, key)
		}
	}
}

// Run evicts idle clients every CleanupInterval until ctx is done.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Evict(now)
		}
	}
}

// Middleware limits requests per client IP.
func Middleware(store *Store) gin.HandlerFunc {
	limit := strconv.Itoa(int(store.config.RPS))
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if clientIP == "" {
			clientIP = c.RemoteIP()
		}

		allowed, remaining := store.Allow(clientIP)
		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			metrics.IncRateLimit("limited")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate limit exceeded",
				"error_code": "RATE_LIMIT_EXCEEDED",
			})
			return
		}

		metrics.IncRateLimit("allowed")
		c.Next()
	}
}
