package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	limiterIdleExpiry    = time.Hour
	limiterCleanupPeriod = 5 * time.Minute
	defaultRatePerSecond = 1.0
	defaultBurst         = 5
)

// RateLimiter keeps one token bucket per key (the client IP).
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*bucket
	rate     rate.Limit
	burst    int
	log      zerolog.Logger
	now      func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perSecond requests per key with the given burst.
func NewRateLimiter(perSecond float64, burst int, log zerolog.Logger) *RateLimiter {
	if perSecond <= 0 {
		perSecond = defaultRatePerSecond
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &RateLimiter{
		limiters: make(map[string]*bucket),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		log:      log,
		now:      time.Now,
	}
}

// Allow consumes a token for key and reports whether the request may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.limiters[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Run evicts idle buckets until ctx is cancelled.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(limiterCleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

func (rl *RateLimiter) cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for key, b := range rl.limiters {
		if now.Sub(b.lastSeen) > limiterIdleExpiry {
			delete(rl.limiters, key)
			removed++
		}
	}
	if removed > 0 {
		rl.log.Debug().Int("removed", removed).Int("remaining", len(rl.limiters)).Msg("rate limiter buckets evicted")
	}
	return removed
}

// RateLimit rejects requests with 429 once the client IP runs out of tokens.
// onReject, when non-nil, runs before the rejection is returned.
func RateLimit(rl *RateLimiter, onReject func(c echo.Context)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !rl.Allow(ip) {
				rl.log.Warn().Str("ip", ip).Str("path", c.Path()).Msg("rate limit exceeded")
				if onReject != nil {
					onReject(c)
				}
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, slow down")
			}
			return next(c)
		}
	}
}
