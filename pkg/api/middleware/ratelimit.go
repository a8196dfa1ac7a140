package middleware

import (
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"
)

// RateLimiter is a per-user token bucket. Buckets refill continuously at
// limit/window; a request costs one token. State is in-memory, so limits are
// per server instance.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	limit  int
	window time.Duration

	now func() time.Time
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window per user.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// take attempts to spend one token for key. It returns whether the request
// is allowed, the remaining whole tokens, and how long until the next token
// when denied.
func (rl *RateLimiter) take(key string) (allowed bool, remaining int, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rl.limit), lastFill: now}
		rl.buckets[key] = b
	}

	refillRate := float64(rl.limit) / rl.window.Seconds()
	b.tokens += now.Sub(b.lastFill).Seconds() * refillRate
	if b.tokens > float64(rl.limit) {
		b.tokens = float64(rl.limit)
	}
	b.lastFill = now

	if b.tokens < 1 {
		deficit := 1 - b.tokens
		return false, 0, time.Duration(math.Ceil(deficit/refillRate)) * time.Second
	}

	b.tokens--
	return true, int(b.tokens), 0
}

// Middleware enforces the limit for authenticated requests. Requests without
// claims pass through untouched; unauthenticated endpoints are not limited
// by this layer.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := GetUserID(r.Context())
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		allowed, remaining, retryAfter := rl.take(userID)

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if !allowed {
			if retryAfter < time.Second {
				retryAfter = time.Second
			}
			reset := rl.now().Add(retryAfter)
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset.Unix()))
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())))
			writeDetail(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", rl.now().Add(rl.window).Unix()))
		next.ServeHTTP(w, r)
	})
}
