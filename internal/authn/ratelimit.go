package authn

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a token bucket per client key (bearer token or
// client IP), per spec.md §4.3 step 3. Buckets are created lazily and
// kept forever for the process lifetime — the expected key cardinality
// (agent count, not request count) is small enough that this never
// needs eviction.
type RateLimiter struct {
	capacity int
	refill   rate.Limit

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiter builds a RateLimiter where each key may burst up to
// capacity tokens and refills at refillPerSecond tokens/sec.
func NewRateLimiter(capacity int, refillPerSecond float64) *RateLimiter {
	return &RateLimiter{
		capacity: capacity,
		refill:   rate.Limit(refillPerSecond),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether the call identified by key may proceed,
// consuming one token from its bucket if so.
func (r *RateLimiter) Allow(key string) bool {
	return r.bucketFor(key).Allow()
}

func (r *RateLimiter) bucketFor(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[key]
	if !ok {
		l = rate.NewLimiter(r.refill, r.capacity)
		r.limiters[key] = l
	}
	return l
}
