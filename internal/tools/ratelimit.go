// Category "ratelimit" exposes introspection over the dispatcher's
// token-bucket limiter (internal/authn.RateLimiter), wired the same
// way as the auth category.
package tools

import (
	"context"
	"sync"

	"github.com/masc-dev/masc/internal/authn"
	"github.com/masc-dev/masc/internal/room"
)

var (
	rateLimiterMu sync.RWMutex
	rateLimiter   *authn.RateLimiter
)

// WireRateLimiter associates the process-wide rate limiter with the
// ratelimit tool category. Called once at startup by cmd/mascd.
func WireRateLimiter(rl *authn.RateLimiter) {
	rateLimiterMu.Lock()
	defer rateLimiterMu.Unlock()
	rateLimiter = rl
}

func currentRateLimiter() *authn.RateLimiter {
	rateLimiterMu.RLock()
	defer rateLimiterMu.RUnlock()
	return rateLimiter
}

func registerRatelimit(r *Registry) {
	r.Register(Tool{
		Name:        "masc_ratelimit_probe",
		Category:    CategoryRatelimit,
		Description: "Consume one token from a client's rate-limit bucket and report whether it was allowed.",
		Schema:      schema(`{"type":"object","properties":{"client_key":{"type":"string"}},"required":["client_key"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			rl := currentRateLimiter()
			if rl == nil {
				return struct {
					Allowed bool `json:"allowed"`
				}{true}, nil
			}
			key, err := stringArg(args, "client_key")
			if err != nil {
				return nil, err
			}
			return struct {
				Allowed bool `json:"allowed"`
			}{rl.Allow(key)}, nil
		},
	})
}
