package api

import (
	"sync"

	"barberbook/internal/config"

	"golang.org/x/time/rate"
)

const defaultBurst = 5

// RateLimiter keeps one token bucket per client key. HTTP and gRPC draw from
// the same bucket for a given key.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	limiters sync.Map // client key -> *rate.Limiter
}

func NewRateLimiter(cfg config.APIRateLimitConfig) *RateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	return &RateLimiter{rps: rate.Limit(cfg.RPS), burst: burst}
}

// allow spends one token of key's bucket. A non-positive rate disables limiting.
func (l *RateLimiter) allow(key string) bool {
	if l == nil || l.rps <= 0 {
		return true
	}
	v, ok := l.limiters.Load(key)
	if !ok {
		v, _ = l.limiters.LoadOrStore(key, rate.NewLimiter(l.rps, l.burst))
	}
	return v.(*rate.Limiter).Allow()
}
