package worker

import (
	"time"

	"barberbook/internal/config"
)

// RetryPolicy is the relay's exponential backoff for outbox rows that failed
// to publish. After MaxRetries attempts a row is dead-lettered.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// PolicyFromConfig builds the relay's backoff from its config section.
func PolicyFromConfig(cfg config.RelayConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:    cfg.MaxRetries,
		InitialDelay:  cfg.InitialDelay,
		MaxDelay:      cfg.MaxDelay,
		BackoffFactor: 2,
	}
}

// NextDelay is the wait before retry number attempt (1-based), capped at
// MaxDelay when one is set.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	delay := r.InitialDelay
	if delay <= 0 {
		delay = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * factor)
		if r.MaxDelay > 0 && delay >= r.MaxDelay {
			return r.MaxDelay
		}
		if delay <= 0 {
			// overflow
			return r.fallbackCap()
		}
	}
	if r.MaxDelay > 0 && delay > r.MaxDelay {
		return r.MaxDelay
	}
	return delay
}

func (r RetryPolicy) fallbackCap() time.Duration {
	if r.MaxDelay > 0 {
		return r.MaxDelay
	}
	return time.Hour
}
