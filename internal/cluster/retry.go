package cluster

import "time"

// RetryConfig carries the exponential-backoff parameters for the
// straggler retry phase of §4.5, with defaults from §6.
type RetryConfig struct {
	InitialInterval time.Duration
	BackoffFactor   float64
	MaxInterval     time.Duration
	MaxAttempts     int
}

// DefaultRetryConfig matches the documented defaults: 2s initial,
// factor 2, capped at 30s, 5 attempts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 2000 * time.Millisecond,
		BackoffFactor:   2,
		MaxInterval:     30000 * time.Millisecond,
		MaxAttempts:     5,
	}
}

// IntervalForAttempt returns the backoff interval before the given
// attempt number (1-indexed), capped at MaxInterval.
func (c RetryConfig) IntervalForAttempt(attempt int) time.Duration {
	interval := float64(c.InitialInterval)
	for i := 1; i < attempt; i++ {
		interval *= c.BackoffFactor
		if interval > float64(c.MaxInterval) {
			interval = float64(c.MaxInterval)
			break
		}
	}
	if interval > float64(c.MaxInterval) {
		interval = float64(c.MaxInterval)
	}
	return time.Duration(interval)
}
