package relay

import (
	"math/rand"
	"time"
)

// BackoffConfig parameterizes the reconnect schedule.
type BackoffConfig struct {
	Initial     time.Duration
	Multiplier  float64
	Max         time.Duration
	Jitter      time.Duration
	MaxAttempts int
}

// DefaultBackoffConfig returns the module's stated default schedule.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:     1000 * time.Millisecond,
		Multiplier:  2,
		Max:         300000 * time.Millisecond,
		Jitter:      500 * time.Millisecond,
		MaxAttempts: 20,
	}
}

func (c BackoffConfig) normalized() BackoffConfig {
	if c.Initial <= 0 {
		c.Initial = DefaultBackoffConfig().Initial
	}
	if c.Multiplier <= 0 {
		c.Multiplier = DefaultBackoffConfig().Multiplier
	}
	if c.Max <= 0 {
		c.Max = DefaultBackoffConfig().Max
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultBackoffConfig().MaxAttempts
	}
	return c
}

// Delay computes delay = min(initial * multiplier^(attempts-1), max) +
// uniform(0, jitter), for attempts >= 1. ErrRetriesExhausted is returned once
// attempts has reached MaxAttempts.
func (c BackoffConfig) Delay(attempts int) (time.Duration, error) {
	c = c.normalized()
	if attempts >= c.MaxAttempts {
		return 0, ErrRetriesExhausted
	}
	if attempts < 1 {
		attempts = 1
	}

	base := float64(c.Initial)
	for i := 1; i < attempts; i++ {
		base *= c.Multiplier
		if base > float64(c.Max) {
			base = float64(c.Max)
			break
		}
	}

	jitter := time.Duration(0)
	if c.Jitter > 0 {
		jitter = time.Duration(rand.Int63n(int64(c.Jitter) + 1))
	}
	return time.Duration(base) + jitter, nil
}
