package evolution

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how transient failures are retried. Attempts never
// exceed MaxRetries+1.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// Jitter is the randomization factor in [0, 1]: each delay is drawn from
	// [d*(1-Jitter), d*(1+Jitter)]. Zero gives fixed delays.
	Jitter float64
}

// DefaultRetryPolicy waits 2s, 4s, 8s between four attempts, ±20%.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: 2 * time.Second,
		MaxInterval:     8 * time.Second,
		Multiplier:      2,
		Jitter:          0.2,
	}
}

// withDefaults fills unset intervals from DefaultRetryPolicy and clamps the
// rest into range.
func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = def.InitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = def.MaxInterval
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Jitter > 1 {
		p.Jitter = 1
	}
	return p
}

// backOff builds fresh backoff state for a single Send.
func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.Jitter
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(p.MaxRetries))
}
