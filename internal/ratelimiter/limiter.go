package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter is one token bucket shared by every worker. It enforces a
// steady-state rate (e.g. 10 emails/sec) against the SMTP relay's quota.
// Burst is set equal to the rate so no extra burst capacity is allowed
// beyond the configured per-second maximum.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a Limiter granting ratePerSec tokens per second.
// A rate of zero or less disables limiting.
func New(ratePerSec int) *Limiter {
	if ratePerSec <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec)}
}

// Wait blocks until a token is available.
// Workers call it before opening a lease, so a throttled worker never holds
// a row lock or a pooled connection while it waits.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
