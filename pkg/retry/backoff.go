package retry

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// NextDelay is the delay before the attempt following attempt (zero-based).
// It is jitter-free so a decision is reproducible for the same status.
func (p Policy) NextDelay(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 0 {
		attempt = 0
	}
	d := float64(p.InitialInterval) * math.Pow(p.Multiplier, float64(attempt))
	if math.IsInf(d, 1) || d > float64(p.MaxInterval) {
		return p.MaxInterval
	}
	return time.Duration(d)
}

// NextRetryAt is when the attempt following attempt should run, counted
// from the moment the decision was made.
func (p Policy) NextRetryAt(decidedAt time.Time, attempt int) time.Time {
	return decidedAt.Add(p.NextDelay(attempt))
}

// Exhausted reports whether no attempt remains after attempt (zero-based).
func (p Policy) Exhausted(attempt int) bool {
	return attempt+1 >= p.normalized().MaxAttempts
}

// backOff drives in-process retries. Unlike NextDelay it keeps the
// library's randomization so concurrent writers spread out.
func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(p.InitialInterval),
		backoff.WithMaxInterval(p.MaxInterval),
		backoff.WithMultiplier(p.Multiplier),
		backoff.WithMaxElapsedTime(p.MaxElapsedTime),
	)
	return backoff.WithMaxRetries(backoff.WithContext(exp, ctx), uint64(p.MaxAttempts-1))
}
