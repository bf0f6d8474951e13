// Package retry computes retry schedules: the delay a Retry decision hands
// back to the transport, and bounded in-process retries of outbound writes.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	apperrors "verdict/pkg/errors"
)

// Policy bounds both in-process retries (Retry) and the retry schedule a
// decision hands back to the transport (NextDelay, Exhausted).
type Policy struct {
	MaxAttempts     int           `mapstructure:"max_attempts" json:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval" json:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval" json:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier" json:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time" json:"max_elapsed_time"`
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  5 * time.Minute,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = d.InitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = d.MaxInterval
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	return p
}

func Retry(ctx context.Context, policy Policy, fn func() error) error {
	return RetryWithCallback(ctx, policy, fn, nil)
}

func RetryWithCallback(ctx context.Context, policy Policy, fn func() error, onRetry func(attempt int, err error, nextDelay time.Duration)) error {
	policy = policy.normalized()

	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}

		var fatalErr apperrors.FatalError
		if errors.As(err, &fatalErr) && fatalErr.IsFatal() {
			return backoff.Permanent(err)
		}

		if onRetry != nil && attempt < policy.MaxAttempts {
			onRetry(attempt, err, policy.NextDelay(attempt-1))
		}
		return err
	}

	return backoff.Retry(operation, policy.backOff(ctx))
}
