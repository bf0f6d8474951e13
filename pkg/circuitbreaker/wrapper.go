package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	apperrors "verdict/pkg/errors"
	"verdict/pkg/metrics"
)

// Config defines circuit breaker configuration
type Config struct {
	Name          string
	MaxRequests   uint32
	Interval      time.Duration
	Timeout       time.Duration
	MinRequests   uint32
	FailureRatio  float64
	ReadyToTrip   func(counts gobreaker.Counts) bool
	OnStateChange func(name string, from, to gobreaker.State)
	// IsSuccessful decides whether an error counts against the breaker.
	// Callers' own rejections (not found, validation) should not trip it.
	IsSuccessful func(err error) bool
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig(name string) Config {
	return Config{
		Name:         name,
		MaxRequests:  3,
		Interval:     60 * time.Second,
		Timeout:      60 * time.Second,
		MinRequests:  3,
		FailureRatio: 0.5,
		IsSuccessful: IgnoreClientErrors,
	}
}

// IgnoreClientErrors treats not-found, validation and conflict errors as
// successful calls so that only infrastructure failures trip the breaker.
func IgnoreClientErrors(err error) bool {
	if err == nil {
		return true
	}
	return apperrors.IsNotFound(err) || apperrors.IsValidation(err) || apperrors.IsConflict(err)
}

type Wrapper struct {
	cb           *gobreaker.CircuitBreaker
	isSuccessful func(err error) bool
}

func NewWrapper(cfg Config) *Wrapper {
	if cfg.IsSuccessful == nil {
		cfg.IsSuccessful = IgnoreClientErrors
	}

	settings := gobreaker.Settings{
		Name:         cfg.Name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		IsSuccessful: cfg.IsSuccessful,
	}

	switch {
	case cfg.ReadyToTrip != nil:
		settings.ReadyToTrip = cfg.ReadyToTrip
	case cfg.MinRequests > 0 && cfg.FailureRatio > 0:
		minRequests, ratio := cfg.MinRequests, cfg.FailureRatio
		settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		}
	}

	// Metrics are updated even when the caller supplies its own handler.
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		updateCircuitBreakerMetrics(name, to)
		if cfg.OnStateChange != nil {
			cfg.OnStateChange(name, from, to)
		}
	}

	cb := gobreaker.NewCircuitBreaker(settings)
	updateCircuitBreakerMetrics(cfg.Name, cb.State())

	return &Wrapper{cb: cb, isSuccessful: cfg.IsSuccessful}
}

// Execute runs fn under the breaker. An open breaker surfaces as
// ErrServiceUnavailable so callers classify it as transient.
func Execute[T any](ctx context.Context, w *Wrapper, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	out, err := w.cb.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn(ctx)
	})
	w.RecordRequest(w.isSuccessful(err))

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, apperrors.Wrap(err, apperrors.ErrServiceUnavailable.
				WithMessage("circuit breaker "+w.Name()+" is "+w.State().String()).
				AsRetryable())
		}
		return zero, err
	}
	value, _ := out.(T)
	return value, nil
}

func (w *Wrapper) State() gobreaker.State {
	return w.cb.State()
}

func (w *Wrapper) Counts() gobreaker.Counts {
	return w.cb.Counts()
}

func (w *Wrapper) Name() string {
	return w.cb.Name()
}

func (w *Wrapper) IsOpen() bool {
	return w.cb.State() == gobreaker.StateOpen
}

func (w *Wrapper) IsClosed() bool {
	return w.cb.State() == gobreaker.StateClosed
}

func updateCircuitBreakerMetrics(name string, state gobreaker.State) {
	var stateValue float64
	switch state {
	case gobreaker.StateClosed:
		stateValue = 0
	case gobreaker.StateHalfOpen:
		stateValue = 1
	case gobreaker.StateOpen:
		stateValue = 2
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue)
}

// RecordRequest records a request through the circuit breaker
func (w *Wrapper) RecordRequest(success bool) {
	state := w.cb.State().String()
	metrics.CircuitBreakerRequests.WithLabelValues(w.cb.Name(), state).Inc()
	if !success {
		metrics.CircuitBreakerFailures.WithLabelValues(w.cb.Name()).Inc()
	}
}
