package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/blackbird/internal/domain"
)

// ResilienceConfig holds the fortify settings applied to remote calls
type ResilienceConfig struct {
	// EnableCircuitBreaker opens the circuit after consecutive failures
	EnableCircuitBreaker bool

	// EnableRetry retries transport errors, 429 and 5xx with backoff
	EnableRetry bool

	// EnableBulkhead limits concurrent calls per endpoint group
	EnableBulkhead bool

	// MaxAttempts for retry (default: 3)
	MaxAttempts int

	// InitialDelay before the first retry (default: 200ms)
	InitialDelay time.Duration

	// MaxConcurrent for bulkhead (default: 16)
	MaxConcurrent int

	// FailureThreshold is the consecutive failure count that trips the
	// breaker (default: 5)
	FailureThreshold int
}

// DefaultResilienceConfig returns defaults suited to an interactive client
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		EnableCircuitBreaker: true,
		EnableRetry:          true,
		EnableBulkhead:       true,
		MaxAttempts:          3,
		InitialDelay:         200 * time.Millisecond,
		MaxConcurrent:        16,
		FailureThreshold:     5,
	}
}

// guard composes bulkhead, retry and circuit breaker around one kind of call
type guard[T any] struct {
	name     string
	breaker  circuitbreaker.CircuitBreaker[T]
	retrier  retry.Retry[T]
	bulkhead bulkhead.Bulkhead[T]
}

func newGuard[T any](name string, cfg ResilienceConfig) *guard[T] {
	g := &guard[T]{name: name}

	if cfg.EnableCircuitBreaker {
		threshold := cfg.FailureThreshold
		if threshold <= 0 {
			threshold = 5
		}
		g.breaker = circuitbreaker.New[T](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     15 * time.Second,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return int(counts.ConsecutiveFailures) >= threshold
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				slog.Warn("circuit breaker state change",
					"endpoint", name,
					"from", from.String(),
					"to", to.String())
			},
		})
	}

	if cfg.EnableRetry {
		attempts := cfg.MaxAttempts
		if attempts <= 0 {
			attempts = 3
		}
		delay := cfg.InitialDelay
		if delay <= 0 {
			delay = 200 * time.Millisecond
		}
		g.retrier = retry.New[T](retry.Config{
			MaxAttempts:   attempts,
			InitialDelay:  delay,
			MaxDelay:      5 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   isRetryable,
		})
	}

	if cfg.EnableBulkhead {
		maxConcurrent := cfg.MaxConcurrent
		if maxConcurrent <= 0 {
			maxConcurrent = 16
		}
		g.bulkhead = bulkhead.New[T](bulkhead.Config{
			MaxConcurrent: maxConcurrent,
			MaxQueue:      maxConcurrent * 4,
			QueueTimeout:  10 * time.Second,
		})
	}

	return g
}

// Execute runs op through the configured patterns: breaker outermost,
// then retry, then bulkhead per attempt.
func (g *guard[T]) Execute(ctx context.Context, op func(context.Context) (T, error)) (T, error) {
	operation := op

	if g.bulkhead != nil {
		operation = func(ctx context.Context) (T, error) {
			return g.bulkhead.Execute(ctx, op)
		}
	}

	if g.breaker != nil && g.retrier != nil {
		return g.breaker.Execute(ctx, func(ctx context.Context) (T, error) {
			return g.retrier.Do(ctx, operation)
		})
	}
	if g.breaker != nil {
		return g.breaker.Execute(ctx, operation)
	}
	if g.retrier != nil {
		return g.retrier.Do(ctx, operation)
	}
	return operation(ctx)
}

// statusError is a non-2xx response the caller has not classified yet
type statusError struct {
	Status int
	Detail string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Status, http.StatusText(e.Status))
}

// isRetryable reports whether another attempt could succeed
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var se *statusError
	if errors.As(err, &se) {
		return retryableStatus(se.Status)
	}
	if errors.Is(err, domain.ErrMalformedExercise) {
		return false
	}
	if _, ok := domain.IsAuthError(err); ok {
		return false
	}
	if _, ok := domain.IsValidationError(err); ok {
		return false
	}

	// transport failure
	return true
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
