package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"ssotgen/pkg/llm/llmerrors"
)

// RetryConfig defines configuration for retry behavior across all error types.
type RetryConfig struct {
	MaxAttempts   int           `json:"max_attempts"`   // Maximum number of attempts (including initial)
	InitialDelay  time.Duration `json:"initial_delay"`  // Initial delay before first retry
	MaxDelay      time.Duration `json:"max_delay"`      // Maximum delay between retries
	BackoffFactor float64       `json:"backoff_factor"` // Multiplier for exponential backoff
	Jitter        bool          `json:"jitter"`         // Add random jitter to prevent thundering herd
}

// DefaultRetryConfig provides reasonable defaults for retry behavior.
//
//nolint:gochecknoglobals // Sensible default config pattern
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:   4,
	InitialDelay:  500 * time.Millisecond,
	MaxDelay:      10 * time.Second,
	BackoffFactor: 2.0,
	Jitter:        true,
}

// RetryPolicy encapsulates retry configuration and error classification.
type RetryPolicy struct {
	Config RetryConfig
}

// NewRetryPolicy creates a retry policy with the given configuration.
func NewRetryPolicy(config RetryConfig) *RetryPolicy {
	return &RetryPolicy{Config: config}
}

// ShouldRetry determines whether an error warrants another attempt.
//
// A bare deadline error is retryable here: with a per-request timeout inside
// the retry middleware it means one stalled attempt, not an exhausted caller
// budget. The retry loop checks the caller's own context separately.
func (p *RetryPolicy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var llmErr *llmerrors.Error
	if errors.As(err, &llmErr) {
		return llmErr.IsRetryable()
	}

	// Unclassified errors default to retryable once via MaxAttempts.
	return true
}

// CalculateDelay computes the backoff delay for the given attempt number.
func (p *RetryPolicy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delay := time.Duration(float64(p.Config.InitialDelay) * math.Pow(p.Config.BackoffFactor, float64(attempt-2)))
	if delay > p.Config.MaxDelay {
		delay = p.Config.MaxDelay
	}

	if span := int64(delay) / 5; p.Config.Jitter && span > 0 {
		// +/- 10% jitter
		jitter := time.Duration(rand.Int63n(span)) //nolint:gosec // Not security sensitive
		delay = delay - delay/10 + jitter
	}

	return delay
}

// RetryMiddleware wraps a client with bounded retry and exponential backoff.
// When a retryable error survives all attempts, an Unavailable error is
// emitted so callers can abort the feature run cleanly.
func RetryMiddleware(policy *RetryPolicy) Middleware {
	return func(next Client) Client {
		return WrapClient(
			func(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
				var lastErr error

				for attempt := 1; attempt <= policy.Config.MaxAttempts; attempt++ {
					if attempt > 1 {
						delay := policy.CalculateDelay(attempt)
						if delay > 0 {
							select {
							case <-ctx.Done():
								return CompletionResponse{}, fmt.Errorf("retry cancelled: %w", ctx.Err())
							case <-time.After(delay):
							}
						}
					}

					resp, err := next.Complete(ctx, req)
					if err == nil {
						return resp, nil
					}

					lastErr = err

					// The caller's own cancellation or deadline is
					// authoritative; only per-attempt failures retry.
					if ctx.Err() != nil {
						return CompletionResponse{}, lastErr
					}
					if !policy.ShouldRetry(err) {
						break
					}
					if attempt >= policy.Config.MaxAttempts {
						break
					}
				}

				if policy.ShouldRetry(lastErr) {
					return CompletionResponse{}, llmerrors.NewUnavailableError(lastErr, policy.Config.MaxAttempts)
				}
				return CompletionResponse{}, lastErr
			},
			next.ModelName,
		)
	}
}

// TimeoutMiddleware wraps a client with a per-request timeout so a stalled
// provider cannot hang a feature's run indefinitely.
func TimeoutMiddleware(duration time.Duration) Middleware {
	return func(next Client) Client {
		return WrapClient(
			func(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
				timeoutCtx, cancel := context.WithTimeout(ctx, duration)
				defer cancel()
				return next.Complete(timeoutCtx, req)
			},
			next.ModelName,
		)
	}
}
