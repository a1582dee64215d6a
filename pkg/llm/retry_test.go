package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssotgen/pkg/llm/llmerrors"
)

func fastRetryPolicy(maxAttempts int) *RetryPolicy {
	return NewRetryPolicy(RetryConfig{
		MaxAttempts:   maxAttempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	})
}

func TestShouldRetryClassification(t *testing.T) {
	policy := NewRetryPolicy(DefaultRetryConfig)

	assert.False(t, policy.ShouldRetry(nil))
	assert.False(t, policy.ShouldRetry(context.Canceled))
	// A deadline on its own is one stalled attempt, not an exhausted caller.
	assert.True(t, policy.ShouldRetry(context.DeadlineExceeded))

	assert.True(t, policy.ShouldRetry(llmerrors.NewError(llmerrors.ErrorTypeRateLimit, "throttled")))
	assert.True(t, policy.ShouldRetry(llmerrors.NewError(llmerrors.ErrorTypeTransient, "reset")))
	assert.True(t, policy.ShouldRetry(llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty")))

	assert.False(t, policy.ShouldRetry(llmerrors.NewError(llmerrors.ErrorTypeAuth, "bad key")))
	assert.False(t, policy.ShouldRetry(llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "too long")))
	assert.False(t, policy.ShouldRetry(llmerrors.NewUnavailableError(errors.New("down"), 4)))

	// Unclassified errors get the benefit of the doubt.
	assert.True(t, policy.ShouldRetry(errors.New("socket hiccup")))
}

func TestCalculateDelayBackoff(t *testing.T) {
	policy := NewRetryPolicy(RetryConfig{
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	})

	assert.Equal(t, time.Duration(0), policy.CalculateDelay(1))
	assert.Equal(t, 100*time.Millisecond, policy.CalculateDelay(2))
	assert.Equal(t, 200*time.Millisecond, policy.CalculateDelay(3))
	assert.Equal(t, 400*time.Millisecond, policy.CalculateDelay(4))
	// Capped.
	assert.Equal(t, time.Second, policy.CalculateDelay(10))
}

func TestCalculateDelayJitterSubNanosecondSpan(t *testing.T) {
	policy := NewRetryPolicy(RetryConfig{
		InitialDelay:  time.Nanosecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	})

	assert.NotPanics(t, func() {
		assert.Equal(t, time.Nanosecond, policy.CalculateDelay(2))
	})
}

func TestCalculateDelayJitterBounds(t *testing.T) {
	policy := NewRetryPolicy(RetryConfig{
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	})

	for i := 0; i < 50; i++ {
		delay := policy.CalculateDelay(2)
		assert.GreaterOrEqual(t, delay, 90*time.Millisecond)
		assert.LessOrEqual(t, delay, 110*time.Millisecond)
	}
}

func TestRetryMiddlewareRecovers(t *testing.T) {
	mock := NewMockClient(
		[]CompletionResponse{{Content: "ok"}},
		[]error{llmerrors.NewError(llmerrors.ErrorTypeTransient, "reset")},
	)
	client := Chain(mock, RetryMiddleware(fastRetryPolicy(3)))

	resp, err := client.Complete(context.Background(), NewCompletionRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Len(t, mock.Calls(), 2)
}

func TestRetryMiddlewareExhaustionBecomesUnavailable(t *testing.T) {
	mock := NewMockClient(nil, []error{
		llmerrors.NewError(llmerrors.ErrorTypeRateLimit, "throttled"),
		llmerrors.NewError(llmerrors.ErrorTypeRateLimit, "throttled"),
		llmerrors.NewError(llmerrors.ErrorTypeRateLimit, "throttled"),
	})
	client := Chain(mock, RetryMiddleware(fastRetryPolicy(3)))

	_, err := client.Complete(context.Background(), NewCompletionRequest(nil))
	require.Error(t, err)
	assert.True(t, llmerrors.IsUnavailable(err))
	assert.Len(t, mock.Calls(), 3)
}

func TestRetryMiddlewareStopsOnAuthError(t *testing.T) {
	mock := NewMockClient(nil, []error{
		llmerrors.NewError(llmerrors.ErrorTypeAuth, "bad key"),
	})
	client := Chain(mock, RetryMiddleware(fastRetryPolicy(3)))

	_, err := client.Complete(context.Background(), NewCompletionRequest(nil))
	require.Error(t, err)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeAuth))
	assert.Len(t, mock.Calls(), 1)
}

// slowClient stalls until its context gives up, counting attempts.
func slowClient(calls *int) Client {
	return WrapClient(
		func(ctx context.Context, _ CompletionRequest) (CompletionResponse, error) {
			*calls++
			<-ctx.Done()
			return CompletionResponse{}, ctx.Err()
		},
		func() string { return "slow-model" },
	)
}

func TestRetryMiddlewareRetriesPerAttemptTimeouts(t *testing.T) {
	var calls int
	client := Chain(slowClient(&calls),
		RetryMiddleware(fastRetryPolicy(4)),
		TimeoutMiddleware(5*time.Millisecond),
	)

	_, err := client.Complete(context.Background(), NewCompletionRequest(nil))
	require.Error(t, err)
	assert.True(t, llmerrors.IsUnavailable(err))
	assert.Equal(t, 4, calls)
}

func TestRetryMiddlewareHonorsCallerDeadline(t *testing.T) {
	var calls int
	client := Chain(slowClient(&calls),
		RetryMiddleware(fastRetryPolicy(4)),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, NewCompletionRequest(nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, llmerrors.IsUnavailable(err))
	assert.Equal(t, 1, calls)
}

func TestTimeoutMiddleware(t *testing.T) {
	slow := WrapClient(
		func(ctx context.Context, _ CompletionRequest) (CompletionResponse, error) {
			select {
			case <-ctx.Done():
				return CompletionResponse{}, ctx.Err()
			case <-time.After(time.Second):
				return CompletionResponse{Content: "too late"}, nil
			}
		},
		func() string { return "slow-model" },
	)
	client := Chain(slow, TimeoutMiddleware(5*time.Millisecond))

	_, err := client.Complete(context.Background(), NewCompletionRequest(nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next Client) Client {
			return WrapClient(
				func(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
					order = append(order, name)
					return next.Complete(ctx, req)
				},
				next.ModelName,
			)
		}
	}

	mock := NewMockClient([]CompletionResponse{{Content: "ok"}}, nil)
	client := Chain(mock, tag("outer"), tag("inner"))

	_, err := client.Complete(context.Background(), NewCompletionRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
	assert.Equal(t, "mock-model", client.ModelName())
}
