package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "publish", RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
	}, func() error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad payload")
	calls := 0
	err := Retry(context.Background(), "publish", RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		Retryable:    func(err error) bool { return !errors.Is(err, permanent) },
	}, func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryExhausted(t *testing.T) {
	err := Retry(context.Background(), "ping", RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}, func() error {
		return errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.ErrorContains(t, err, "all 2 attempts failed")
}

func TestComputeDelayCapped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 2 * time.Second, Multiplier: 10, JitterFraction: 0.1}
	assert.Equal(t, 2*time.Second, computeDelay(4, cfg))
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker("cache", CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})
	cb.now = func() time.Time { return now }
	ctx := context.Background()
	fail := func(context.Context) error { return errFlaky }
	ok := func(context.Context) error { return nil }

	assert.ErrorIs(t, cb.Execute(ctx, fail), errFlaky)
	assert.ErrorIs(t, cb.Execute(ctx, fail), errFlaky)
	assert.Equal(t, StateOpen, cb.GetState())
	assert.False(t, cb.Allow())
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrCircuitOpen)

	now = now.Add(time.Minute)
	assert.True(t, cb.Allow())
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerIgnoresCancellation(t *testing.T) {
	cb := NewCircuitBreaker("cache", CircuitBreakerConfig{FailureThreshold: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 5*time.Millisecond, "rebuild", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(time.Millisecond)
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCircuitBreakerReportsTransitions(t *testing.T) {
	var seen []string
	cb := NewCircuitBreaker("cache", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		OnStateChange: func(from, to State) {
			seen = append(seen, from.String()+"->"+to.String())
		},
	})
	now := time.Unix(0, 0)
	cb.now = func() time.Time { return now }
	ctx := context.Background()

	_ = cb.Execute(ctx, func(context.Context) error { return errFlaky })
	snap := cb.Snapshot()
	assert.Equal(t, StateOpen, snap.State)
	assert.Equal(t, 1, snap.Failures)
	assert.Equal(t, now, snap.OpenedAt)

	now = now.Add(time.Minute)
	require.NoError(t, cb.Execute(ctx, func(context.Context) error { return nil }))
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, seen)

	cb.Reset()
	assert.Len(t, seen, 3, "reset of a closed breaker is not a transition")
}
