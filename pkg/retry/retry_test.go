package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoRetriesRetryableErrors(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return Retryable(errors.New("transient"))
		}
		return nil
	}, WithMaxAttempts(5), WithInitialDelay(time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	attempts := 0
	cause := errors.New("bad credentials")
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Permanent(cause)
	}, WithMaxAttempts(5), WithInitialDelay(time.Millisecond))

	assert.Equal(t, cause, err)
	assert.Equal(t, 1, attempts)
}

func TestDoDoesNotRetryPlainErrors(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("unclassified")
	}, WithMaxAttempts(5), WithInitialDelay(time.Millisecond))

	assert.Error(t, err)
	assert.Equal(t, 1, attempts, "unclassified errors are not retried by default")
}

func TestDoExhaustsAttempts(t *testing.T) {
	attempts := 0
	cause := errors.New("still down")
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Retryable(cause)
	}, WithMaxAttempts(3), WithInitialDelay(time.Millisecond))

	assert.Equal(t, cause, err, "the wrapper is stripped once attempts run out")
	assert.Equal(t, 3, attempts)
}

func TestDoHonoursRetryIf(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	}, WithMaxAttempts(3), WithInitialDelay(time.Millisecond),
		WithRetryIf(func(err error) bool { return true }))

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Do(ctx, func(ctx context.Context) error {
		attempts++
		cancel()
		return Retryable(errors.New("transient"))
	}, WithMaxAttempts(10), WithInitialDelay(time.Minute))

	assert.Error(t, err)
	assert.Equal(t, 1, attempts, "a cancelled context must not wait out the backoff")
}

func TestErrorClassification(t *testing.T) {
	cause := errors.New("boom")

	r := Retryable(cause)
	assert.True(t, IsRetryable(r))
	assert.False(t, IsPermanent(r))
	assert.ErrorIs(t, r, cause)

	p := Permanent(cause)
	assert.True(t, IsPermanent(p))
	assert.False(t, IsRetryable(p))
	assert.ErrorIs(t, p, cause)

	assert.Nil(t, Retryable(nil))
	assert.Nil(t, Permanent(nil))
}

func TestDelayGrowsAndCaps(t *testing.T) {
	r := New(
		WithInitialDelay(100*time.Millisecond),
		WithMultiplier(2),
		WithMaxDelay(300*time.Millisecond),
		WithJitter(0),
	)

	assert.Equal(t, 100*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 200*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 300*time.Millisecond, r.calculateDelay(3), "capped at the max delay")
	assert.Equal(t, 300*time.Millisecond, r.calculateDelay(8))
}
