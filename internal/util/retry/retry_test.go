package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithExponentialBackoff_Success(t *testing.T) {
	t.Parallel()
	attempts := 0

	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWithExponentialBackoff_EventualSuccess(t *testing.T) {
	t.Parallel()
	attempts := 0

	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, WithInitialDelay(time.Millisecond), WithMaxDelay(5*time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithExponentialBackoff_ExhaustsRetries(t *testing.T) {
	t.Parallel()
	attempts := 0

	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		return errors.New("always fails")
	}, WithMaxRetries(2), WithInitialDelay(time.Millisecond))

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "after 3 retries")
}

func TestWithExponentialBackoff_FatalNotRetried(t *testing.T) {
	t.Parallel()
	attempts := 0
	sentinel := errors.New("bad input")

	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		return Fatal(sentinel)
	}, WithInitialDelay(time.Millisecond))

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, sentinel)
}

func TestWithExponentialBackoff_ContextCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithExponentialBackoff(ctx, func() error {
		return errors.New("transient")
	}, WithInitialDelay(50*time.Millisecond))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithExponentialBackoff_MultiplierCapsAtMaxDelay(t *testing.T) {
	t.Parallel()
	attempts := 0

	start := time.Now()
	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		return errors.New("transient")
	},
		WithMaxRetries(3),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(2*time.Millisecond),
		WithMultiplier(100))

	require.Error(t, err)
	assert.Equal(t, 4, attempts)
	// 3 waits capped at 2ms each; generous upper bound for slow CI
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestPollUntil_Success(t *testing.T) {
	t.Parallel()
	calls := 0

	err := PollUntil(context.Background(), time.Millisecond, time.Second, func(context.Context) (bool, error) {
		calls++
		return calls >= 3, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPollUntil_Timeout(t *testing.T) {
	t.Parallel()

	err := PollUntil(context.Background(), time.Millisecond, 20*time.Millisecond, func(context.Context) (bool, error) {
		return false, nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestPollUntil_TimeoutReportsLastError(t *testing.T) {
	t.Parallel()

	err := PollUntil(context.Background(), time.Millisecond, 20*time.Millisecond, func(context.Context) (bool, error) {
		return false, errors.New("status check failed")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status check failed")
}

func TestPollUntil_FatalAborts(t *testing.T) {
	t.Parallel()
	calls := 0

	err := PollUntil(context.Background(), time.Millisecond, time.Second, func(context.Context) (bool, error) {
		calls++
		return false, Fatal(errors.New("resource vanished"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Contains(t, err.Error(), "resource vanished")
}

func TestFatal_NilPassthrough(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Fatal(nil))
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(errors.New("plain")))
	assert.True(t, IsFatal(Fatal(errors.New("wrapped"))))
}
