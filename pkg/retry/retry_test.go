package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:   attempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		BackoffFactor: 2,
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("503")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsAtMaxAttempts(t *testing.T) {
	calls := 0
	root := errors.New("timeout")
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		return root
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, root))
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentErrorIsNotRetried(t *testing.T) {
	calls := 0
	root := errors.New("auth failed")
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		return Permanent(root)
	})

	assert.Equal(t, root, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ShouldRetryPredicate(t *testing.T) {
	transient := errors.New("rate limited")
	fatal := errors.New("bad filter")

	cfg := fastConfig(5)
	cfg.ShouldRetry = func(err error) bool { return errors.Is(err, transient) }

	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		if calls == 1 {
			return transient
		}
		return fatal
	})

	assert.Equal(t, fatal, err)
	assert.Equal(t, 2, calls)
}

func TestDoWithLog_ReportsAttempts(t *testing.T) {
	var logged []int
	_ = DoWithLog(context.Background(), fastConfig(3), "creatordb", func() error {
		return errors.New("boom")
	}, func(attempt int, err error, nextDelay time.Duration) {
		logged = append(logged, attempt)
	})

	assert.Equal(t, []int{1, 2}, logged)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastConfig(3), func() error {
		calls++
		return nil
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, calls)
}
