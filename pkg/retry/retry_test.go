package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"ctpull/pkg/config"
	errs "ctpull/pkg/errors"
	"ctpull/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearBackoff(t *testing.T) {
	backoff := DefaultLinearBackoff()

	assert.Equal(t, time.Duration(0), backoff.NextDelay(0))
	for n := 1; n <= 10; n++ {
		assert.Equal(t, time.Duration(n)*5*time.Second, backoff.NextDelay(n), "attempt %d", n)
	}

	capped := &LinearBackoff{BaseDelay: time.Second, Increment: time.Second, MaxDelay: 3 * time.Second}
	assert.Equal(t, 3*time.Second, capped.NextDelay(10))
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{6, time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, backoff.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestJitterStaysInRange(t *testing.T) {
	backoff := &LinearBackoff{BaseDelay: time.Second, JitterFactor: 0.2}
	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(1)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
}

func TestConstantBackoff(t *testing.T) {
	backoff := &ConstantBackoff{Delay: 2 * time.Second}
	assert.Equal(t, time.Duration(0), backoff.NextDelay(0))
	assert.Equal(t, 2*time.Second, backoff.NextDelay(1))
	assert.Equal(t, 2*time.Second, backoff.NextDelay(9))
}

func TestBackoffFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Collector.Backoff

	assert.IsType(t, &LinearBackoff{}, BackoffFromConfig(cfg))
	assert.Equal(t, 15*time.Second, BackoffFromConfig(cfg).NextDelay(3))

	cfg.Strategy = "exponential"
	assert.Equal(t, 20*time.Second, BackoffFromConfig(cfg).NextDelay(3))

	cfg.Strategy = "CONSTANT"
	assert.Equal(t, 5*time.Second, BackoffFromConfig(cfg).NextDelay(3))
}

func TestWait(t *testing.T) {
	require.NoError(t, Wait(context.Background(), 0))
	require.NoError(t, Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, Wait(ctx, 0), context.Canceled)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(errs.New(errs.ErrorTypeAuth, 401, "bad token")))
	assert.True(t, DefaultRetryIf(errs.New(errs.ErrorTypeRateLimit, 429, "slow down")))
	assert.True(t, DefaultRetryIf(errors.New("something odd")))
}

func fastConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		Logger:      logger.NewNopLogger(),
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	var retried []int
	cfg := fastConfig(5)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		retried = append(retried, attempt)
	}

	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errs.New(errs.ErrorTypeServerError, 503, "unavailable")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	authErr := errs.New(errs.ErrorTypeAuth, 401, "bad token")

	err := Do(context.Background(), fastConfig(5), func(ctx context.Context) error {
		calls++
		return authErr
	})

	assert.Same(t, authErr, err)
	assert.Equal(t, 1, calls)
}

func TestDoMaxAttempts(t *testing.T) {
	calls := 0
	netErr := errs.New(errs.ErrorTypeNetwork, 0, "reset")

	err := Do(context.Background(), fastConfig(3), func(ctx context.Context) error {
		calls++
		return netErr
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, netErr)
	assert.Contains(t, err.Error(), "max retry attempts (3)")
	assert.Equal(t, 3, calls)
}

func TestDoCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Hour},
		OnRetry:     func(int, error, time.Duration) { cancel() },
	}

	err := Do(ctx, cfg, func(ctx context.Context) error {
		return errs.New(errs.ErrorTypeNetwork, 0, "reset")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), fastConfig(3), func(ctx context.Context) ([]string, error) {
		calls++
		if calls == 1 {
			return nil, errs.New(errs.ErrorTypeNetwork, 0, "reset")
		}
		return []string{"a"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)
}
