package retry

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"

	"ctpull/pkg/config"
)

// BackoffStrategy computes the wait before the n-th consecutive retry
type BackoffStrategy interface {
	// NextDelay returns the delay for attempt n, starting at 1
	NextDelay(attempt int) time.Duration
	// Reset clears any state carried between attempts
	Reset()
}

// LinearBackoff waits BaseDelay + Increment*(n-1). With BaseDelay equal to
// Increment this is a plain multiple of n.
type LinearBackoff struct {
	BaseDelay time.Duration
	Increment time.Duration
	// MaxDelay caps the delay; zero means uncapped
	MaxDelay time.Duration
	// JitterFactor spreads the delay by up to ±factor (0.0 to 1.0)
	JitterFactor float64
}

// DefaultLinearBackoff waits 5s, 10s, 15s, ...
func DefaultLinearBackoff() *LinearBackoff {
	return &LinearBackoff{
		BaseDelay: 5 * time.Second,
		Increment: 5 * time.Second,
	}
}

func (lb *LinearBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := float64(lb.BaseDelay + lb.Increment*time.Duration(attempt-1))
	return finish(delay, lb.MaxDelay, lb.JitterFactor)
}

func (lb *LinearBackoff) Reset() {}

// ExponentialBackoff waits BaseDelay * Multiplier^(n-1)
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// DefaultExponentialBackoff returns a backoff suited to one-shot API calls
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	multiplier := eb.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	delay := float64(eb.BaseDelay) * math.Pow(multiplier, float64(attempt-1))
	return finish(delay, eb.MaxDelay, eb.JitterFactor)
}

func (eb *ExponentialBackoff) Reset() {}

// ConstantBackoff always waits Delay
type ConstantBackoff struct {
	Delay time.Duration
}

func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

func (cb *ConstantBackoff) Reset() {}

// finish applies the cap and jitter and clamps at zero
func finish(delay float64, maxDelay time.Duration, jitterFactor float64) time.Duration {
	if maxDelay > 0 && delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	if jitterFactor > 0 {
		jitter := delay * jitterFactor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// BackoffFromConfig builds the strategy named in cfg. Unknown names fall
// back to linear.
func BackoffFromConfig(cfg config.BackoffConfig) BackoffStrategy {
	switch strings.ToLower(cfg.Strategy) {
	case config.BackoffExponential:
		return &ExponentialBackoff{
			BaseDelay:  cfg.BaseDelay,
			MaxDelay:   cfg.MaxDelay,
			Multiplier: cfg.Multiplier,
		}
	case config.BackoffConstant:
		return &ConstantBackoff{Delay: cfg.BaseDelay}
	default:
		return &LinearBackoff{
			BaseDelay: cfg.BaseDelay,
			Increment: cfg.Increment,
			MaxDelay:  cfg.MaxDelay,
		}
	}
}

// Wait blocks for delay or until ctx is done
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
