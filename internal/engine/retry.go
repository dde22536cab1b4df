package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/kilnhq/kiln/internal/ir"
)

// DefaultParallelism bounds concurrent adapter calls unless overridden.
const DefaultParallelism = 10

// RetryPolicy defines backoff behavior for transient cloud API errors.
// It is passed into the executor rather than baked into it so retry
// behavior is testable in isolation.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Jitter:      true,
	}
}

// Do executes fn, retrying with exponential backoff while fn returns an
// error classified as transient. Permanent errors and context
// cancellation return immediately.
func (p *RetryPolicy) Do(ctx context.Context, fn func() error) error {
	if p == nil {
		p = DefaultRetryPolicy()
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !ir.IsTransient(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(p.backoff(attempt)):
		}
	}

	return fmt.Errorf("max attempts (%d) exceeded: %w", p.MaxAttempts, lastErr)
}

// backoff returns the delay before the given 1-based attempt's retry.
func (p *RetryPolicy) backoff(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter {
		d = d/2 + rand.Float64()*d/2
	}
	return time.Duration(d)
}
