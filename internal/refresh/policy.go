package refresh

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how a single per-scheme attempt is retried before it is
// recorded as failed. The policy is a value so tests can exercise it in
// isolation with tiny delays.
type RetryPolicy struct {
	MaxAttempts uint64
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy retries three times with exponential backoff from two
// seconds, matching the source website's tolerance for polite re-requests.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// Attempt runs op under the policy: exponential backoff between attempts,
// bounded attempt count, and early stop on context cancellation. Wrap an
// error in backoff.Permanent to fail immediately without further attempts.
func (p RetryPolicy) Attempt(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	b.MaxElapsedTime = 0 // bounded by attempt count, not wall clock
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, attempts-1), ctx))
}
