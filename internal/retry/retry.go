package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy parameterizes the shared exponential-backoff-with-jitter used for all
// remote I/O (SSH, source SQL, destination upserts, object storage).
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// Do runs fn under the policy. retryable decides whether an error is worth
// another attempt; a nil predicate retries everything. Non-retryable errors
// are returned immediately.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func() error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = 500 * time.Millisecond
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = 10 * time.Second
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.MaxInterval = p.MaxInterval

	wrapped := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.MaxAttempts-1)), ctx)
	return backoff.Retry(wrapped, b)
}
