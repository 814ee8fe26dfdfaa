package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/markdave123-py/Lectern/internal/core"
)

// RetryPolicy is a fixed attempt budget.
//
// Attempts: total tries including the first one.
// Delay:    wait before the second try.
// Constant: keep Delay between every try instead of doubling it.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
	Constant bool
}

// WithRetry runs op until it succeeds or the attempt budget is spent. The
// wait before try n is Delay*2^(n-2) (Delay for constant policies). Errors
// classified by core.IsNonRetryable are returned after the first try.
func WithRetry[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var b backoff.BackOff
	if p.Constant {
		b = backoff.NewConstantBackOff(p.Delay)
	} else {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = p.Delay
		eb.Multiplier = 2
		eb.RandomizationFactor = 0
		eb.MaxInterval = p.Delay << uint(attempts)
		b = eb
	}

	v, err := backoff.Retry(ctx, func() (T, error) {
		v, err := op(ctx)
		if err != nil && core.IsNonRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
	)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	return v, err
}
