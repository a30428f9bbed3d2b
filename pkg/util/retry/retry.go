package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/spec-kit/issue-service/pkg/util/errorutil"
)

// Policy controls how many attempts are made and how long to wait between them.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
}

// WithBackoff calls fn until it succeeds, returns a non-retriable error, or the
// attempts run out. Only transient store failures are retried. Cancellation
// is reported as a store failure wrapping the context error.
func WithBackoff[T any](ctx context.Context, policy Policy, fn func() (T, error)) (T, error) {
	var zero T
	if policy.Attempts <= 0 {
		return zero, fmt.Errorf("retry attempts must be > 0, got %d", policy.Attempts)
	}
	var lastErr error

	for i := range policy.Attempts {
		select {
		case <-ctx.Done():
			return zero, errorutil.NewStoreUnavailable(ctx.Err())
		default:
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !errorutil.Retriable(err) {
			return zero, err
		}

		if i < policy.Attempts-1 {
			delay := time.Duration(math.Pow(2, float64(i))) * policy.BaseDelay
			if policy.BaseDelay > 0 {
				delay += time.Duration(rand.Int63n(int64(policy.BaseDelay))) //nolint:gosec // jitter doesn't need crypto rand
			}
			select {
			case <-ctx.Done():
				return zero, errorutil.NewStoreUnavailable(ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	return zero, lastErr
}
