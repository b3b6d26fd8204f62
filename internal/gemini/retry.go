package gemini

import (
	"errors"
	"time"
)

// RetryPolicy decides whether a failed upstream call gets another attempt.
// Only the transient-unavailable class is worth retrying, and it gets
// exactly one more attempt after a fixed wait; everything else is terminal
// on the first failure.
type RetryPolicy struct {
	// Wait is the fixed delay before the single retry.
	Wait time.Duration
	// MaxAttempts is the total attempt budget, including the first call.
	MaxAttempts int
}

// DefaultRetryPolicy allows one retry after two seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Wait: 2 * time.Second, MaxAttempts: 2}
}

// ShouldRetry reports whether the call should be attempted again after err,
// and how long to wait first. attempt is zero-based: 0 means the first
// attempt just failed.
func (p RetryPolicy) ShouldRetry(attempt int, err error) (time.Duration, bool) {
	if attempt >= p.MaxAttempts-1 {
		return 0, false
	}
	var unavail *ErrUnavailable
	if errors.As(err, &unavail) {
		return p.Wait, true
	}
	return 0, false
}
