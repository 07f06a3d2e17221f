package domain

import (
	"context"
	"time"
)

// Quota is a request budget of Limit requests per Window. A non-positive
// Limit means the caller is not limited.
type Quota struct {
	Limit  int
	Window time.Duration
}

func (q Quota) Unlimited() bool {
	return q.Limit <= 0
}

// Admission is a limiter's verdict on a single request. Remaining is -1 when
// the quota is unlimited.
type Admission struct {
	Admitted  bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Unrestricted admits a request that no quota applies to.
func Unrestricted() Admission {
	return Admission{Admitted: true, Remaining: -1}
}

// RetryAfter is the time until the window resets, rounded up to whole seconds.
func (a Admission) RetryAfter(now time.Time) time.Duration {
	if a.ResetAt.IsZero() || !a.ResetAt.After(now) {
		return 0
	}
	wait := a.ResetAt.Sub(now)
	return ((wait + time.Second - 1) / time.Second) * time.Second
}

// RateLimiter admits requests made by a caller against a quota.
type RateLimiter interface {
	Admit(ctx context.Context, caller string, quota Quota) (Admission, error)
}
