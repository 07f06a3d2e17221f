package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"recordproof/internal/domain"
)

const defaultMaxCallers = 10000

// ErrCapacityExceeded is returned when every tracked caller still has an open
// window and no room is left for a new one.
var ErrCapacityExceeded = errors.New("rate limiter capacity exceeded")

// MemoryLimiter counts requests per caller in fixed windows. Closed windows
// are swept only when the caller table is full.
type MemoryLimiter struct {
	mu         sync.Mutex
	clock      func() time.Time
	maxCallers int
	callers    map[string]window
}

type window struct {
	closes time.Time
	used   int
}

func (w window) openAt(at time.Time) bool {
	return at.Before(w.closes)
}

type MemoryLimiterConfig struct {
	Now        func() time.Time
	MaxCallers int
}

func NewMemoryLimiter(cfg MemoryLimiterConfig) *MemoryLimiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxCallers <= 0 {
		cfg.MaxCallers = defaultMaxCallers
	}
	return &MemoryLimiter{
		clock:      cfg.Now,
		maxCallers: cfg.MaxCallers,
		callers:    make(map[string]window),
	}
}

func (m *MemoryLimiter) Admit(_ context.Context, caller string, quota domain.Quota) (domain.Admission, error) {
	if quota.Unlimited() {
		return domain.Unrestricted(), nil
	}
	if quota.Window <= 0 {
		quota.Window = time.Second
	}
	at := m.clock()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, tracked := m.callers[caller]
	if !tracked && len(m.callers) >= m.maxCallers && m.sweep(at) == 0 {
		return domain.Admission{}, ErrCapacityExceeded
	}
	if !w.openAt(at) {
		w = window{closes: at.Add(quota.Window)}
	}
	admitted := w.used < quota.Limit
	if admitted {
		w.used++
	}
	m.callers[caller] = w

	return domain.Admission{
		Admitted:  admitted,
		Limit:     quota.Limit,
		Remaining: quota.Limit - w.used,
		ResetAt:   w.closes,
	}, nil
}

// sweep drops closed windows and reports how many were removed.
func (m *MemoryLimiter) sweep(at time.Time) int {
	removed := 0
	for caller, w := range m.callers {
		if !w.openAt(at) {
			delete(m.callers, caller)
			removed++
		}
	}
	return removed
}
