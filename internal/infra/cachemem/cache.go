// Package cachemem keeps verification results in process memory for the
// single-daemon deployment.
package cachemem

import (
	"context"
	"sync"
	"time"

	"recordproof/internal/domain"
)

const defaultMaxEntries = 4096

// Cache maps a record's verification key to its latest result. A zero
// deadline never expires. When full, Put first sweeps expired results and
// then drops the result closest to its deadline.
type Cache struct {
	mu         sync.Mutex
	clock      func() time.Time
	maxEntries int
	results    map[string]storedResult
}

type storedResult struct {
	result   domain.VerificationResult
	deadline time.Time
}

func (r storedResult) liveAt(at time.Time) bool {
	return r.deadline.IsZero() || at.Before(r.deadline)
}

type Options struct {
	Now        func() time.Time
	MaxEntries int
}

func New() *Cache {
	return NewWithOptions(Options{})
}

func NewWithOptions(opts Options) *Cache {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = defaultMaxEntries
	}
	return &Cache{
		clock:      opts.Now,
		maxEntries: opts.MaxEntries,
		results:    make(map[string]storedResult),
	}
}

func (c *Cache) Get(_ context.Context, key string) (*domain.VerificationResult, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	stored, ok := c.results[key]
	if !ok {
		return nil, false, nil
	}
	if !stored.liveAt(c.clock()) {
		delete(c.results, key)
		return nil, false, nil
	}
	result := stored.result
	return &result, true, nil
}

func (c *Cache) Put(_ context.Context, key string, value domain.VerificationResult, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	at := c.clock()
	stored := storedResult{result: value}
	if ttl > 0 {
		stored.deadline = at.Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.results[key]; !exists && len(c.results) >= c.maxEntries {
		c.makeRoom(at)
	}
	c.results[key] = stored
	return nil
}

func (c *Cache) makeRoom(at time.Time) {
	for key, stored := range c.results {
		if !stored.liveAt(at) {
			delete(c.results, key)
		}
	}
	if len(c.results) < c.maxEntries {
		return
	}
	victim, found := "", false
	var soonest time.Time
	for key, stored := range c.results {
		if stored.deadline.IsZero() {
			if !found {
				victim, found = key, true
			}
			continue
		}
		if soonest.IsZero() || stored.deadline.Before(soonest) {
			victim, soonest, found = key, stored.deadline, true
		}
	}
	if found {
		delete(c.results, victim)
	}
}
