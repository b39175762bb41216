// Package ratelimit caps how many actions one key may perform per window.
//
// The counter is reset-on-write: every accepted action rewrites the counter
// with a fresh TTL, so the window slides forward on each attempt instead of
// being anchored to the first one.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Store is a key-value store of integer counters with per-key expiry.
type Store interface {
	// Get returns 0 when key is missing or expired.
	Get(ctx context.Context, key string) (int, error)
	Set(ctx context.Context, key string, value int, ttl time.Duration) error
}

type Limiter struct {
	store  Store
	limit  int
	window time.Duration
}

func NewLimiter(store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window}
}

func (l *Limiter) Limit() int { return l.limit }

func (l *Limiter) Window() time.Duration { return l.window }

// CheckAndIncrement reads the counter for key. When it has reached the limit
// nothing is written and allowed is false. Otherwise the counter is set to
// count+1 with a full window TTL and the new count is returned.
//
// The read and write are not atomic, so two concurrent callers can both pass
// at count == limit-1.
func (l *Limiter) CheckAndIncrement(ctx context.Context, key string) (count int, allowed bool, err error) {
	count, err = l.store.Get(ctx, key)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read rate counter: %w", err)
	}
	if count >= l.limit {
		return count, false, nil
	}

	count++
	if err := l.store.Set(ctx, key, count, l.window); err != nil {
		return 0, false, fmt.Errorf("failed to write rate counter: %w", err)
	}
	return count, true, nil
}
