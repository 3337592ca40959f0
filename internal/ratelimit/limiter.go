// Package ratelimit provides a keyed token-bucket limiter that is constructed
// by the caller and injected where needed.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Keyed holds one token bucket per key.
type Keyed struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewKeyed returns a limiter allowing perSecond events per key with the given
// burst. perSecond <= 0 disables limiting.
func NewKeyed(perSecond float64, burst int) *Keyed {
	l := rate.Limit(perSecond)
	if perSecond <= 0 {
		l = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Keyed{limit: l, burst: burst, limiters: make(map[string]*rate.Limiter)}
}

func (k *Keyed) get(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.limiters[key]
	if !ok {
		l = rate.NewLimiter(k.limit, k.burst)
		k.limiters[key] = l
	}
	return l
}

// Allow reports whether an event for key may happen now.
func (k *Keyed) Allow(key string) bool {
	if k == nil {
		return true
	}
	return k.get(key).Allow()
}

// Wait blocks until an event for key is permitted or ctx is done.
func (k *Keyed) Wait(ctx context.Context, key string) error {
	if k == nil {
		return nil
	}
	return k.get(key).Wait(ctx)
}

// Forget drops the bucket for key.
func (k *Keyed) Forget(key string) {
	if k == nil {
		return
	}
	k.mu.Lock()
	delete(k.limiters, key)
	k.mu.Unlock()
}
