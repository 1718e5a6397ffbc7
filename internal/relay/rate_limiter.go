package relay

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// MultiRateLimiter keeps one token bucket per relay
type MultiRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

// NewMultiRateLimiter creates an empty limiter set
func NewMultiRateLimiter() *MultiRateLimiter {
	return &MultiRateLimiter{
		limiters: make(map[string]*rate.Limiter),
	}
}

// AddLimiter allows perSecond requests to relay with the given burst
func (mrl *MultiRateLimiter) AddLimiter(relay string, perSecond float64, burst int) {
	if burst < 1 {
		burst = 1
	}
	mrl.mu.Lock()
	defer mrl.mu.Unlock()

	mrl.limiters[relay] = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Wait blocks until relay may be called or ctx is done.
// Relays without a limiter return immediately.
func (mrl *MultiRateLimiter) Wait(ctx context.Context, relay string) error {
	mrl.mu.RLock()
	limiter, ok := mrl.limiters[relay]
	mrl.mu.RUnlock()

	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}

// GetLimiter returns the limiter for relay, or nil
func (mrl *MultiRateLimiter) GetLimiter(relay string) *rate.Limiter {
	mrl.mu.RLock()
	defer mrl.mu.RUnlock()

	return mrl.limiters[relay]
}
