// Package ratelimit adapts go-catrate's per-category sliding-window limiter
// to the blocking adapters.RateLimiter contract, generalizing the teacher's
// single x/time/rate limiter (one category per client) to one limiter
// covering several named categories. No code in this module constructs or
// calls it.
package ratelimit

import (
	"context"
	"time"

	"github.com/joeycumines/go-catrate"
)

// Limiter wraps a catrate.Limiter, polling Allow until it is granted or the
// context is done.
type Limiter struct {
	limiter *catrate.Limiter
	poll    time.Duration
}

// New builds a Limiter with the given per-window rates (e.g.
// {time.Second: 5, time.Minute: 200}), shared across all categories passed
// to Wait.
func New(rates map[time.Duration]int) *Limiter {
	return &Limiter{
		limiter: catrate.NewLimiter(rates),
		poll:    20 * time.Millisecond,
	}
}

// Wait blocks until category is permitted to proceed, or ctx is done.
func (l *Limiter) Wait(ctx context.Context, category string) error {
	for {
		next, ok := l.limiter.Allow(category)
		if ok {
			return nil
		}
		wait := time.Until(next)
		if wait <= 0 {
			wait = l.poll
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
