package collector

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Gate bounds the number of in-flight upstream requests. Waiters are
// admitted in arrival order. An optional limiter paces admissions.
type Gate struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// NewGate admits max concurrent holders. rps <= 0 disables pacing.
func NewGate(max int, rps float64) *Gate {
	if max < 1 {
		max = 1
	}
	g := &Gate{sem: semaphore.NewWeighted(int64(max))}
	if rps > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return g
}

// Acquire blocks until a slot is free or ctx is done. The returned release
// must be called exactly once.
func (g *Gate) Acquire(ctx context.Context) (release func(), err error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			g.sem.Release(1)
			return nil, err
		}
	}
	return func() { g.sem.Release(1) }, nil
}
