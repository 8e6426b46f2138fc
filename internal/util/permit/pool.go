package permit

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Pool is a fixed-capacity set of permits.
// It is safe for concurrent use.
type Pool struct {
	sem      *semaphore.Weighted
	capacity int64
	inUse    atomic.Int64
}

// New creates a pool with the given capacity.
// Capacities below one are raised to one.
func New(capacity int) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// Acquire blocks until a permit is free or ctx is done.
// The returned guard must be released; releasing it more than once is a no-op.
func (p *Pool) Acquire(ctx context.Context) (*Guard, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	p.inUse.Add(1)
	return &Guard{pool: p}, nil
}

// TryAcquire takes a permit without blocking.
// Returns nil if none is free.
func (p *Pool) TryAcquire() *Guard {
	if !p.sem.TryAcquire(1) {
		return nil
	}
	p.inUse.Add(1)
	return &Guard{pool: p}
}

// Capacity returns the configured number of permits
func (p *Pool) Capacity() int {
	return int(p.capacity)
}

// InUse returns the number of permits currently held
func (p *Pool) InUse() int {
	return int(p.inUse.Load())
}

// Guard is a held permit
type Guard struct {
	pool *Pool
	once sync.Once
}

// Release returns the permit to the pool
func (g *Guard) Release() {
	if g == nil {
		return
	}
	g.once.Do(func() {
		g.pool.inUse.Add(-1)
		g.pool.sem.Release(1)
	})
}
