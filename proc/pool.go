package proc

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultWorkers bounds concurrent blocking jobs (search, probe, download).
const DefaultWorkers = 3

// Pool runs blocking jobs on the caller's goroutine, at most n at a time.
type Pool struct {
	sem *semaphore.Weighted
}

func NewPool(n int) *Pool {
	if n <= 0 {
		n = DefaultWorkers
	}
	return &Pool{sem: semaphore.NewWeighted(int64(n))}
}

// Do waits for a free slot and runs fn. It returns ctx.Err() if the wait is
// cancelled before a slot frees up.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn(ctx)
}

// Run is Do for jobs that produce a value.
func Run[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	return out, err
}
