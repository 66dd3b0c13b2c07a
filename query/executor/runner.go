package executor

import (
	"fmt"

	"github.com/panjf2000/ants/v2"
)

// Runner executes query jobs on a bounded worker pool so concurrent
// callers cannot exhaust the process with unbounded goroutines. Jobs
// are independent: no ordering guarantee exists across queries.
type Runner struct {
	pool *ants.Pool
}

// NewRunner builds a runner with at most size concurrent workers.
func NewRunner(size int) (*Runner, error) {
	if size <= 0 {
		size = 8
	}
	pool, err := ants.NewPool(size, ants.WithNonblocking(false))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Runner{pool: pool}, nil
}

// Submit schedules one job; it blocks when all workers are busy.
func (r *Runner) Submit(job func()) error {
	return r.pool.Submit(job)
}

// Running reports the number of in-flight jobs.
func (r *Runner) Running() int { return r.pool.Running() }

// Close releases the pool, waiting for in-flight jobs.
func (r *Runner) Close() {
	r.pool.Release()
}
