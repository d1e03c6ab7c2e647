// Package workpool provides a bounded worker pool for per-item batch work.
//
// The pool has a fixed number of goroutines. Submitting blocks while every
// worker is busy, so a producer can never queue more work than the pool can
// hold in flight. Per-item failures are collected into a [Report] rather than
// aborting the batch; only context cancellation or a pool failure ends a run
// early.
//
//	pool, err := workpool.New(4)
//	if err != nil {
//	    return err
//	}
//	defer pool.Release()
//
//	report, err := pool.Run(ctx, len(items), func(ctx context.Context, i int) error {
//	    return process(items[i])
//	})
package workpool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// Pool runs tasks on a fixed number of goroutines.
type Pool struct {
	pool *ants.Pool
	size int
}

// New creates a pool with size workers.
func New(size int) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("workpool: size must be positive, got %d", size)
	}
	p, err := ants.NewPool(size, ants.WithPreAlloc(size <= 64))
	if err != nil {
		return nil, fmt.Errorf("workpool: %w", err)
	}
	return &Pool{pool: p, size: size}, nil
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Release stops the workers. The pool cannot be used afterwards.
func (p *Pool) Release() {
	p.pool.Release()
}

// Failure records the error of a single item.
type Failure struct {
	Index int
	Err   error
}

// Report summarizes one Run.
type Report struct {
	Total     int
	Succeeded int
	Failures  []Failure // sorted by Index
}

// Err joins every item failure, or returns nil.
func (r *Report) Err() error {
	if r == nil || len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f.Err
	}
	return errors.Join(errs...)
}

// Run executes fn for every index in [0, n) and waits for all of them.
//
// A returned error means the batch did not run to completion (context
// cancelled or the pool rejected a task); items already running are waited
// for. Item errors and panics are recorded in the Report.
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) (*Report, error) {
	report := &Report{Total: n}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	record := func(i int, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.Failures = append(report.Failures, Failure{Index: i, Err: err})
			return
		}
		report.Succeeded++
	}

	var runErr error
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			record(i, safeCall(ctx, i, fn))
		})
		if err != nil {
			wg.Done()
			runErr = fmt.Errorf("workpool: submit item %d: %w", i, err)
			break
		}
	}
	wg.Wait()

	sort.Slice(report.Failures, func(a, b int) bool {
		return report.Failures[a].Index < report.Failures[b].Index
	})
	return report, runErr
}

func safeCall(ctx context.Context, i int, fn func(context.Context, int) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, i)
}
