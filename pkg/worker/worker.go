// Package worker provides a bounded worker pool with fail-fast
// backpressure, used to cap concurrent request handling.
package worker

import (
	"context"
	"errors"
)

var ErrBackpressure = errors.New("worker queue is full")

type job struct {
	ctx context.Context
	fn  func(context.Context) error
	ret chan<- error
}

// Pool executes submitted jobs on a fixed set of workers. Submission is
// non-blocking: when the queue is full, Submit fails immediately.
type Pool struct {
	jobs chan job
	stop chan struct{}
}

// NewPool creates a pool with size workers and a queue of the given
// capacity.
func NewPool(size int, queue int) *Pool {
	if size <= 0 {
		size = 1
	}
	if queue <= 0 {
		queue = 128
	}

	p := &Pool{
		jobs: make(chan job, queue),
		stop: make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	for {
		select {
		case j := <-p.jobs:
			j.ret <- j.fn(j.ctx)
		case <-p.stop:
			return
		}
	}
}

// Stop shuts the workers down. Queued jobs are abandoned.
func (p *Pool) Stop() {
	close(p.stop)
}

// Submit runs fn on a pool worker and waits for it to finish. Returns
// ErrBackpressure without running fn when the queue is full, or the
// context error if ctx expires while waiting.
func (p *Pool) Submit(ctx context.Context, fn func(context.Context) error) error {
	ret := make(chan error, 1)
	select {
	case p.jobs <- job{ctx, fn, ret}:
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-ret:
			return err
		}
	default:
		return ErrBackpressure
	}
}
