package parallel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrPanic wraps a value recovered from a panicking task.
var ErrPanic = errors.New("task panicked")

// pool manages one Run call with bounded concurrency.
// It is created per call and never reused.
type pool[A, T any] struct {
	fn      TaskFunc[A, T]
	opts    options
	group   errgroup.Group
	results []Result[T]
	// done receives the index of each finished task in completion order.
	done chan int
}

func newPool[A, T any](fn TaskFunc[A, T], size int, opts options) *pool[A, T] {
	p := &pool[A, T]{
		fn:      fn,
		opts:    opts,
		results: make([]Result[T], size),
		done:    make(chan int, size),
	}
	p.group.SetLimit(opts.maxWorkers)
	return p
}

// submit blocks until a worker slot is free, then starts the task.
// Each task owns results[index] and writes it exactly once.
func (p *pool[A, T]) submit(ctx context.Context, index int, payload A) {
	p.group.Go(func() error {
		p.results[index] = p.execute(ctx, index, payload)
		p.done <- index
		return nil
	})
}

// wait blocks until every submitted task has a recorded outcome.
func (p *pool[A, T]) wait() []Result[T] {
	_ = p.group.Wait()
	close(p.done)
	return p.results
}

type outcome[T any] struct {
	value T
	err   error
}

// execute runs one task under its own deadline. On timeout the task context
// is cancelled and the worker returns without waiting for the task body.
func (p *pool[A, T]) execute(ctx context.Context, index int, payload A) Result[T] {
	id := Identify(payload, index)
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return p.fail(index, id, ReasonError, err, start)
	}

	taskCtx, cancel := withTimeout(ctx, p.opts.taskTimeout)
	defer cancel()

	// Buffered so an abandoned task can still deliver and exit.
	out := make(chan outcome[T], 1)
	go func() {
		value, err := invoke(taskCtx, p.fn, payload)
		out <- outcome[T]{value: value, err: err}
	}()

	select {
	case o := <-out:
		if o.err != nil {
			return p.fail(index, id, ReasonError, o.err, start)
		}
		return Result[T]{Value: o.value, Duration: time.Since(start)}
	case <-taskCtx.Done():
		if err := ctx.Err(); err != nil {
			return p.fail(index, id, ReasonError, err, start)
		}
		return p.fail(index, id, ReasonTimeout, context.DeadlineExceeded, start)
	}
}

func (p *pool[A, T]) fail(index int, id string, reason FailureReason, err error, start time.Time) Result[T] {
	return failure[T](p.opts, index, id, reason, err, start)
}

func failure[T any](opts options, index int, id string, reason FailureReason, err error, start time.Time) Result[T] {
	taskErr := &TaskError{
		Index:  index,
		ID:     id,
		Reason: reason,
		Err:    err,
	}
	if reason == ReasonTimeout {
		taskErr.Timeout = opts.taskTimeout
		opts.logger.Error("task timed out", "id", id, "timeout", opts.taskTimeout)
	} else {
		opts.logger.Error("task failed", "id", id, "err", err)
	}
	return Result[T]{Err: taskErr, Duration: time.Since(start)}
}

// invoke calls fn and converts a panic into an error.
func invoke[A, T any](ctx context.Context, fn TaskFunc[A, T], payload A) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			value = zero
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return fn(ctx, payload)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
