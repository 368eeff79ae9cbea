package parallel

import (
	"context"
	"sync"
	"time"
)

// TaskFunc performs one unit of work for a payload. It should return promptly
// once ctx is done; the runner stops waiting at the deadline either way.
type TaskFunc[A, T any] func(ctx context.Context, payload A) (T, error)

// Run executes fn for every payload with at most MaxWorkers running at once
// and returns one Result per payload, in input order.
//
// Failures are recorded in the failing task's slot; Run itself never fails.
// An empty task list returns immediately without starting any goroutine.
//
// A timed-out task gives up its worker slot at the deadline. The MaxWorkers
// cap therefore bounds running tasks only when fn returns once ctx is done.
func Run[A, T any](ctx context.Context, fn TaskFunc[A, T], tasks []A, opts ...Option) []Result[T] {
	if len(tasks) == 0 {
		return []Result[T]{}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	o := buildOptions(opts)

	if len(tasks) == 1 && o.inlineSingle {
		return []Result[T]{runInline(ctx, fn, tasks[0], o)}
	}

	total := len(tasks)
	p := newPool(fn, total, o)
	o.progress.Start(o.label, total)

	var reported sync.WaitGroup
	reported.Add(1)
	go func() {
		defer reported.Done()
		completed := 0
		for range p.done {
			completed++
			o.progress.Advance(completed, total)
		}
	}()

	for i, task := range tasks {
		p.submit(ctx, i, task)
	}
	results := p.wait()
	reported.Wait()
	o.progress.Finish()

	return results
}

// RunStrings runs string-valued tasks and returns the prefixed-string form,
// where failed slots read "<prefix>ID <id>: <reason>".
func RunStrings[A any](ctx context.Context, fn TaskFunc[A, string], tasks []A, opts ...Option) []string {
	o := buildOptions(opts)
	return EncodeStrings(Run(ctx, fn, tasks, opts...), o.errorPrefix)
}

// runInline calls fn on the calling goroutine with no deadline.
func runInline[A, T any](ctx context.Context, fn TaskFunc[A, T], payload A, o options) Result[T] {
	start := time.Now()
	value, err := invoke(ctx, fn, payload)
	if err != nil {
		return failure[T](o, 0, Identify(payload, 0), ReasonError, err, start)
	}
	return Result[T]{Value: value, Duration: time.Since(start)}
}
