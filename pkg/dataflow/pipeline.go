package dataflow

import (
	"context"
	"sync"
	"time"
)

// Stream is a read-only channel of messages.
type Stream[T any] <-chan T

// From creates a stream from a slice of data.
func From[T any](ctx context.Context, items ...T) Stream[T] {
	out := make(chan T, len(items))
	go func() {
		defer close(out)
		for _, item := range items {
			select {
			case <-ctx.Done():
				return
			case out <- item:
			}
		}
	}()
	return out
}

// Range creates a stream of the integers [0, n).
func Range(ctx context.Context, n int) Stream[int] {
	out := make(chan int)
	go func() {
		defer close(out)
		for i := 0; i < n; i++ {
			select {
			case <-ctx.Done():
				return
			case out <- i:
			}
		}
	}()
	return out
}

// Map transforms the stream using the provided function.
// Items whose transformation fails are dropped after the error handler has seen them.
// Supports parallelism via WithWorkers; output order is then not preserved.
func Map[In, Out any](ctx context.Context, input Stream[In], fn func(In) (Out, error), opts ...Option) Stream[Out] {
	cfg := newConfig(opts)
	out := make(chan Out, cfg.bufferSize)

	var wg sync.WaitGroup
	worker := func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-input:
				if !ok {
					return
				}
				var res Out
				err := cfg.attempt(ctx, func() error {
					var err error
					res, err = fn(msg)
					return err
				})
				if err != nil {
					cfg.handle(err)
					continue
				}

				select {
				case <-ctx.Done():
					return
				case out <- res:
				}
			}
		}
	}

	wg.Add(cfg.workers)
	for i := 0; i < cfg.workers; i++ {
		go worker()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// ForEach executes an action for every item in the stream.
// It blocks until the stream is exhausted or ctx is cancelled and returns the first
// error not handled by the error handler. Remaining items are still processed.
func ForEach[T any](ctx context.Context, input Stream[T], fn func(T) error, opts ...Option) error {
	cfg := newConfig(opts)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	worker := func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-input:
				if !ok {
					return
				}
				err := cfg.attempt(ctx, func() error { return fn(msg) })
				if err != nil && !cfg.handle(err) {
					errOnce.Do(func() {
						firstErr = err
					})
				}
			}
		}
	}

	wg.Add(cfg.workers)
	for i := 0; i < cfg.workers; i++ {
		go worker()
	}
	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return firstErr
}

// attempt runs fn once plus up to maxRetries retries, waiting backoff between them.
func (c *config) attempt(ctx context.Context, fn func() error) error {
	err := fn()
	for i := 1; err != nil && i <= c.maxRetries; i++ {
		if c.backoff != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff(i)):
			}
		}
		err = fn()
	}
	return err
}

// handle reports whether the error handler swallowed err.
func (c *config) handle(err error) bool {
	if c.errorHandler == nil {
		return false
	}
	return c.errorHandler(err)
}
