package eventloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrStopped is returned when posting to a loop that is no longer running.
var ErrStopped = errors.New("eventloop: stopped")

// Task performs blocking work off the loop and returns the completion to run on it.
// A nil completion is allowed.
type Task func(ctx context.Context) func()

// FaultHandler receives panics recovered from loop callbacks.
type FaultHandler func(error)

// Loop runs callbacks one at a time on a single goroutine.
// State touched only from callbacks needs no further synchronization.
type Loop struct {
	events chan func()

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	pending int
	idle    chan struct{}
	onFault []FaultHandler
}

// New creates a loop whose event queue holds up to queueSize callbacks before Post blocks.
func New(queueSize int) *Loop {
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		events: make(chan func(), queueSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// OnFault registers a handler for panics raised by callbacks.
func (l *Loop) OnFault(h FaultHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onFault = append(l.onFault, h)
}

// Run processes callbacks until ctx is done. Tasks still running are cancelled on return.
// Run must be called once.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	defer l.cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.events:
			l.invoke(fn)
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post enqueues fn to run on the loop.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrStopped
	default:
	}

	select {
	case l.events <- fn:
		return nil
	case <-l.done:
		return ErrStopped
	}
}

// Do runs fn on the loop and waits for it to finish.
// It must not be called from the loop goroutine.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Spawn runs task on its own goroutine and posts the completion back onto the loop.
// Completions are applied in the order tasks finish, not the order they were spawned.
func (l *Loop) Spawn(task Task) {
	l.begin()
	go func() {
		var complete func()
		func() {
			defer func() {
				if r := recover(); r != nil {
					l.fault(fmt.Errorf("eventloop: task panicked: %v", r))
				}
			}()
			complete = task(l.ctx)
		}()

		err := l.Post(func() {
			defer l.end()
			if complete != nil {
				complete()
			}
		})
		if err != nil {
			l.end()
		}
	}()
}

// Settle blocks until no spawned task is outstanding, including completions
// that spawn further tasks.
func (l *Loop) Settle(ctx context.Context) error {
	for {
		l.mu.Lock()
		if l.pending == 0 {
			l.mu.Unlock()
			return nil
		}
		idle := l.idle
		l.mu.Unlock()

		select {
		case <-idle:
		case <-l.done:
			return ErrStopped
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pending reports the number of outstanding tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}

func (l *Loop) begin() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending == 0 {
		l.idle = make(chan struct{})
	}
	l.pending++
}

func (l *Loop) end() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending--
	if l.pending == 0 {
		close(l.idle)
	}
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.fault(fmt.Errorf("eventloop: callback panicked: %v", r))
		}
	}()
	fn()
}

func (l *Loop) fault(err error) {
	l.mu.Lock()
	handlers := make([]FaultHandler, len(l.onFault))
	copy(handlers, l.onFault)
	l.mu.Unlock()

	for _, h := range handlers {
		h(err)
	}
}
