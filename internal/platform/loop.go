package platform

import (
	"context"
	"errors"
	"sync"
)

// ErrLoopStopped is returned when a task is posted to a stopped loop.
var ErrLoopStopped = errors.New("platform: ui loop stopped")

// Loop serializes work onto one designated goroutine. The underlying toolkits
// are not thread-safe, so all extraction, input synthesis, and observation
// callbacks must run here rather than on arbitrary goroutines.
type Loop struct {
	tasks chan func()

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewLoop creates a loop with a bounded task queue.
func NewLoop(queueDepth int) *Loop {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &Loop{
		tasks:   make(chan func(), queueDepth),
		stopped: make(chan struct{}),
	}
}

// Run consumes tasks until ctx is done. Call exactly once, from the goroutine
// that owns the toolkit.
func (l *Loop) Run(ctx context.Context) {
	defer l.stopOnce.Do(func() { close(l.stopped) })
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-l.tasks:
			task()
		}
	}
}

// Post enqueues fn without waiting for it to run.
func (l *Loop) Post(fn func()) error {
	if l.isStopped() {
		return ErrLoopStopped
	}
	select {
	case <-l.stopped:
		return ErrLoopStopped
	case l.tasks <- fn:
		return nil
	}
}

func (l *Loop) isStopped() bool {
	select {
	case <-l.stopped:
		return true
	default:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish or ctx to expire. The
// task itself is not interrupted once started; ctx only bounds the wait.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	if l.isStopped() {
		return ErrLoopStopped
	}
	done := make(chan error, 1)
	wrapped := func() {
		done <- fn()
	}
	select {
	case <-l.stopped:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	case l.tasks <- wrapped:
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		return ErrLoopStopped
	}
}
