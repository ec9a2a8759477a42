package carousel

import (
	"context"
	"sync"
	"time"
)

// Loop runs posted funcs one at a time on a single goroutine.
// The queue is unbounded so a callback may post from inside the loop.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func NewLoop() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post enqueues f. It reports false once the loop has stopped.
func (l *Loop) Post(f func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, f)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs f on the loop and waits for it. It must not be used from the
// loop goroutine itself.
func (l *Loop) Call(f func()) bool {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		f()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}

// Run processes the queue until ctx is cancelled. Work still queued at that
// point is discarded.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	defer func() {
		l.mu.Lock()
		l.closed = true
		l.queue = nil
		l.mu.Unlock()
	}()

	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, f := range batch {
			if ctx.Err() != nil {
				return
			}
			f()
		}

		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

type loopClock struct {
	base Clock
	loop *Loop
}

// NewLoopClock wraps base so that every timer callback is posted onto loop.
func NewLoopClock(base Clock, loop *Loop) Clock {
	return loopClock{base: base, loop: loop}
}

func (c loopClock) Now() time.Time { return c.base.Now() }

func (c loopClock) AfterFunc(d time.Duration, f func()) Timer {
	return c.base.AfterFunc(d, func() {
		c.loop.Post(f)
	})
}
