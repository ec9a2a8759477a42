package carousel

import "sync"

// Loader is the one-shot "player library is ready" signal. The first Ensure
// starts loading; every later call is a no-op.
type Loader struct {
	start func()
	once  sync.Once

	mu      sync.Mutex
	ready   bool
	waiters []func()
}

// NewLoader returns a Loader that calls start on the first Ensure.
// A nil start means the library is expected to announce itself.
func NewLoader(start func()) *Loader {
	return &Loader{start: start}
}

// NewReadyLoader returns a Loader that is already ready.
func NewReadyLoader() *Loader {
	l := NewLoader(nil)
	l.MarkReady()
	return l
}

func (l *Loader) Ensure() {
	l.once.Do(func() {
		if l.start != nil {
			l.start()
		}
	})
}

// MarkReady flips the signal and runs queued callbacks on the caller's goroutine.
func (l *Loader) MarkReady() {
	l.mu.Lock()
	if l.ready {
		l.mu.Unlock()
		return
	}
	l.ready = true
	waiters := l.waiters
	l.waiters = nil
	l.mu.Unlock()

	for _, f := range waiters {
		f()
	}
}

func (l *Loader) IsReady() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready
}

// OnReady runs f once the library is ready, immediately if it already is.
func (l *Loader) OnReady(f func()) {
	l.mu.Lock()
	if l.ready {
		l.mu.Unlock()
		f()
		return
	}
	l.waiters = append(l.waiters, f)
	l.mu.Unlock()
}
