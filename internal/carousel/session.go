package carousel

import (
	"context"

	"marquee/internal/models"
	"marquee/internal/utils"
)

// Session runs a Controller on its own Loop so it can be driven from any
// goroutine. Event methods are fire-and-forget; methods returning an error
// wait for the controller.
type Session struct {
	ID string

	ctrl   *Controller
	loop   *Loop
	cancel context.CancelFunc
}

// NewSession starts the loop and the controller. deps.Clock may be a free
// running clock; it is wrapped so callbacks land on the loop.
func NewSession(id string, items []models.MediaItem, deps Deps, opts Options) (*Session, error) {
	loop := NewLoop()
	base := deps.Clock
	if base == nil {
		base = RealClock{}
	}
	deps.Clock = NewLoopClock(base, loop)
	deps.Post = func(f func()) { loop.Post(f) }
	if deps.Logger != nil {
		deps.Logger = deps.Logger.WithStr(utils.FieldSessionID, id)
	}

	ctrl, err := New(items, deps, opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{ID: id, ctrl: ctrl, loop: loop, cancel: cancel}
	go loop.Run(ctx)
	loop.Post(ctrl.Start)
	return s, nil
}

func (s *Session) PointerEnter() { s.loop.Post(s.ctrl.PointerEnter) }
func (s *Session) PointerLeave() { s.loop.Post(s.ctrl.PointerLeave) }
func (s *Session) FocusIn()      { s.loop.Post(s.ctrl.FocusIn) }
func (s *Session) Next()         { s.loop.Post(s.ctrl.Next) }
func (s *Session) Previous()     { s.loop.Post(s.ctrl.Previous) }
func (s *Session) ToggleMute()   { s.loop.Post(s.ctrl.ToggleMute) }

func (s *Session) FocusOut(nextInside bool) {
	s.loop.Post(func() { s.ctrl.FocusOut(nextInside) })
}

func (s *Session) GoTo(i int) error {
	return s.call(func() error { return s.ctrl.GoTo(i) })
}

func (s *Session) SelectAudio(i int) error {
	return s.call(func() error { return s.ctrl.SelectAudio(i) })
}

// Snapshot returns the controller state as seen from the loop.
func (s *Session) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := s.call(func() error {
		if s.ctrl.closed {
			return ErrClosed
		}
		snap = s.ctrl.Snapshot()
		return nil
	})
	return snap, err
}

// Close tears the controller down and stops the loop. Safe to call twice.
// It must not be called from an OnChange or OnPreload callback.
func (s *Session) Close() {
	s.loop.Call(s.ctrl.Close)
	s.cancel()
	<-s.loop.Done()
}

// Done is closed once the session loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.loop.Done()
}

func (s *Session) call(f func() error) error {
	var err error
	if !s.loop.Call(func() { err = f() }) {
		return ErrClosed
	}
	return err
}
