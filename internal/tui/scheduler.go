package tui

import (
	"context"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/mvpkit/internal/event/schedule"
)

// EventPoster accepts events for a tcell poll loop. tcell.Screen satisfies it.
type EventPoster interface {
	PostEvent(ev tcell.Event) error
}

// Scheduler runs work on the goroutine that polls a tcell screen.
type Scheduler struct {
	poster EventPoster

	posted atomic.Uint64
	ran    atomic.Uint64
}

// work is the payload of the interrupts a Scheduler posts.
type work struct {
	owner *Scheduler
	fn    func(context.Context)
}

// NewScheduler creates a scheduler posting through p.
func NewScheduler(p EventPoster) *Scheduler {
	return &Scheduler{poster: p}
}

// Post queues fn as an interrupt event. tcell does not block when its event
// queue is full; the queue-full error is returned instead.
func (s *Scheduler) Post(fn func(ctx context.Context)) error {
	if fn == nil {
		return schedule.ErrNilFunc
	}
	if err := s.poster.PostEvent(tcell.NewEventInterrupt(&work{owner: s, fn: fn})); err != nil {
		return err
	}
	s.posted.Add(1)
	return nil
}

// Within reports whether ctx was handed out by Handle.
func (s *Scheduler) Within(ctx context.Context) bool {
	return schedule.IsWithin(ctx, s)
}

// Handle runs ev when it carries work posted by s and reports whether it did.
// The poll loop calls it for every event.
func (s *Scheduler) Handle(ctx context.Context, ev tcell.Event) bool {
	ie, ok := ev.(*tcell.EventInterrupt)
	if !ok {
		return false
	}
	w, ok := ie.Data().(*work)
	if !ok || w.owner != s {
		return false
	}
	s.ran.Add(1)
	w.fn(schedule.MarkWithin(ctx, s))
	return true
}

// Pending returns how many posted functions have not yet run.
func (s *Scheduler) Pending() uint64 {
	return s.posted.Load() - s.ran.Load()
}
