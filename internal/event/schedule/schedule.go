// Package schedule provides execution contexts for message delivery.
//
// A Scheduler owns an execution context, typically a UI event loop. Work posted
// to a scheduler runs on that context in FIFO order. The context.Context handed
// to posted work is marked so that Within can tell whether a caller is already
// running on the scheduler and may invoke a subscriber directly. The mark
// travels with the context rather than the goroutine, so goroutines started
// from posted work take Unmark(ctx).
package schedule

import (
	"context"
	"errors"
)

// Sentinel errors for the schedule package.
var (
	// ErrStopped is returned when posting to a stopped loop.
	ErrStopped = errors.New("schedule: loop is stopped")

	// ErrAlreadyRunning is returned when Run is called on a running loop.
	ErrAlreadyRunning = errors.New("schedule: loop is already running")

	// ErrNilFunc is returned when posting a nil function.
	ErrNilFunc = errors.New("schedule: function cannot be nil")
)

// Scheduler runs work on a specific execution context.
type Scheduler interface {
	// Post queues fn to run on the scheduler's context. It never waits for fn
	// to run.
	Post(fn func(ctx context.Context)) error

	// Within reports whether ctx belongs to work already running on this scheduler.
	// A marked context is only valid on the scheduler's goroutine. Work that
	// starts a goroutine from it must pass Unmark(ctx) instead.
	Within(ctx context.Context) bool
}

type withinKey struct{}

// MarkWithin returns a context recognised by Within(ctx, s).
// Event loops that are not a Loop use it to tag the context they hand to work.
func MarkWithin(ctx context.Context, s Scheduler) context.Context {
	return context.WithValue(ctx, withinKey{}, s)
}

// Unmark returns a context that keeps ctx's values and cancellation but is
// not within any scheduler.
func Unmark(ctx context.Context) context.Context {
	if ctx == nil || ctx.Value(withinKey{}) == nil {
		return ctx
	}
	return context.WithValue(ctx, withinKey{}, nil)
}

// IsWithin reports whether ctx was marked for s.
func IsWithin(ctx context.Context, s Scheduler) bool {
	if ctx == nil || s == nil {
		return false
	}
	v, ok := ctx.Value(withinKey{}).(Scheduler)
	return ok && v == s
}

// inline runs posted work immediately on the caller.
type inline struct{}

var inlineScheduler = &inline{}

// Inline returns a scheduler that runs work synchronously on the posting
// goroutine. Every context is considered within it.
func Inline() Scheduler {
	return inlineScheduler
}

func (s *inline) Post(fn func(ctx context.Context)) error {
	if fn == nil {
		return ErrNilFunc
	}
	fn(MarkWithin(context.Background(), s))
	return nil
}

func (s *inline) Within(context.Context) bool { return true }
