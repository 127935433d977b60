package dispatch

import (
	"context"
	"runtime/debug"
	"time"
)

// Executor runs handlers so that neither an error nor a panic escapes.
type Executor struct {
	onPanic func(msg any, p *Recovered)
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// OnPanic registers fn to observe recovered panics. A panic raised by fn
// itself is swallowed.
func OnPanic(fn func(msg any, p *Recovered)) ExecutorOption {
	return func(e *Executor) {
		e.onPanic = fn
	}
}

// NewExecutor creates an executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs h with msg on the calling goroutine.
func (e *Executor) Execute(ctx context.Context, msg any, h Handler) (res Result) {
	if err := ctx.Err(); err != nil {
		return Result{Outcome: Skipped, Err: err}
	}

	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		r := recover()
		if r == nil {
			return
		}
		p := &Recovered{Value: r, Stack: debug.Stack()}
		res.Outcome = Panicked
		res.Err = nil
		res.Panic = p
		e.notify(msg, p)
	}()

	if err := h.Handle(ctx, msg); err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	return Result{Outcome: Delivered}
}

func (e *Executor) notify(msg any, p *Recovered) {
	if e.onPanic == nil {
		return
	}
	defer func() { _ = recover() }()
	e.onPanic(msg, p)
}
