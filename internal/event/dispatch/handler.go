package dispatch

import (
	"context"
	"time"
)

// Handler is the type-erased subscriber callback.
type Handler interface {
	Handle(ctx context.Context, msg any) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, msg any) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, msg any) error {
	return f(ctx, msg)
}

// Outcome classifies one handler execution.
type Outcome uint8

const (
	// Delivered means the handler returned nil.
	Delivered Outcome = iota
	// Failed means the handler returned an error.
	Failed
	// Panicked means the handler panicked and was recovered.
	Panicked
	// Skipped means the context was done before the handler ran.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Failed:
		return "failed"
	case Panicked:
		return "panicked"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Recovered is a panic caught while a handler ran.
type Recovered struct {
	Value any
	Stack []byte
}

// Result describes one execution.
type Result struct {
	Outcome Outcome

	// Err is the handler error for Failed and the context error for Skipped.
	Err error

	// Panic is set for Panicked.
	Panic *Recovered

	Duration time.Duration
}

// OK reports whether the handler ran and returned nil.
func (r Result) OK() bool {
	return r.Outcome == Delivered
}
