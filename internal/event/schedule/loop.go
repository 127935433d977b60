package schedule

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// DefaultQueueSize is the default capacity of a loop's work queue.
const DefaultQueueSize = 1024

// PanicHandler is called when posted work panics.
type PanicHandler func(panicValue any, stack []byte)

// Loop is a single-goroutine execution context. Work posted from any
// goroutine runs in FIFO order on the goroutine that called Run.
type Loop struct {
	queue chan func(context.Context)
	done  chan struct{}

	stopOnce sync.Once
	running  atomic.Bool

	panicHandler PanicHandler

	// Stats
	posted   atomic.Uint64
	executed atomic.Uint64
	panicked atomic.Uint64
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithQueueSize sets the work queue capacity.
func WithQueueSize(size int) LoopOption {
	return func(l *Loop) {
		if size > 0 {
			l.queue = make(chan func(context.Context), size)
		}
	}
}

// WithPanicHandler sets the handler for panics raised by posted work.
func WithPanicHandler(h PanicHandler) LoopOption {
	return func(l *Loop) {
		l.panicHandler = h
	}
}

// NewLoop creates a loop. Work may be posted before Run is called.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		queue: make(chan func(context.Context), DefaultQueueSize),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post queues fn. When the queue is full Post waits for room; it never drops
// work. Posting to a stopped loop returns ErrStopped.
func (l *Loop) Post(fn func(ctx context.Context)) error {
	if fn == nil {
		return ErrNilFunc
	}
	select {
	case <-l.done:
		return ErrStopped
	default:
	}

	select {
	case l.queue <- fn:
		l.posted.Add(1)
		return nil
	case <-l.done:
		return ErrStopped
	}
}

// Within reports whether ctx was handed out by this loop.
func (l *Loop) Within(ctx context.Context) bool {
	return IsWithin(ctx, l)
}

// Run executes posted work on the calling goroutine until ctx is done or
// Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	inner := MarkWithin(ctx, l)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.queue:
			l.execute(inner, fn)
		}
	}
}

// RunPending executes the work queued right now on the calling goroutine and
// returns how many functions ran. It lets an external event loop, or a test,
// drive the loop without a dedicated goroutine.
func (l *Loop) RunPending(ctx context.Context) int {
	inner := MarkWithin(ctx, l)
	n := 0
	for {
		select {
		case fn := <-l.queue:
			l.execute(inner, fn)
			n++
		default:
			return n
		}
	}
}

// execute runs one unit of work with panic recovery.
func (l *Loop) execute(ctx context.Context, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			l.panicked.Add(1)
			if l.panicHandler != nil {
				stack := debug.Stack()
				func() {
					defer func() { _ = recover() }()
					l.panicHandler(r, stack)
				}()
			}
		}
	}()
	l.executed.Add(1)
	fn(ctx)
}

// Stop ends Run. Queued work that has not started is discarded.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
	})
}

// IsRunning returns true while Run is executing.
func (l *Loop) IsRunning() bool {
	return l.running.Load()
}

// LoopStats contains statistics for a loop.
type LoopStats struct {
	Posted     uint64
	Executed   uint64
	Panicked   uint64
	QueueDepth int
}

// Stats returns loop statistics.
func (l *Loop) Stats() LoopStats {
	return LoopStats{
		Posted:     l.posted.Load(),
		Executed:   l.executed.Load(),
		Panicked:   l.panicked.Load(),
		QueueDepth: len(l.queue),
	}
}
