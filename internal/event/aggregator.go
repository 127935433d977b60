package event

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"github.com/google/uuid"

	"github.com/dshills/mvpkit/internal/event/dispatch"
	"github.com/dshills/mvpkit/internal/logging"
)

// Aggregator is a typed publish/subscribe bus. It is safe for concurrent use.
type Aggregator struct {
	mu     sync.RWMutex
	topics map[reflect.Type]*topicSubs

	config   aggregatorConfig
	logger   logging.Logger
	executor *dispatch.Executor

	// Stats
	published atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
	panicked  atomic.Uint64
	purged    atomic.Uint64
	marshaled atomic.Uint64
	skipped   atomic.Uint64
}

// topicSubs holds the subscribers of one message type.
// list is replaced, never mutated, so readers iterate a stable snapshot.
type topicSubs struct {
	mu   sync.Mutex
	list atomic.Pointer[[]*subscription]
}

func (t *topicSubs) load() []*subscription {
	if p := t.list.Load(); p != nil {
		return *p
	}
	return nil
}

// New creates an aggregator with the given options.
func New(opts ...Option) *Aggregator {
	config := defaultAggregatorConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return &Aggregator{
		topics:   make(map[reflect.Type]*topicSubs),
		config:   config,
		logger:   logging.WithComponent(config.logger, "event"),
		executor: dispatch.NewExecutor(),
	}
}

// Subscribe registers fn for messages of type T. The handler is held until
// the returned token is disposed.
func Subscribe[T any](a *Aggregator, fn func(ctx context.Context, msg T) error, opts ...SubscriptionOption) (*Token, error) {
	if a == nil {
		return nil, ErrNilAggregator
	}
	if fn == nil {
		return nil, ErrNilHandler
	}
	handler := dispatch.HandlerFunc(func(ctx context.Context, msg any) error {
		m, _ := msg.(T)
		return fn(ctx, m)
	})
	return a.subscribe(reflect.TypeFor[T](), handler, nil, opts)
}

// SubscribeWeak registers fn for messages of type T on behalf of owner.
// The owner is held weakly: once it is collected the subscription is never
// invoked again and is dropped lazily. fn receives the owner and must not
// capture it.
func SubscribeWeak[T any, O any](a *Aggregator, owner *O, fn func(owner *O, ctx context.Context, msg T) error, opts ...SubscriptionOption) (*Token, error) {
	if a == nil {
		return nil, ErrNilAggregator
	}
	if owner == nil {
		return nil, ErrNilOwner
	}
	if fn == nil {
		return nil, ErrNilHandler
	}
	wp := weak.Make(owner)
	handler := dispatch.HandlerFunc(func(ctx context.Context, msg any) error {
		o := wp.Value()
		if o == nil {
			return errOwnerCollected
		}
		m, _ := msg.(T)
		return fn(o, ctx, m)
	})
	alive := func() bool { return wp.Value() != nil }
	return a.subscribe(reflect.TypeFor[T](), handler, alive, opts)
}

func (a *Aggregator) subscribe(msgType reflect.Type, handler dispatch.Handler, alive func() bool, opts []SubscriptionOption) (*Token, error) {
	var cfg subscriptionConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.filter != nil && cfg.filterType != msgType {
		return nil, ErrFilterType
	}
	if cfg.scheduler == nil {
		cfg.scheduler = a.config.defaultScheduler
	}

	sub := &subscription{
		id:         uuid.NewString(),
		msgType:    msgType,
		handler:    handler,
		ownerAlive: alive,
		scheduler:  cfg.scheduler,
		filter:     cfg.filter,
		once:       cfg.once,
		scope:      cfg.scope,
		agg:        a,
	}
	if cfg.scope != nil && !cfg.scope.add(sub) {
		return nil, ErrScopeClosed
	}

	t := a.topic(msgType, true)
	t.mu.Lock()
	old := t.load()
	next := make([]*subscription, len(old), len(old)+1)
	copy(next, old)
	next = append(next, sub)
	t.list.Store(&next)
	t.mu.Unlock()

	a.logger.Debug("subscribed", "subscription", sub.id, "type", msgType.String(), "weak", alive != nil)
	return &Token{sub: sub}, nil
}

// topic returns the subscriber set for msgType, creating it if asked.
func (a *Aggregator) topic(msgType reflect.Type, create bool) *topicSubs {
	a.mu.RLock()
	t := a.topics[msgType]
	a.mu.RUnlock()
	if t != nil || !create {
		return t
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if t = a.topics[msgType]; t == nil {
		t = &topicSubs{}
		a.topics[msgType] = t
	}
	return t
}

// remove drops sub from its type's subscriber list.
func (a *Aggregator) remove(sub *subscription) {
	t := a.topic(sub.msgType, false)
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	old := t.load()
	for i, s := range old {
		if s == sub {
			next := make([]*subscription, 0, len(old)-1)
			next = append(next, old[:i]...)
			next = append(next, old[i+1:]...)
			t.list.Store(&next)
			return
		}
	}
}

// compact drops every dead subscription of t and returns how many it removed.
func (a *Aggregator) compact(t *topicSubs) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	old := t.load()
	next := make([]*subscription, 0, len(old))
	for _, s := range old {
		if s.live() {
			next = append(next, s)
		}
	}
	removed := len(old) - len(next)
	if removed > 0 {
		t.list.Store(&next)
		a.purged.Add(uint64(removed))
	}
	return removed
}

// Publish delivers msg to every live subscriber of T in subscription order.
//
// Dead subscriptions of T are dropped first. A subscriber that requires a
// scheduler other than the one ctx belongs to is posted there; all others run
// before Publish returns. A failing subscriber is reported and skipped over.
// The returned error joins the failures of inline deliveries and posts.
func Publish[T any](ctx context.Context, a *Aggregator, msg T) error {
	if a == nil {
		return ErrNilAggregator
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	a.published.Add(1)

	t := a.topic(reflect.TypeFor[T](), false)
	if t == nil {
		return nil
	}

	subs := t.load()
	for _, s := range subs {
		if !s.live() {
			a.compact(t)
			subs = t.load()
			break
		}
	}

	var errs []error
	for _, sub := range subs {
		if sub.filter != nil && !sub.filter(msg) {
			continue
		}
		if sched := sub.scheduler; sched != nil && !sched.Within(ctx) {
			err := sched.Post(func(sctx context.Context) {
				_ = a.deliver(sctx, sub, msg)
			})
			if err != nil {
				perr := &PostError{SubscriptionID: sub.id, MessageType: sub.msgType, Err: err}
				a.failed.Add(1)
				a.report(perr)
				errs = append(errs, perr)
				continue
			}
			a.marshaled.Add(1)
			continue
		}
		if err := a.deliver(ctx, sub, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// deliver invokes one subscriber with failure isolation.
func (a *Aggregator) deliver(ctx context.Context, sub *subscription, msg any) error {
	if !sub.begin() {
		return nil
	}
	if sub.once {
		defer a.remove(sub)
	}

	res := a.executor.Execute(ctx, msg, sub.handler)
	switch {
	case res.Outcome == dispatch.Skipped:
		a.skipped.Add(1)
		return nil
	case res.Outcome == dispatch.Panicked:
		a.panicked.Add(1)
		err := &PanicError{
			SubscriptionID: sub.id,
			MessageType:    sub.msgType,
			Value:          res.Panic.Value,
			Stack:          string(res.Panic.Stack),
		}
		a.report(err)
		return err
	case errors.Is(res.Err, errOwnerCollected):
		sub.kill()
		a.remove(sub)
		a.purged.Add(1)
		return nil
	case res.Outcome == dispatch.Failed:
		a.failed.Add(1)
		err := &HandlerError{SubscriptionID: sub.id, MessageType: sub.msgType, Err: res.Err}
		a.report(err)
		return err
	}
	a.delivered.Add(1)
	return nil
}

// report hands a subscriber failure to the logger and error handler.
func (a *Aggregator) report(err error) {
	a.logger.Warn("subscriber failed", "error", err)
	if h := a.config.errorHandler; h != nil {
		func() {
			defer func() { _ = recover() }()
			h(err)
		}()
	}
}

// Sweep drops every dead subscription across all message types and returns
// how many were removed.
func (a *Aggregator) Sweep() int {
	a.mu.RLock()
	topics := make([]*topicSubs, 0, len(a.topics))
	for _, t := range a.topics {
		topics = append(topics, t)
	}
	a.mu.RUnlock()

	removed := 0
	for _, t := range topics {
		removed += a.compact(t)
	}
	if removed > 0 {
		a.logger.Debug("swept subscriptions", "removed", removed)
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (a *Aggregator) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.Sweep()
			}
		}
	}()
}

// Count returns the number of live subscriptions for T.
func Count[T any](a *Aggregator) int {
	if a == nil {
		return 0
	}
	t := a.topic(reflect.TypeFor[T](), false)
	if t == nil {
		return 0
	}
	n := 0
	for _, s := range t.load() {
		if s.live() {
			n++
		}
	}
	return n
}

// Stats contains aggregator statistics.
type Stats struct {
	Published     uint64
	Delivered     uint64
	Failed        uint64
	Panicked      uint64
	Purged        uint64
	Marshaled     uint64
	Skipped       uint64
	Subscriptions int
	MessageTypes  int
}

// Stats returns current aggregator statistics.
func (a *Aggregator) Stats() Stats {
	a.mu.RLock()
	topics := make([]*topicSubs, 0, len(a.topics))
	for _, t := range a.topics {
		topics = append(topics, t)
	}
	a.mu.RUnlock()

	live, types := 0, 0
	for _, t := range topics {
		n := 0
		for _, s := range t.load() {
			if s.live() {
				n++
			}
		}
		live += n
		if n > 0 {
			types++
		}
	}

	return Stats{
		Published:     a.published.Load(),
		Delivered:     a.delivered.Load(),
		Failed:        a.failed.Load(),
		Panicked:      a.panicked.Load(),
		Purged:        a.purged.Load(),
		Marshaled:     a.marshaled.Load(),
		Skipped:       a.skipped.Load(),
		Subscriptions: live,
		MessageTypes:  types,
	}
}
