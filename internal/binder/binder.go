package binder

import (
	"context"
	"errors"
	"sync"

	"github.com/dshills/mvpkit/internal/action"
	"github.com/dshills/mvpkit/internal/dispatcher"
	"github.com/dshills/mvpkit/internal/event"
	"github.com/dshills/mvpkit/internal/gesture"
	"github.com/dshills/mvpkit/internal/logging"
)

// Target is the dispatcher surface a Binder drives.
type Target interface {
	DispatchGesture(ctx context.Context, id action.Identity, tok gesture.Token, payload any) (dispatcher.Result, error)
	CanExecute(id action.Identity) (bool, error)
	OnStateChanged(fn func(dispatcher.StateChange)) (cancel func())
}

// Pair associates a trigger with the action it fires.
type Pair struct {
	Action  action.Identity
	Trigger Trigger
}

// Request describes one trigger activation. It is published before the
// binder dispatches, for Presenters that forward actions themselves.
type Request struct {
	Action  action.Identity
	Gesture gesture.Token
	Payload any
}

// ErrorHandler receives dispatch failures caused by trigger activations.
type ErrorHandler func(id action.Identity, err error)

// Option configures a Binder.
type Option func(*Binder)

// WithLogger sets the binder logger.
func WithLogger(l logging.Logger) Option {
	return func(b *Binder) {
		if l != nil {
			b.logger = logging.WithComponent(l, "binder")
		}
	}
}

// WithGestures sets the source of gesture tokens. Binders that feed the same
// dispatcher should share one source.
func WithGestures(src *gesture.Source) Option {
	return func(b *Binder) {
		if src != nil {
			b.gestures = src
		}
	}
}

// WithErrorHandler sets the callback for dispatch failures.
func WithErrorHandler(h ErrorHandler) Option {
	return func(b *Binder) {
		b.onError = h
	}
}

// WithAggregator publishes every Request on agg in addition to the
// OnActionRequested listeners.
func WithAggregator(agg *event.Aggregator) Option {
	return func(b *Binder) {
		b.aggregator = agg
	}
}

// binding is one trigger bound to one action.
type binding struct {
	action  action.Identity
	trigger Trigger
	cancel  func()
}

type requestListener struct {
	id int
	fn func(Request)
}

// Binder maps triggers to action identities and keeps their enabled state in
// step with a Target. It is safe for concurrent use.
type Binder struct {
	mu          sync.Mutex
	bindings    []*binding
	target      Target
	stateCancel func()
	listeners   []requestListener
	nextID      int
	closed      bool

	gestures   *gesture.Source
	aggregator *event.Aggregator
	onError    ErrorHandler
	logger     logging.Logger
}

// New creates an unbound Binder.
func New(opts ...Option) *Binder {
	b := &Binder{
		gestures: gesture.NewSource(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add binds triggers to id. A trigger already bound to another action moves
// to id. When the binder is bound the triggers are wired immediately and
// take id's current enabled state.
func (b *Binder) Add(id action.Identity, triggers ...Trigger) error {
	pairs := make([]Pair, len(triggers))
	for i, t := range triggers {
		pairs[i] = Pair{Action: id, Trigger: t}
	}
	return b.AddPairs(pairs...)
}

// AddPairs binds each pair in order.
func (b *Binder) AddPairs(pairs ...Pair) error {
	for _, p := range pairs {
		if p.Trigger == nil {
			return ErrNilTrigger
		}
		if p.Action.IsZero() {
			return ErrZeroAction
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	var added []*binding
	for _, p := range pairs {
		if old := b.find(p.Trigger); old != nil {
			b.detach(old)
			b.drop(old)
		}
		bd := &binding{action: p.Action, trigger: p.Trigger}
		b.bindings = append(b.bindings, bd)
		if b.target != nil {
			b.attach(bd)
			added = append(added, bd)
		}
	}
	target := b.target
	b.mu.Unlock()

	if target != nil {
		b.pushEnablement(target, added)
	}
	return nil
}

// AddMap binds every trigger in m. Map iteration order is unspecified; use
// AddPairs when order matters.
func (b *Binder) AddMap(m map[action.Identity][]Trigger) error {
	var pairs []Pair
	for id, triggers := range m {
		for _, t := range triggers {
			pairs = append(pairs, Pair{Action: id, Trigger: t})
		}
	}
	return b.AddPairs(pairs...)
}

// Remove unbinds trigger. It reports whether the trigger was bound.
func (b *Binder) Remove(trigger Trigger) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	bd := b.find(trigger)
	if bd == nil {
		return false
	}
	b.detach(bd)
	b.drop(bd)
	return true
}

// Bind wires every trigger to target and pushes the current enabled state.
func (b *Binder) Bind(target Target) error {
	if target == nil {
		return ErrNilTarget
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if b.target != nil {
		b.mu.Unlock()
		return ErrAlreadyBound
	}
	b.target = target
	for _, bd := range b.bindings {
		b.attach(bd)
	}
	bindings := make([]*binding, len(b.bindings))
	copy(bindings, b.bindings)
	b.mu.Unlock()

	// Subscribe outside the lock; the target may broadcast synchronously.
	cancel := target.OnStateChanged(b.onStateChanged)

	b.mu.Lock()
	if b.target != target {
		// Unbound or closed while subscribing.
		b.mu.Unlock()
		cancel()
		return nil
	}
	b.stateCancel = cancel
	b.mu.Unlock()

	b.pushEnablement(target, bindings)
	b.logger.Debug("bound", "triggers", len(bindings))
	return nil
}

// IsBound reports whether the binder is bound to a target.
func (b *Binder) IsBound() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.target != nil
}

// Unbind detaches every trigger and the state listener. Bindings are kept so
// the binder can be bound again.
func (b *Binder) Unbind() {
	b.mu.Lock()
	b.unbindLocked()
	b.mu.Unlock()
}

func (b *Binder) unbindLocked() {
	if b.target == nil {
		return
	}
	for _, bd := range b.bindings {
		b.detach(bd)
	}
	if b.stateCancel != nil {
		b.stateCancel()
		b.stateCancel = nil
	}
	b.target = nil
}

// Close unbinds and forgets every binding and request listener.
func (b *Binder) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.unbindLocked()
	b.bindings = nil
	b.listeners = nil
	b.closed = true
}

// OnActionRequested registers fn to receive a Request for every activation.
// The returned function removes it.
func (b *Binder) OnActionRequested(fn func(Request)) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if fn == nil || b.closed {
		return func() {}
	}
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, requestListener{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, l := range b.listeners {
				if l.id == id {
					b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Bindings returns the number of triggers bound to each action.
func (b *Binder) Bindings() map[action.Identity]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[action.Identity]int)
	for _, bd := range b.bindings {
		out[bd.action]++
	}
	return out
}

// Triggers returns the triggers bound to id in the order they were added.
func (b *Binder) Triggers(id action.Identity) []Trigger {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Trigger
	for _, bd := range b.bindings {
		if bd.action == id {
			out = append(out, bd.trigger)
		}
	}
	return out
}

// find returns the binding for trigger. Caller holds b.mu.
func (b *Binder) find(trigger Trigger) *binding {
	for _, bd := range b.bindings {
		if bd.trigger == trigger {
			return bd
		}
	}
	return nil
}

// drop removes bd from the binding list. Caller holds b.mu.
func (b *Binder) drop(bd *binding) {
	for i, cur := range b.bindings {
		if cur == bd {
			b.bindings = append(b.bindings[:i:i], b.bindings[i+1:]...)
			return
		}
	}
}

// attach subscribes to bd's activation signal. Caller holds b.mu.
func (b *Binder) attach(bd *binding) {
	if bd.cancel != nil {
		return
	}
	bd.cancel = bd.trigger.OnActivate(func(ctx context.Context, payload any) {
		b.activate(ctx, bd, payload)
	})
}

// detach removes bd's activation subscription. Caller holds b.mu.
func (b *Binder) detach(bd *binding) {
	if bd.cancel != nil {
		bd.cancel()
		bd.cancel = nil
	}
}

// activate handles one trigger activation.
func (b *Binder) activate(ctx context.Context, bd *binding, payload any) {
	b.mu.Lock()
	target := b.target
	attached := bd.cancel != nil
	listeners := make([]requestListener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	if target == nil || !attached {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tok := gesture.FromContext(ctx)
	if tok.IsZero() {
		tok = b.gestures.Next()
		ctx = gesture.WithToken(ctx, tok)
	}

	req := Request{Action: bd.action, Gesture: tok, Payload: payload}
	for _, l := range listeners {
		l.fn(req)
	}
	if b.aggregator != nil {
		if err := event.Publish(ctx, b.aggregator, req); err != nil {
			b.logger.Warn("request subscribers failed", "action", bd.action.String(), "error", err)
		}
	}

	result, err := target.DispatchGesture(ctx, bd.action, tok, payload)
	if err != nil {
		b.report(bd.action, err)
		return
	}
	b.logger.Debug("trigger dispatched", "action", bd.action.String(), "gesture", tok.String(), "status", result.Status.String())
}

func (b *Binder) report(id action.Identity, err error) {
	if errors.Is(err, dispatcher.ErrUnknownAction) {
		b.logger.Warn("trigger bound to unknown action", "action", id.String())
	} else {
		b.logger.Warn("trigger dispatch failed", "action", id.String(), "error", err)
	}
	if b.onError != nil {
		b.onError(id, err)
	}
}

// onStateChanged applies a target broadcast to the triggers of the action.
func (b *Binder) onStateChanged(c dispatcher.StateChange) {
	b.mu.Lock()
	var triggers []Trigger
	for _, bd := range b.bindings {
		if bd.action == c.Action && bd.cancel != nil {
			triggers = append(triggers, bd.trigger)
		}
	}
	b.mu.Unlock()

	for _, t := range triggers {
		t.SetEnabled(c.Executable)
	}
}

// pushEnablement sets each binding's trigger from a live predicate check.
// Unregistered actions leave their triggers disabled.
func (b *Binder) pushEnablement(target Target, bindings []*binding) {
	cache := make(map[action.Identity]bool)
	for _, bd := range bindings {
		enabled, ok := cache[bd.action]
		if !ok {
			var err error
			enabled, err = target.CanExecute(bd.action)
			if err != nil {
				enabled = false
				if errors.Is(err, dispatcher.ErrUnknownAction) {
					b.logger.Debug("binding to unregistered action", "action", bd.action.String())
				}
			}
			cache[bd.action] = enabled
		}
		bd.trigger.SetEnabled(enabled)
	}
}
