package dispatcher

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/dshills/mvpkit/internal/action"
	"github.com/dshills/mvpkit/internal/gesture"
	"github.com/dshills/mvpkit/internal/logging"
)

// Status describes what a dispatch did.
type Status uint8

const (
	// StatusExecuted indicates the handler ran and returned nil.
	StatusExecuted Status = iota
	// StatusFailed indicates the handler ran and returned an error.
	StatusFailed
	// StatusNotExecutable indicates the predicate rejected the dispatch.
	StatusNotExecutable
	// StatusDuplicate indicates the gesture already reached this action.
	StatusDuplicate
	// StatusCancelled indicates a pre-dispatch hook cancelled the dispatch.
	StatusCancelled
)

// String returns a string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusExecuted:
		return "executed"
	case StatusFailed:
		return "failed"
	case StatusNotExecutable:
		return "not-executable"
	case StatusDuplicate:
		return "duplicate"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result is the outcome of a dispatch that reached a registered action.
type Result struct {
	Status   Status
	Action   action.Identity
	Gesture  gesture.Token
	Duration time.Duration
}

// Ran reports whether the handler was invoked.
func (r Result) Ran() bool {
	return r.Status == StatusExecuted || r.Status == StatusFailed
}

// StateChange is broadcast when an action's executability changes.
type StateChange struct {
	Action     action.Identity
	Executable bool
}

// Invocation describes a dispatch in flight. Hooks receive a pointer to it.
type Invocation struct {
	Action  action.Identity
	Gesture gesture.Token
	Payload any
}

type stateListener struct {
	id uint64
	fn func(StateChange)
}

// Dispatcher routes dispatches to registered actions and broadcasts
// executability changes. One Dispatcher serves one presenter.
type Dispatcher struct {
	mu sync.Mutex

	registry  *registry
	guard     *gestureGuard
	listeners []stateListener
	nextID    uint64

	preHooks  []PreDispatchHook
	postHooks []PostDispatchHook

	config  Config
	metrics *Metrics
	logger  logging.Logger
	closed  bool
}

// New creates a new dispatcher with the given configuration.
func New(config Config) *Dispatcher {
	d := &Dispatcher{
		registry: newRegistry(),
		guard:    newGestureGuard(config.GuardWindow),
		config:   config,
		logger:   logging.WithComponent(config.Logger, "dispatcher"),
	}
	if config.EnableMetrics {
		d.metrics = NewMetrics()
	}
	return d
}

// NewWithDefaults creates a new dispatcher with default configuration.
func NewWithDefaults() *Dispatcher {
	return New(DefaultConfig())
}

// Register stores a parameterless handler for id, replacing any previous
// registration. Trigger enablement is unaffected until the next
// RaiseCanExecuteChanged.
func (d *Dispatcher) Register(id action.Identity, fn func(ctx context.Context) error, canExecute CanExecute) error {
	if fn == nil {
		return ErrNilHandler
	}
	return d.put(&registeredAction{
		id:         id,
		invoke:     func(ctx context.Context, _ any) error { return fn(ctx) },
		accepts:    func(payload any) bool { return payload == nil },
		canExecute: canExecute,
	})
}

// RegisterParameterized stores a handler taking one payload of type T.
// Dispatching with a payload of any other dynamic type fails with
// ErrPayloadMismatch before the predicate or handler runs. A nil payload is
// accepted only when T admits nil (interfaces, pointers, maps, slices,
// funcs and channels) and is passed as the zero T.
func RegisterParameterized[T any](d *Dispatcher, id action.Identity, fn func(ctx context.Context, payload T) error, canExecute CanExecute) error {
	if fn == nil {
		return ErrNilHandler
	}
	nilable := admitsNil(reflect.TypeFor[T]())
	return d.put(&registeredAction{
		id: id,
		invoke: func(ctx context.Context, payload any) error {
			v, _ := payload.(T)
			return fn(ctx, v)
		},
		accepts: func(payload any) bool {
			if payload == nil {
				return nilable
			}
			_, ok := payload.(T)
			return ok
		},
		payloadType: reflect.TypeFor[T](),
		canExecute:  canExecute,
	})
}

func admitsNil(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	default:
		return false
	}
}

func (d *Dispatcher) put(ra *registeredAction) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDisposed
	}
	d.registry.put(ra)
	d.logger.Debug("action registered", "action", ra.id.String())
	return nil
}

// Unregister removes the registration for id.
func (d *Dispatcher) Unregister(id action.Identity) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registry.remove(id)
}

// IsRegistered reports whether id has a handler.
func (d *Dispatcher) IsRegistered(id action.Identity) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registry.get(id) != nil
}

// Actions returns all registered identities ordered by qualifier then name.
func (d *Dispatcher) Actions() []action.Identity {
	d.mu.Lock()
	defer d.mu.Unlock()
	snap := d.registry.snapshot()
	ids := make([]action.Identity, len(snap))
	for i, ra := range snap {
		ids[i] = ra.id
	}
	return ids
}

// Count returns the number of registered actions.
func (d *Dispatcher) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registry.count()
}

// Dispatch runs the handler for id if its predicate allows.
// A gesture token attached to ctx with gesture.WithToken is honoured.
func (d *Dispatcher) Dispatch(ctx context.Context, id action.Identity, payload any) (Result, error) {
	return d.DispatchGesture(ctx, id, gesture.FromContext(ctx), payload)
}

// DispatchGesture is Dispatch with an explicit gesture token. A token that
// already reached id yields StatusDuplicate without running the handler.
func (d *Dispatcher) DispatchGesture(ctx context.Context, id action.Identity, tok gesture.Token, payload any) (Result, error) {
	start := time.Now()
	result := Result{Action: id, Gesture: tok}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return result, ErrDisposed
	}
	ra := d.registry.get(id)
	if ra == nil {
		d.mu.Unlock()
		d.logger.Debug("dispatch to unknown action", "action", id.String())
		return result, &UnknownActionError{Action: id}
	}
	if !ra.accepts(payload) {
		d.mu.Unlock()
		return result, &PayloadMismatchError{Action: id, Want: ra.payloadType, Got: reflect.TypeOf(payload)}
	}
	if d.guard.seenBefore(id, tok) {
		d.mu.Unlock()
		result.Status = StatusDuplicate
		d.finish(ctx, &Invocation{Action: id, Gesture: tok, Payload: payload}, &result, nil, start)
		return result, nil
	}
	d.mu.Unlock()

	inv := &Invocation{Action: id, Gesture: tok, Payload: payload}
	if !d.runPreHooks(ctx, inv) {
		result.Status = StatusCancelled
		d.finish(ctx, inv, &result, nil, start)
		return result, nil
	}

	if !ra.evaluate() {
		result.Status = StatusNotExecutable
		d.finish(ctx, inv, &result, nil, start)
		return result, nil
	}

	// Record after the predicate so a rejected attempt does not consume the
	// gesture; re-check because another path may have raced us here.
	d.mu.Lock()
	if d.guard.seenBefore(id, tok) {
		d.mu.Unlock()
		result.Status = StatusDuplicate
		d.finish(ctx, inv, &result, nil, start)
		return result, nil
	}
	d.guard.record(id, tok)
	d.mu.Unlock()

	err := ra.invoke(ctx, payload)
	if err != nil {
		result.Status = StatusFailed
	} else {
		result.Status = StatusExecuted
	}
	d.finish(ctx, inv, &result, err, start)
	return result, err
}

// finish runs post hooks and records metrics.
func (d *Dispatcher) finish(ctx context.Context, inv *Invocation, result *Result, err error, start time.Time) {
	result.Duration = time.Since(start)
	d.runPostHooks(ctx, inv, result, err)
	if d.metrics != nil {
		d.metrics.Record(inv.Action, result.Duration, result.Status)
	}
}

// CanExecute evaluates the predicate for id now and records the result as
// the cached executability, so the next RaiseCanExecuteChanged diffs against
// what the caller observed.
func (d *Dispatcher) CanExecute(id action.Identity) (bool, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false, ErrDisposed
	}
	ra := d.registry.get(id)
	d.mu.Unlock()

	if ra == nil {
		return false, &UnknownActionError{Action: id}
	}
	ok := ra.evaluate()

	d.mu.Lock()
	if !d.closed && d.registry.get(id) == ra {
		ra.state = executabilityOf(ok)
	}
	d.mu.Unlock()
	return ok, nil
}

// RaiseCanExecuteChanged re-evaluates every predicate and broadcasts a
// StateChange for each action whose executability differs from the cached
// value. Handlers are never invoked. Calling it again without an intervening
// state change broadcasts nothing.
func (d *Dispatcher) RaiseCanExecuteChanged() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	snap := d.registry.snapshot()
	d.mu.Unlock()

	values := make([]bool, len(snap))
	for i, ra := range snap {
		values[i] = ra.evaluate()
	}

	var changes []StateChange
	d.mu.Lock()
	for i, ra := range snap {
		// Skip entries replaced or removed while predicates ran.
		if d.registry.get(ra.id) != ra {
			continue
		}
		next := executabilityOf(values[i])
		if ra.state == next {
			continue
		}
		ra.state = next
		changes = append(changes, StateChange{Action: ra.id, Executable: values[i]})
	}
	listeners := make([]stateListener, len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.Unlock()

	if len(changes) > 0 {
		d.logger.Debug("executability changed", "count", len(changes))
	}
	for _, c := range changes {
		for _, l := range listeners {
			l.fn(c)
		}
	}
}

// OnStateChanged registers fn to receive executability broadcasts.
// The returned function removes the listener.
func (d *Dispatcher) OnStateChanged(fn func(StateChange)) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || fn == nil {
		return func() {}
	}
	d.nextID++
	id := d.nextID
	d.listeners = append(d.listeners, stateListener{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			for i, l := range d.listeners {
				if l.id == id {
					d.listeners = append(d.listeners[:i:i], d.listeners[i+1:]...)
					break
				}
			}
		})
	}
}

// RegisterPreHook registers a pre-dispatch hook.
func (d *Dispatcher) RegisterPreHook(hook PreDispatchHook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.preHooks = append(d.preHooks, hook)
}

// RegisterPostHook registers a post-dispatch hook.
func (d *Dispatcher) RegisterPostHook(hook PostDispatchHook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.postHooks = append(d.postHooks, hook)
}

// runPreHooks runs all pre-dispatch hooks.
// Returns false if any hook cancels the dispatch.
func (d *Dispatcher) runPreHooks(ctx context.Context, inv *Invocation) bool {
	d.mu.Lock()
	hooks := make([]PreDispatchHook, len(d.preHooks))
	copy(hooks, d.preHooks)
	d.mu.Unlock()

	for _, h := range hooks {
		if !h.PreDispatch(ctx, inv) {
			return false
		}
	}
	return true
}

// runPostHooks runs all post-dispatch hooks.
func (d *Dispatcher) runPostHooks(ctx context.Context, inv *Invocation, result *Result, err error) {
	d.mu.Lock()
	hooks := make([]PostDispatchHook, len(d.postHooks))
	copy(hooks, d.postHooks)
	d.mu.Unlock()

	for _, h := range hooks {
		h.PostDispatch(ctx, inv, result, err)
	}
}

// Metrics returns the metrics collector (may be nil if disabled).
func (d *Dispatcher) Metrics() *Metrics {
	return d.metrics
}

// Config returns the dispatcher configuration.
func (d *Dispatcher) Config() Config {
	return d.config
}

// Close ends the dispatcher's registration scope. All actions, listeners
// and hooks are dropped; later dispatches return ErrDisposed.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.registry.clear()
	d.guard.clear()
	d.listeners = nil
	d.preHooks = nil
	d.postHooks = nil
}
