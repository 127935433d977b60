package event

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/dshills/mvpkit/internal/event/dispatch"
	"github.com/dshills/mvpkit/internal/event/schedule"
)

// subscriptionState represents the state of a subscription.
type subscriptionState int32

const (
	stateActive subscriptionState = iota
	stateDisposed
)

// subscription is a registered handler for one message type.
type subscription struct {
	id      string
	msgType reflect.Type
	handler dispatch.Handler

	// ownerAlive is set for weak subscriptions.
	ownerAlive func() bool

	scheduler schedule.Scheduler
	filter    func(any) bool
	once      bool
	scope     *Scope

	state atomic.Int32
	agg   *Aggregator
}

// live reports whether the subscription may still be invoked.
func (s *subscription) live() bool {
	if subscriptionState(s.state.Load()) != stateActive {
		return false
	}
	if s.scope != nil && s.scope.closed.Load() {
		return false
	}
	if s.ownerAlive != nil && !s.ownerAlive() {
		return false
	}
	return true
}

// begin is called immediately before an invocation. Once-subscriptions are
// claimed here so that concurrent publishes deliver to them exactly once.
func (s *subscription) begin() bool {
	if !s.live() {
		return false
	}
	if s.once {
		return s.state.CompareAndSwap(int32(stateActive), int32(stateDisposed))
	}
	return true
}

// kill marks the subscription dead. It reports whether this call did it.
func (s *subscription) kill() bool {
	return s.state.CompareAndSwap(int32(stateActive), int32(stateDisposed))
}

// Token is the disposable handle returned by Subscribe and SubscribeWeak.
type Token struct {
	sub *subscription
}

// ID returns the unique subscription identifier.
func (t *Token) ID() string {
	if t == nil || t.sub == nil {
		return ""
	}
	return t.sub.id
}

// MessageType returns the subscribed message type.
func (t *Token) MessageType() reflect.Type {
	if t == nil || t.sub == nil {
		return nil
	}
	return t.sub.msgType
}

// Active reports whether the subscription can still receive messages.
func (t *Token) Active() bool {
	if t == nil || t.sub == nil {
		return false
	}
	return t.sub.live()
}

// Dispose removes the subscription. It is idempotent and safe to call
// concurrently with Publish, including from inside the handler itself.
func (t *Token) Dispose() {
	if t == nil || t.sub == nil {
		return
	}
	t.sub.kill()
	t.sub.agg.remove(t.sub)
}

// Scope groups subscriptions that share an owner's teardown.
type Scope struct {
	closed atomic.Bool

	mu   sync.Mutex
	subs []*subscription
}

// NewScope creates an open scope.
func NewScope() *Scope {
	return &Scope{}
}

// add records sub in the scope. It fails once the scope is closed.
func (s *Scope) add(sub *subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return false
	}
	s.subs = append(s.subs, sub)
	return true
}

// Close kills every subscription created with this scope. The aggregator
// drops them on the next publish of their type or the next sweep.
func (s *Scope) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Swap(true) {
		return
	}
	for _, sub := range s.subs {
		sub.kill()
	}
	s.subs = nil
}

// Closed reports whether Close has been called.
func (s *Scope) Closed() bool {
	return s.closed.Load()
}
