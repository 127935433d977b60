package dispatcher

import (
	"context"
	"reflect"
	"sort"

	"github.com/dshills/mvpkit/internal/action"
)

// CanExecute reports whether an action may currently run.
// A nil CanExecute means the action is always executable.
type CanExecute func() bool

// invoker is the type-erased form of every registered handler.
type invoker func(ctx context.Context, payload any) error

// checker validates a payload before any handler runs.
type checker func(payload any) bool

// executability is the cached result of the last predicate evaluation.
type executability int8

const (
	stateUnknown executability = iota
	stateDisabled
	stateEnabled
)

func executabilityOf(ok bool) executability {
	if ok {
		return stateEnabled
	}
	return stateDisabled
}

// registeredAction is the dispatcher's record for one identity.
type registeredAction struct {
	id          action.Identity
	invoke      invoker
	accepts     checker
	payloadType reflect.Type
	canExecute  CanExecute
	state       executability
}

func (r *registeredAction) evaluate() bool {
	if r.canExecute == nil {
		return true
	}
	return r.canExecute()
}

// registry holds registered actions keyed by identity.
// It is not synchronised; the Dispatcher guards it.
type registry struct {
	actions map[action.Identity]*registeredAction
}

func newRegistry() *registry {
	return &registry{actions: make(map[action.Identity]*registeredAction)}
}

// put stores ra, replacing any previous registration for the same identity.
func (r *registry) put(ra *registeredAction) {
	r.actions[ra.id] = ra
}

func (r *registry) get(id action.Identity) *registeredAction {
	return r.actions[id]
}

func (r *registry) remove(id action.Identity) bool {
	if _, ok := r.actions[id]; !ok {
		return false
	}
	delete(r.actions, id)
	return true
}

// snapshot returns the registered actions ordered by qualifier then name.
func (r *registry) snapshot() []*registeredAction {
	out := make([]*registeredAction, 0, len(r.actions))
	for _, ra := range r.actions {
		out = append(out, ra)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].id, out[j].id
		if a.Qualifier() != b.Qualifier() {
			return a.Qualifier() < b.Qualifier()
		}
		return a.Name() < b.Name()
	})
	return out
}

func (r *registry) count() int {
	return len(r.actions)
}

func (r *registry) clear() {
	r.actions = make(map[action.Identity]*registeredAction)
}
