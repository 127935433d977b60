package binder

import (
	"context"
	"sync"
)

// Trigger is a UI element that can fire an action and be enabled or disabled.
type Trigger interface {
	// SetEnabled updates the trigger's enabled flag.
	SetEnabled(enabled bool)

	// Enabled reports the trigger's enabled flag.
	Enabled() bool

	// OnActivate registers fn to run on every activation and returns a
	// function that removes it.
	OnActivate(fn func(ctx context.Context, payload any)) (cancel func())
}

// Signal is a Trigger with no visual representation. It serves headless
// Views, scripted activations and tests. The zero value is not usable; call
// NewSignal.
type Signal struct {
	name string

	mu       sync.Mutex
	enabled  bool
	nextID   int
	handlers []signalHandler
}

type signalHandler struct {
	id int
	fn func(ctx context.Context, payload any)
}

// NewSignal creates an enabled signal.
func NewSignal(name string) *Signal {
	return &Signal{name: name, enabled: true}
}

// Name returns the signal name.
func (s *Signal) Name() string { return s.name }

// SetEnabled implements Trigger.
func (s *Signal) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
}

// Enabled implements Trigger.
func (s *Signal) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// OnActivate implements Trigger.
func (s *Signal) OnActivate(fn func(ctx context.Context, payload any)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.handlers = append(s.handlers, signalHandler{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, h := range s.handlers {
				if h.id == id {
					s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
					return
				}
			}
		})
	}
}

// Activate fires the signal. A disabled signal ignores activation and
// reports false.
func (s *Signal) Activate(ctx context.Context, payload any) bool {
	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return false
	}
	handlers := make([]signalHandler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()

	for _, h := range handlers {
		h.fn(ctx, payload)
	}
	return true
}

// Listeners returns the number of registered activation handlers.
func (s *Signal) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}
