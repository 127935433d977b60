package dispatcher

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/dshills/mvpkit/internal/action"
)

// Dispatcher errors.
var (
	// ErrUnknownAction indicates no handler is registered for an action.
	ErrUnknownAction = errors.New("dispatcher: unknown action")

	// ErrPayloadMismatch indicates a payload whose type differs from the registered type.
	ErrPayloadMismatch = errors.New("dispatcher: payload type mismatch")

	// ErrDisposed indicates the dispatcher has been closed.
	ErrDisposed = errors.New("dispatcher: dispatcher is closed")

	// ErrNilHandler indicates a registration without a handler.
	ErrNilHandler = errors.New("dispatcher: handler cannot be nil")
)

// UnknownActionError reports a dispatch to an unregistered identity.
type UnknownActionError struct {
	Action action.Identity
}

// Error implements the error interface.
func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("dispatcher: unknown action %q", e.Action.String())
}

// Unwrap returns ErrUnknownAction.
func (e *UnknownActionError) Unwrap() error { return ErrUnknownAction }

// PayloadMismatchError reports a payload of the wrong runtime type.
type PayloadMismatchError struct {
	Action action.Identity
	Want   reflect.Type
	Got    reflect.Type
}

// Error implements the error interface.
func (e *PayloadMismatchError) Error() string {
	want, got := "none", "nil"
	if e.Want != nil {
		want = e.Want.String()
	}
	if e.Got != nil {
		got = e.Got.String()
	}
	return fmt.Sprintf("dispatcher: action %q expects payload %s, got %s", e.Action.String(), want, got)
}

// Unwrap returns ErrPayloadMismatch.
func (e *PayloadMismatchError) Unwrap() error { return ErrPayloadMismatch }
