package event

import (
	"errors"
	"fmt"
	"reflect"
)

// Sentinel errors for the event aggregator.
var (
	// ErrNilHandler is returned when a nil handler is provided.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrNilOwner is returned when SubscribeWeak is given a nil owner.
	ErrNilOwner = errors.New("weak subscription owner cannot be nil")

	// ErrNilAggregator is returned when an operation is given a nil aggregator.
	ErrNilAggregator = errors.New("aggregator cannot be nil")

	// ErrFilterType is returned when a filter does not accept the subscribed type.
	ErrFilterType = errors.New("filter does not match message type")

	// ErrScopeClosed is returned when subscribing into a closed scope.
	ErrScopeClosed = errors.New("scope is closed")

	// ErrHandlerPanic is matched by every *PanicError.
	ErrHandlerPanic = errors.New("handler panicked")
)

// errOwnerCollected signals that a weak owner vanished between the liveness
// check and the invocation.
var errOwnerCollected = errors.New("owner collected")

// HandlerError wraps an error returned by a subscriber.
type HandlerError struct {
	// SubscriptionID is the ID of the subscription whose handler failed.
	SubscriptionID string

	// MessageType is the type the handler was subscribed to.
	MessageType reflect.Type

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler error for subscription %s on %v: %v", e.SubscriptionID, e.MessageType, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError wraps a subscriber panic as an error.
type PanicError struct {
	// SubscriptionID is the ID of the subscription whose handler panicked.
	SubscriptionID string

	// MessageType is the type the handler was subscribed to.
	MessageType reflect.Type

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic for subscription %s on %v: %v", e.SubscriptionID, e.MessageType, e.Value)
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}

// PostError reports a delivery that could not be handed to its scheduler.
type PostError struct {
	SubscriptionID string
	MessageType    reflect.Type
	Err            error
}

// Error implements the error interface.
func (e *PostError) Error() string {
	return fmt.Sprintf("post delivery for subscription %s on %v: %v", e.SubscriptionID, e.MessageType, e.Err)
}

// Unwrap returns the scheduler error.
func (e *PostError) Unwrap() error {
	return e.Err
}
