package binder

import "errors"

// Sentinel errors for the binder.
var (
	// ErrAlreadyBound is returned when Bind is called on a bound binder.
	ErrAlreadyBound = errors.New("binder: already bound")

	// ErrNilTarget is returned when Bind is given a nil target.
	ErrNilTarget = errors.New("binder: target cannot be nil")

	// ErrNilTrigger is returned when a nil trigger is added.
	ErrNilTrigger = errors.New("binder: trigger cannot be nil")

	// ErrZeroAction is returned when a trigger is added for the zero identity.
	ErrZeroAction = errors.New("binder: action identity cannot be empty")

	// ErrClosed is returned by operations on a closed binder.
	ErrClosed = errors.New("binder: closed")
)
