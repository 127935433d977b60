// Package dispatcher maps action identities to presenter callbacks and keeps
// trigger enablement in step with can-execute predicates.
//
// # Overview
//
// A Dispatcher belongs to exactly one presenter for that presenter's lifetime.
// During setup the presenter registers a handler per action, optionally with a
// predicate deciding whether the action may currently run:
//
//	d := dispatcher.NewWithDefaults()
//	d.Register(doc.Save, p.save, p.canSave)
//	dispatcher.RegisterParameterized(d, doc.Open, p.open, nil) // func(ctx, string) error
//
// Views never call the presenter. A binder (see package binder) forwards
// trigger activations to Dispatch and listens for state broadcasts:
//
//	result, err := d.Dispatch(ctx, doc.Save, nil)
//	switch {
//	case errors.Is(err, dispatcher.ErrUnknownAction):
//	    // nothing registered under that identity
//	case result.Status == dispatcher.StatusNotExecutable:
//	    // predicate said no; the trigger was probably about to be disabled
//	}
//
// Whenever presenter state that feeds a predicate changes, the presenter calls
// RaiseCanExecuteChanged. Only predicates run; handlers never do.
//
// # Gestures
//
// One click can reach the dispatcher twice when a view both lets the binder
// dispatch directly and re-publishes the activation for the presenter to
// forward. Every activation carries a gesture token; a token already seen for
// the same identity is reported as StatusDuplicate and the handler is skipped.
//
// # Errors
//
// Unknown actions and payload type mismatches are returned as errors that
// wrap ErrUnknownAction and ErrPayloadMismatch. Errors and panics raised by
// handlers or predicates reach the caller unchanged.
//
// # Hooks
//
// Pre-dispatch hooks may cancel a dispatch; post-dispatch hooks observe the
// result. LoggingHook records every dispatch through a logging.Logger.
package dispatcher
