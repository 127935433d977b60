// Package binder connects UI triggers to a dispatcher.
//
// A Binder maps triggers (buttons, menu items, key chords) to action
// identities. Once bound to a Target, activating a trigger dispatches its
// action with a fresh gesture token, and every executability broadcast from
// the target is pushed onto the enabled flag of each trigger bound to the
// changed action.
//
// Two integration styles may run side by side. In the implicit style the
// binder dispatches directly. In the explicit style a Presenter listens for
// Requests (OnActionRequested, or Request messages on an event.Aggregator)
// and forwards them itself. Both carry the same gesture token, so the
// dispatcher runs the handler once per activation.
//
// Unbind or Close detach every trigger so a disposed View can no longer drive
// a live dispatcher.
package binder
