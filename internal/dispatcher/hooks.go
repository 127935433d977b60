package dispatcher

import (
	"context"

	"github.com/dshills/mvpkit/internal/logging"
)

// PreDispatchHook is called before a predicate is evaluated.
// Returning false cancels the dispatch.
type PreDispatchHook interface {
	PreDispatch(ctx context.Context, inv *Invocation) bool
}

// PostDispatchHook is called after every dispatch that reached a registered
// action, including duplicates, cancellations and not-executable outcomes.
// It is not called when a handler or predicate panics.
type PostDispatchHook interface {
	PostDispatch(ctx context.Context, inv *Invocation, result *Result, err error)
}

// PreDispatchFunc is a function adapter for PreDispatchHook.
type PreDispatchFunc func(ctx context.Context, inv *Invocation) bool

// PreDispatch implements PreDispatchHook.
func (f PreDispatchFunc) PreDispatch(ctx context.Context, inv *Invocation) bool {
	return f(ctx, inv)
}

// PostDispatchFunc is a function adapter for PostDispatchHook.
type PostDispatchFunc func(ctx context.Context, inv *Invocation, result *Result, err error)

// PostDispatch implements PostDispatchHook.
func (f PostDispatchFunc) PostDispatch(ctx context.Context, inv *Invocation, result *Result, err error) {
	f(ctx, inv, result, err)
}

// LoggingHook logs dispatches.
type LoggingHook struct {
	logger logging.Logger
}

// NewLoggingHook creates a new logging hook.
func NewLoggingHook(logger logging.Logger) *LoggingHook {
	return &LoggingHook{logger: logging.WithComponent(logger, "dispatch")}
}

// PreDispatch logs the action being dispatched.
func (h *LoggingHook) PreDispatch(_ context.Context, inv *Invocation) bool {
	h.logger.Debug("dispatching action", "action", inv.Action.String(), "gesture", inv.Gesture.String())
	return true
}

// PostDispatch logs the dispatch result.
func (h *LoggingHook) PostDispatch(_ context.Context, inv *Invocation, result *Result, err error) {
	if err != nil {
		h.logger.Warn("dispatch failed", "action", inv.Action.String(), "status", result.Status.String(), "error", err)
		return
	}
	h.logger.Debug("dispatch complete", "action", inv.Action.String(), "status", result.Status.String(), "duration", result.Duration)
}

// GuardHook cancels dispatches for which allow returns false.
// Presenters use it to block every action while a modal operation runs.
type GuardHook struct {
	allow func(inv *Invocation) bool
}

// NewGuardHook creates a hook that consults allow before each dispatch.
func NewGuardHook(allow func(inv *Invocation) bool) *GuardHook {
	return &GuardHook{allow: allow}
}

// PreDispatch implements PreDispatchHook.
func (h *GuardHook) PreDispatch(_ context.Context, inv *Invocation) bool {
	if h.allow == nil {
		return true
	}
	return h.allow(inv)
}
